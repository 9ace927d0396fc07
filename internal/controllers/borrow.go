package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"lending-system/internal/dto"
	"lending-system/internal/services"
	"lending-system/pkg/api"
	apperrors "lending-system/pkg/errors"
	"lending-system/pkg/types"
)

type BorrowController struct {
	borrowService services.BorrowServiceInterface
	groupService  services.BorrowGroupServiceInterface
	logger        *zap.Logger
}

func NewBorrowController(
	borrowService services.BorrowServiceInterface,
	groupService services.BorrowGroupServiceInterface,
	logger *zap.Logger,
) *BorrowController {
	return &BorrowController{
		borrowService: borrowService,
		groupService:  groupService,
		logger:        logger,
	}
}

func parseID(ctx echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewValidationError("invalid %s: %q", name, ctx.Param(name))
	}
	return id, nil
}

func (c *BorrowController) Submit(ctx echo.Context) error {
	var payload dto.CreateBorrowDTO
	if err := ctx.Bind(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("invalid request body"))
	}
	if err := ctx.Validate(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("%s", err.Error()))
	}

	result, err := c.borrowService.SubmitReservation(ctx.Request().Context(), payload)
	if err != nil {
		c.logger.Warn("reservation rejected", zap.Error(err))
		return api.ErrorResponse(ctx, err)
	}

	return api.SuccessOne(ctx, http.StatusCreated, "reservation submitted", result)
}

func (c *BorrowController) GetBorrows(ctx echo.Context) error {
	filter := types.BorrowFilter{
		Status: ctx.QueryParam("status"),
		Limit:  types.DefaultLimit,
	}
	if raw := ctx.QueryParam("limit"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil && v > 0 && v <= types.MaxLimit {
			filter.Limit = v
		}
	}
	if raw := ctx.QueryParam("offset"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			filter.Offset = v
		}
	}
	if raw := ctx.QueryParam("borrower_id"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			filter.BorrowerID = v
		}
	}

	list, total, err := c.borrowService.GetBorrows(ctx.Request().Context(), filter)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	page := 1
	if filter.Limit > 0 {
		page = int(filter.Offset/filter.Limit) + 1
	}
	return api.SuccessList(ctx, "borrows", list, total, page, int(filter.Limit))
}

func (c *BorrowController) FindBorrow(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	borrow, err := c.borrowService.FindBorrow(ctx.Request().Context(), id)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "borrow", borrow)
}

func (c *BorrowController) Approve(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	var payload dto.ApproveBorrowDTO
	if err := ctx.Bind(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("invalid request body"))
	}

	if err := c.borrowService.Approve(ctx.Request().Context(), id, payload); err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "borrow approved", &dto.TransitionResultDTO{UpdatedCount: 1})
}

func (c *BorrowController) Reject(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	if err := c.borrowService.Reject(ctx.Request().Context(), id); err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "borrow rejected", &dto.TransitionResultDTO{UpdatedCount: 1})
}

func (c *BorrowController) Checkout(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	if err := c.borrowService.Checkout(ctx.Request().Context(), id); err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "equipment checked out", &dto.TransitionResultDTO{UpdatedCount: 1})
}

func (c *BorrowController) DirectCheckout(ctx echo.Context) error {
	var payload dto.DirectCheckoutDTO
	if err := ctx.Bind(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("invalid request body"))
	}
	if err := ctx.Validate(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("%s", err.Error()))
	}

	result, err := c.borrowService.DirectCheckout(ctx.Request().Context(), payload)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusCreated, "direct checkout completed", result)
}

func (c *BorrowController) RequestReturn(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	if err := c.borrowService.RequestReturn(ctx.Request().Context(), id); err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "return requested", &dto.TransitionResultDTO{UpdatedCount: 1})
}

func (c *BorrowController) ConfirmReturn(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	var payload dto.ConfirmReturnDTO
	if err := ctx.Bind(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("invalid request body"))
	}
	if err := ctx.Validate(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("%s", err.Error()))
	}

	if err := c.borrowService.ConfirmReturn(ctx.Request().Context(), id, payload); err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "return confirmed", &dto.TransitionResultDTO{UpdatedCount: 1})
}

func (c *BorrowController) Cancel(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	if err := c.borrowService.Cancel(ctx.Request().Context(), id); err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "borrow cancelled", &dto.TransitionResultDTO{UpdatedCount: 1})
}

// ----- group endpoints -----

func (c *BorrowController) ApproveGroup(ctx echo.Context) error {
	groupID := ctx.Param("groupId")
	if groupID == "" {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("missing group id"))
	}

	var payload dto.ApproveBorrowDTO
	if err := ctx.Bind(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("invalid request body"))
	}

	result, err := c.groupService.ApproveGroup(ctx.Request().Context(), groupID, payload)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "group approved", result)
}

func (c *BorrowController) RejectGroup(ctx echo.Context) error {
	groupID := ctx.Param("groupId")
	if groupID == "" {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("missing group id"))
	}

	result, err := c.groupService.RejectGroup(ctx.Request().Context(), groupID)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "group rejected", result)
}

func (c *BorrowController) CheckoutGroup(ctx echo.Context) error {
	groupID := ctx.Param("groupId")
	if groupID == "" {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("missing group id"))
	}

	result, err := c.groupService.CheckoutGroup(ctx.Request().Context(), groupID)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "group checked out", result)
}

func (c *BorrowController) RequestReturnGroup(ctx echo.Context) error {
	groupID := ctx.Param("groupId")
	if groupID == "" {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("missing group id"))
	}

	result, err := c.groupService.RequestReturnGroup(ctx.Request().Context(), groupID)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "group return requested", result)
}

func (c *BorrowController) ConfirmReturnGroup(ctx echo.Context) error {
	groupID := ctx.Param("groupId")
	if groupID == "" {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("missing group id"))
	}

	var payload dto.ConfirmReturnDTO
	if err := ctx.Bind(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("invalid request body"))
	}
	if err := ctx.Validate(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("%s", err.Error()))
	}

	result, err := c.groupService.ConfirmReturnGroup(ctx.Request().Context(), groupID, payload)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "group return confirmed", result)
}
