package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"lending-system/internal/dto"
	"lending-system/internal/services"
	"lending-system/pkg/api"
	apperrors "lending-system/pkg/errors"
	"lending-system/pkg/types"
)

type EquipmentController struct {
	equipmentService    services.EquipmentServiceInterface
	availabilityService services.AvailabilityServiceInterface
	logger              *zap.Logger
}

func NewEquipmentController(
	equipmentService services.EquipmentServiceInterface,
	availabilityService services.AvailabilityServiceInterface,
	logger *zap.Logger,
) *EquipmentController {
	return &EquipmentController{
		equipmentService:    equipmentService,
		availabilityService: availabilityService,
		logger:              logger,
	}
}

func (c *EquipmentController) GetEquipments(ctx echo.Context) error {
	statusFilter := ctx.QueryParam("status")

	limit := uint64(types.DefaultLimit)
	if raw := ctx.QueryParam("limit"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil && v > 0 && v <= types.MaxLimit {
			limit = v
		}
	}
	var offset uint64
	if raw := ctx.QueryParam("offset"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			offset = v
		}
	}

	list, total, err := c.equipmentService.GetEquipments(ctx.Request().Context(), statusFilter, limit, offset)
	if err != nil {
		c.logger.Error("failed to list equipments", zap.Error(err))
		return api.ErrorResponse(ctx, err)
	}

	page := 1
	if limit > 0 {
		page = int(offset/limit) + 1
	}
	return api.SuccessList(ctx, "equipments", list, total, page, int(limit))
}

func (c *EquipmentController) FindEquipment(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	equipment, err := c.equipmentService.FindEquipment(ctx.Request().Context(), id)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusOK, "equipment", equipment)
}

func (c *EquipmentController) CreateEquipment(ctx echo.Context) error {
	var payload dto.CreateEquipmentDTO
	if err := ctx.Bind(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("invalid request body"))
	}
	if err := ctx.Validate(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("%s", err.Error()))
	}

	id, err := c.equipmentService.CreateEquipment(ctx.Request().Context(), payload)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne(ctx, http.StatusCreated, "equipment created", map[string]uint64{"id": id})
}

func (c *EquipmentController) UpdateEquipment(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	var payload dto.UpdateEquipmentDTO
	if err := ctx.Bind(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("invalid request body"))
	}
	if err := ctx.Validate(&payload); err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("%s", err.Error()))
	}

	if err := c.equipmentService.UpdateEquipment(ctx.Request().Context(), id, payload); err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne[any](ctx, http.StatusOK, "equipment updated", nil)
}

// ArchiveEquipment is the delete endpoint; equipment is never hard-deleted.
func (c *EquipmentController) ArchiveEquipment(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	if err := c.equipmentService.ArchiveEquipment(ctx.Request().Context(), id); err != nil {
		return api.ErrorResponse(ctx, err)
	}
	return api.SuccessOne[any](ctx, http.StatusOK, "equipment archived", nil)
}

type availabilityResponse struct {
	Check dto.AvailabilityCheckDTO `json:"check"`
	Units dto.AvailableUnitsDTO    `json:"units"`
}

func (c *EquipmentController) CheckAvailability(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	start, err := time.Parse(time.RFC3339, ctx.QueryParam("start"))
	if err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("start must be RFC3339"))
	}
	end, err := time.Parse(time.RFC3339, ctx.QueryParam("end"))
	if err != nil {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("end must be RFC3339"))
	}
	if !end.After(start) {
		return api.ErrorResponse(ctx, apperrors.NewValidationError("end must be after start"))
	}

	check, err := c.availabilityService.CheckAvailability(ctx.Request().Context(), id, start, end)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}
	units, err := c.availabilityService.AvailableUnitsInRange(ctx.Request().Context(), id, start, end)
	if err != nil {
		return api.ErrorResponse(ctx, err)
	}

	return api.SuccessOne(ctx, http.StatusOK, "availability", availabilityResponse{
		Check: *check,
		Units: *units,
	})
}

// ExportEquipments streams the inventory as an XLSX download.
func (c *EquipmentController) ExportEquipments(ctx echo.Context) error {
	file, err := c.equipmentService.ExportEquipments(ctx.Request().Context())
	if err != nil {
		c.logger.Error("inventory export failed", zap.Error(err))
		return api.ErrorResponse(ctx, err)
	}
	defer file.Close()

	ctx.Response().Header().Set(echo.HeaderContentType,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="inventory.xlsx"`)
	ctx.Response().WriteHeader(http.StatusOK)

	return file.Write(ctx.Response())
}
