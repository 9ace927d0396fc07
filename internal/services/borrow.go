package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"lending-system/internal/dto"
	"lending-system/internal/entities"
	"lending-system/internal/repositories"
	"lending-system/pkg/config"
	"lending-system/pkg/constants"
	apperrors "lending-system/pkg/errors"
	"lending-system/pkg/types"
	"lending-system/pkg/utils"
)

// RecomputeOverdue is the pure form of the overdue correction: an ACTIVE
// borrow whose approved end has passed is OVERDUE; every other status is
// left as is.
func RecomputeOverdue(b *entities.Borrow, now time.Time) string {
	if b.BorrowStatus == constants.BorrowStatusActive &&
		b.ApprovedEndTime != nil && b.ApprovedEndTime.Before(now) {
		return constants.BorrowStatusOverdue
	}
	return b.BorrowStatus
}

func actorFromCtx(ctx context.Context) (uint64, string, error) {
	actorID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return 0, "", err
	}
	role, err := utils.GetUserRoleFromCtx(ctx)
	if err != nil {
		return 0, "", err
	}
	return actorID, role, nil
}

// authorizeKeeper gates staff/faculty transitions. STAFF may act on any
// borrow; FACULTY only on borrows tied to a class they are the
// faculty-in-charge of.
func authorizeKeeper(ctx context.Context, classRepo repositories.ClassRepositoryInterface, actorID uint64, role string, classID *uint64) error {
	switch role {
	case constants.RoleStaff:
		return nil
	case constants.RoleFaculty:
		if classID == nil {
			return apperrors.NewAuthorizationError("faculty may only act on class-linked borrows")
		}
		class, err := classRepo.FindClass(ctx, *classID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NewNotFoundError("class %d does not exist", *classID)
			}
			return err
		}
		if class.FicID != actorID {
			return apperrors.NewAuthorizationError("faculty is not in charge of class %d", *classID)
		}
		return nil
	default:
		return apperrors.NewAuthorizationError("role %s may not perform this action", role)
	}
}

type BorrowServiceInterface interface {
	SubmitReservation(ctx context.Context, data dto.CreateBorrowDTO) (*dto.SubmitResultDTO, error)
	Approve(ctx context.Context, borrowID uint64, data dto.ApproveBorrowDTO) error
	Reject(ctx context.Context, borrowID uint64) error
	Checkout(ctx context.Context, borrowID uint64) error
	DirectCheckout(ctx context.Context, data dto.DirectCheckoutDTO) (*dto.SubmitResultDTO, error)
	RequestReturn(ctx context.Context, borrowID uint64) error
	ConfirmReturn(ctx context.Context, borrowID uint64, data dto.ConfirmReturnDTO) error
	Cancel(ctx context.Context, borrowID uint64) error
	GetBorrows(ctx context.Context, filter types.BorrowFilter) ([]dto.BorrowDTO, uint64, error)
	FindBorrow(ctx context.Context, borrowID uint64) (*dto.BorrowDTO, error)
	SweepOverdue(ctx context.Context) error
}

type BorrowService struct {
	txManager     repositories.TxManagerInterface
	borrowRepo    repositories.BorrowRepositoryInterface
	equipmentRepo repositories.EquipmentRepositoryInterface
	classRepo     repositories.ClassRepositoryInterface
	userRepo      repositories.UserRepositoryInterface
	availability  AvailabilityServiceInterface
	clock         Clock
	cfg           config.LendingConfig
	logger        *zap.Logger
}

func NewBorrowService(
	txManager repositories.TxManagerInterface,
	borrowRepo repositories.BorrowRepositoryInterface,
	equipmentRepo repositories.EquipmentRepositoryInterface,
	classRepo repositories.ClassRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	availability AvailabilityServiceInterface,
	clock Clock,
	cfg config.LendingConfig,
	logger *zap.Logger,
) BorrowServiceInterface {
	return &BorrowService{
		txManager:     txManager,
		borrowRepo:    borrowRepo,
		equipmentRepo: equipmentRepo,
		classRepo:     classRepo,
		userRepo:      userRepo,
		availability:  availability,
		clock:         clock,
		cfg:           cfg,
		logger:        logger,
	}
}

// SweepOverdue runs the lazy time corrections: ACTIVE past its approved end
// becomes OVERDUE, undecided PENDING past its window becomes
// REJECTED_AUTOMATIC. Invoked ahead of reads and transitions; also runnable
// standalone.
func (s *BorrowService) SweepOverdue(ctx context.Context) error {
	return s.sweepInTx(ctx, nil)
}

func (s *BorrowService) sweepInTx(ctx context.Context, tx pgx.Tx) error {
	now := s.clock.Now()

	overdue, err := s.borrowRepo.SweepOverdueInTx(ctx, tx, now)
	if err != nil {
		return err
	}
	expired, err := s.borrowRepo.ExpirePendingInTx(ctx, tx, now)
	if err != nil {
		return err
	}

	if overdue > 0 || expired > 0 {
		s.logger.Info("overdue sweep applied",
			zap.Int64("markedOverdue", overdue),
			zap.Int64("autoRejected", expired))
	}
	return nil
}

func (s *BorrowService) withinOperatingHours(t time.Time) bool {
	loc := s.cfg.Location
	if loc == nil {
		loc = time.Local
	}
	m := utils.MinuteOfDay(t.In(loc))
	return m >= s.cfg.OperatingStartMinute && m <= s.cfg.OperatingEndMinute
}

// preconditionFailed builds the expected-vs-actual conflict for a transition
// whose conditional update matched no row.
func (s *BorrowService) preconditionFailed(ctx context.Context, tx pgx.Tx, borrowID uint64, expected []string) error {
	current, err := s.borrowRepo.FindBorrowInTx(ctx, tx, borrowID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NewNotFoundError("borrow %d does not exist", borrowID)
		}
		return err
	}
	return apperrors.NewConflictError("borrow %d is %s, expected %s",
		borrowID, current.BorrowStatus, strings.Join(expected, " or "))
}

func (s *BorrowService) validateGroupMates(ctx context.Context, ids []uint64) error {
	missing, err := s.userRepo.MissingIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("unknown group mate user ids: %v", missing)
	}
	return nil
}

func (s *BorrowService) validateClass(ctx context.Context, classID null.Uint64) (*uint64, error) {
	if !classID.Valid {
		return nil, nil
	}
	id := classID.Uint64
	if _, err := s.classRepo.FindClass(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("class %d does not exist", id)
		}
		return nil, err
	}
	return &id, nil
}

// lockEquipments takes row locks in ascending id order and returns the
// loaded rows keyed by id. Lock ordering keeps concurrent multi-item
// submissions deadlock-free.
func (s *BorrowService) lockEquipments(ctx context.Context, tx pgx.Tx, ids []uint64) (map[uint64]*entities.Equipment, error) {
	unique := make([]uint64, 0, len(ids))
	seen := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })

	loaded := make(map[uint64]*entities.Equipment, len(unique))
	for _, id := range unique {
		equipment, err := s.equipmentRepo.FindEquipmentForUpdateInTx(ctx, tx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NewNotFoundError("equipment %d does not exist", id)
			}
			return nil, err
		}
		loaded[id] = equipment
	}
	return loaded, nil
}

// SubmitReservation creates PENDING borrows for every requested item, all or
// nothing. The whole submission fails when any item is unavailable or the
// requested window breaks the operating-hours policy.
func (s *BorrowService) SubmitReservation(ctx context.Context, data dto.CreateBorrowDTO) (*dto.SubmitResultDTO, error) {
	borrowerID, _, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	if !data.RequestedEndTime.After(data.RequestedStartTime) {
		return nil, apperrors.NewValidationError("requested end time must be after start time")
	}
	if !s.withinOperatingHours(data.RequestedStartTime) || !s.withinOperatingHours(data.RequestedEndTime) {
		return nil, apperrors.NewValidationError("requested times must fall within operating hours (06:00-20:00)")
	}

	classID, err := s.validateClass(ctx, data.ClassID)
	if err != nil {
		return nil, err
	}
	if err := s.validateGroupMates(ctx, data.GroupMateIDs); err != nil {
		return nil, err
	}

	var groupID *string
	if len(data.EquipmentIDs) > 1 || len(data.GroupMateIDs) > 0 {
		g := uuid.NewString()
		groupID = &g
	}

	result := &dto.SubmitResultDTO{}
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.sweepInTx(ctx, tx); err != nil {
			return err
		}

		equipments, err := s.lockEquipments(ctx, tx, data.EquipmentIDs)
		if err != nil {
			return err
		}

		var unavailable []string
		for _, id := range data.EquipmentIDs {
			err := s.availability.AdmitInTx(ctx, tx, equipments[id], data.RequestedStartTime, data.RequestedEndTime)
			if err != nil {
				if errors.Is(err, apperrors.ErrConflict) {
					unavailable = append(unavailable, equipments[id].Name)
					continue
				}
				return err
			}
		}
		if len(unavailable) > 0 {
			return apperrors.NewConflictError("not available for the requested interval: %s",
				strings.Join(unavailable, ", "))
		}

		for _, equipmentID := range data.EquipmentIDs {
			borrow := &entities.Borrow{
				EquipmentID:        equipmentID,
				ClassID:            classID,
				BorrowerID:         borrowerID,
				RequestedStartTime: data.RequestedStartTime,
				RequestedEndTime:   data.RequestedEndTime,
				BorrowStatus:       constants.BorrowStatusPending,
				BorrowGroupID:      groupID,
				DataRequested:      data.DataRequested,
			}
			newID, err := s.borrowRepo.CreateBorrowInTx(ctx, tx, borrow)
			if err != nil {
				return err
			}
			result.BorrowIDs = append(result.BorrowIDs, newID)
		}

		if groupID != nil {
			if err := s.borrowRepo.AddGroupMatesInTx(ctx, tx, *groupID, data.GroupMateIDs); err != nil {
				return err
			}
			result.BorrowGroupID = null.StringFrom(*groupID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reservation submitted",
		zap.Uint64("borrowerId", borrowerID),
		zap.Int("items", len(result.BorrowIDs)))
	return result, nil
}

// Approve moves PENDING to APPROVED, fixing the approved window (the
// requested window unless overridden) and recording the approver in the
// role-specific field.
func (s *BorrowService) Approve(ctx context.Context, borrowID uint64, data dto.ApproveBorrowDTO) error {
	actorID, role, err := actorFromCtx(ctx)
	if err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.sweepInTx(ctx, tx); err != nil {
			return err
		}

		borrow, err := s.borrowRepo.FindBorrowInTx(ctx, tx, borrowID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NewNotFoundError("borrow %d does not exist", borrowID)
			}
			return err
		}
		if err := authorizeKeeper(ctx, s.classRepo, actorID, role, borrow.ClassID); err != nil {
			return err
		}

		approvedStart := borrow.RequestedStartTime
		approvedEnd := borrow.RequestedEndTime
		if data.ApprovedStartTime.Valid {
			approvedStart = data.ApprovedStartTime.Time
		}
		if data.ApprovedEndTime.Valid {
			approvedEnd = data.ApprovedEndTime.Time
		}
		if approvedEnd.Before(approvedStart) {
			return apperrors.NewValidationError("approved end time must not precede start time")
		}

		change := repositories.BorrowChange{
			NewStatus:         constants.BorrowStatusApproved,
			ApprovedStartTime: &approvedStart,
			ApprovedEndTime:   &approvedEnd,
		}
		switch role {
		case constants.RoleStaff:
			change.ApprovedByStaffID = &actorID
		case constants.RoleFaculty:
			change.ApprovedByFicID = &actorID
		}

		expected := []string{constants.BorrowStatusPending}
		applied, err := s.borrowRepo.ApplyTransitionInTx(ctx, tx, borrowID, expected, change)
		if err != nil {
			return err
		}
		if !applied {
			return s.preconditionFailed(ctx, tx, borrowID, expected)
		}
		return nil
	})
}

// Reject moves PENDING or APPROVED out of the active set. The rejecting
// role is encoded in the outcome status; approver ids are cleared.
func (s *BorrowService) Reject(ctx context.Context, borrowID uint64) error {
	actorID, role, err := actorFromCtx(ctx)
	if err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.sweepInTx(ctx, tx); err != nil {
			return err
		}

		borrow, err := s.borrowRepo.FindBorrowInTx(ctx, tx, borrowID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NewNotFoundError("borrow %d does not exist", borrowID)
			}
			return err
		}
		if err := authorizeKeeper(ctx, s.classRepo, actorID, role, borrow.ClassID); err != nil {
			return err
		}

		newStatus := constants.BorrowStatusRejectedStaff
		if role == constants.RoleFaculty {
			newStatus = constants.BorrowStatusRejectedFIC
		}

		expected := []string{constants.BorrowStatusPending, constants.BorrowStatusApproved}
		applied, err := s.borrowRepo.ApplyTransitionInTx(ctx, tx, borrowID, expected, repositories.BorrowChange{
			NewStatus:      newStatus,
			ClearApprovers: true,
		})
		if err != nil {
			return err
		}
		if !applied {
			return s.preconditionFailed(ctx, tx, borrowID, expected)
		}
		return nil
	})
}

// applyEquipmentCheckoutSideEffect flips the equipment to BORROWED when its
// prior status allows it. A hard-unavailable equipment is left untouched
// with a warning; the checkout itself is not blocked.
func (s *BorrowService) applyEquipmentCheckoutSideEffect(ctx context.Context, tx pgx.Tx, equipmentID uint64) error {
	equipment, err := s.equipmentRepo.FindEquipmentForUpdateInTx(ctx, tx, equipmentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NewNotFoundError("equipment %d does not exist", equipmentID)
		}
		return err
	}

	switch equipment.Status {
	case constants.EquipmentStatusAvailable, constants.EquipmentStatusReserved:
		return s.equipmentRepo.UpdateEquipmentStatusInTx(ctx, tx, equipmentID, constants.EquipmentStatusBorrowed)
	case constants.EquipmentStatusBorrowed:
		return nil
	default:
		s.logger.Warn("equipment status left unchanged at checkout",
			zap.Uint64("equipmentId", equipmentID),
			zap.String("status", equipment.Status))
		return nil
	}
}

// Checkout moves APPROVED to ACTIVE, or directly to OVERDUE when the
// approved end has already passed at checkout time.
func (s *BorrowService) Checkout(ctx context.Context, borrowID uint64) error {
	actorID, role, err := actorFromCtx(ctx)
	if err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.sweepInTx(ctx, tx); err != nil {
			return err
		}

		borrow, err := s.borrowRepo.FindBorrowInTx(ctx, tx, borrowID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NewNotFoundError("borrow %d does not exist", borrowID)
			}
			return err
		}
		if err := authorizeKeeper(ctx, s.classRepo, actorID, role, borrow.ClassID); err != nil {
			return err
		}

		now := s.clock.Now()
		newStatus := constants.BorrowStatusActive
		if borrow.ApprovedEndTime != nil && borrow.ApprovedEndTime.Before(now) {
			newStatus = constants.BorrowStatusOverdue
		}

		expected := []string{constants.BorrowStatusApproved}
		applied, err := s.borrowRepo.ApplyTransitionInTx(ctx, tx, borrowID, expected, repositories.BorrowChange{
			NewStatus:    newStatus,
			CheckoutTime: &now,
		})
		if err != nil {
			return err
		}
		if !applied {
			return s.preconditionFailed(ctx, tx, borrowID, expected)
		}

		return s.applyEquipmentCheckoutSideEffect(ctx, tx, borrow.EquipmentID)
	})
}

// DirectCheckout is the staff-only fast path that skips approval: rows are
// born ACTIVE with an approved window of DefaultBorrowDays starting now.
func (s *BorrowService) DirectCheckout(ctx context.Context, data dto.DirectCheckoutDTO) (*dto.SubmitResultDTO, error) {
	_, role, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if role != constants.RoleStaff {
		return nil, apperrors.NewAuthorizationError("only staff may perform a direct checkout")
	}

	if _, err := s.userRepo.FindByID(ctx, data.BorrowerID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewValidationError("borrower %d does not exist", data.BorrowerID)
		}
		return nil, err
	}
	classID, err := s.validateClass(ctx, data.ClassID)
	if err != nil {
		return nil, err
	}
	if err := s.validateGroupMates(ctx, data.GroupMateIDs); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	endTime := now.AddDate(0, 0, s.cfg.DefaultBorrowDays)

	var groupID *string
	if len(data.EquipmentIDs) > 1 || len(data.GroupMateIDs) > 0 {
		g := uuid.NewString()
		groupID = &g
	}

	result := &dto.SubmitResultDTO{}
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.sweepInTx(ctx, tx); err != nil {
			return err
		}

		equipments, err := s.lockEquipments(ctx, tx, data.EquipmentIDs)
		if err != nil {
			return err
		}

		var unavailable []string
		for _, id := range data.EquipmentIDs {
			if err := s.availability.AdmitInTx(ctx, tx, equipments[id], now, endTime); err != nil {
				if errors.Is(err, apperrors.ErrConflict) {
					unavailable = append(unavailable, equipments[id].Name)
					continue
				}
				return err
			}
		}
		if len(unavailable) > 0 {
			return apperrors.NewConflictError("not available for direct checkout: %s",
				strings.Join(unavailable, ", "))
		}

		startTime := now
		for _, equipmentID := range data.EquipmentIDs {
			borrow := &entities.Borrow{
				EquipmentID:        equipmentID,
				ClassID:            classID,
				BorrowerID:         data.BorrowerID,
				RequestedStartTime: startTime,
				RequestedEndTime:   endTime,
				ApprovedStartTime:  &startTime,
				ApprovedEndTime:    &endTime,
				CheckoutTime:       &startTime,
				BorrowStatus:       constants.BorrowStatusActive,
				BorrowGroupID:      groupID,
			}
			newID, err := s.borrowRepo.CreateBorrowInTx(ctx, tx, borrow)
			if err != nil {
				return err
			}
			result.BorrowIDs = append(result.BorrowIDs, newID)

			if err := s.applyEquipmentCheckoutSideEffect(ctx, tx, equipmentID); err != nil {
				return err
			}
		}

		if groupID != nil {
			if err := s.borrowRepo.AddGroupMatesInTx(ctx, tx, *groupID, data.GroupMateIDs); err != nil {
				return err
			}
			result.BorrowGroupID = null.StringFrom(*groupID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// authorizeBorrower allows the original borrower or, for grouped borrows,
// any group mate.
func (s *BorrowService) authorizeBorrower(ctx context.Context, borrow *entities.Borrow, actorID uint64) error {
	if borrow.BorrowerID == actorID {
		return nil
	}
	if borrow.BorrowGroupID != nil {
		member, err := s.borrowRepo.IsGroupMember(ctx, *borrow.BorrowGroupID, actorID)
		if err != nil {
			return err
		}
		if member {
			return nil
		}
	}
	return apperrors.NewAuthorizationError("user %d is not the borrower or a group mate", actorID)
}

// RequestReturn moves ACTIVE or OVERDUE to PENDING_RETURN. No equipment
// side effect yet; that happens at confirmation.
func (s *BorrowService) RequestReturn(ctx context.Context, borrowID uint64) error {
	actorID, _, err := actorFromCtx(ctx)
	if err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.sweepInTx(ctx, tx); err != nil {
			return err
		}

		borrow, err := s.borrowRepo.FindBorrowInTx(ctx, tx, borrowID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NewNotFoundError("borrow %d does not exist", borrowID)
			}
			return err
		}
		if err := s.authorizeBorrower(ctx, borrow, actorID); err != nil {
			return err
		}

		expected := []string{constants.BorrowStatusActive, constants.BorrowStatusOverdue}
		applied, err := s.borrowRepo.ApplyTransitionInTx(ctx, tx, borrowID, expected, repositories.BorrowChange{
			NewStatus: constants.BorrowStatusPendingReturn,
		})
		if err != nil {
			return err
		}
		if !applied {
			return s.preconditionFailed(ctx, tx, borrowID, expected)
		}
		return nil
	})
}

// ConfirmReturn moves PENDING_RETURN to RETURNED and recomputes whether the
// equipment can flip back to AVAILABLE: remaining ACTIVE/PENDING/APPROVED
// borrows (this one excluded) must leave a free unit and the stored status
// must currently be BORROWED.
func (s *BorrowService) ConfirmReturn(ctx context.Context, borrowID uint64, data dto.ConfirmReturnDTO) error {
	actorID, role, err := actorFromCtx(ctx)
	if err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.sweepInTx(ctx, tx); err != nil {
			return err
		}

		borrow, err := s.borrowRepo.FindBorrowInTx(ctx, tx, borrowID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NewNotFoundError("borrow %d does not exist", borrowID)
			}
			return err
		}
		if err := authorizeKeeper(ctx, s.classRepo, actorID, role, borrow.ClassID); err != nil {
			return err
		}

		now := s.clock.Now()
		change := repositories.BorrowChange{
			NewStatus:        constants.BorrowStatusReturned,
			ActualReturnTime: &now,
			ReturnCondition:  &data.ReturnCondition,
		}
		if data.ReturnRemarks.Valid {
			change.ReturnRemarks = &data.ReturnRemarks.String
		}

		expected := []string{constants.BorrowStatusPendingReturn}
		applied, err := s.borrowRepo.ApplyTransitionInTx(ctx, tx, borrowID, expected, change)
		if err != nil {
			return err
		}
		if !applied {
			return s.preconditionFailed(ctx, tx, borrowID, expected)
		}

		equipment, err := s.equipmentRepo.FindEquipmentForUpdateInTx(ctx, tx, borrow.EquipmentID)
		if err != nil {
			return err
		}
		remaining, err := s.borrowRepo.CountByEquipmentAndStatusesInTx(ctx, tx,
			borrow.EquipmentID, constants.ReactivationBlockingStatuses, borrowID)
		if err != nil {
			return err
		}
		if remaining < equipment.StockCount && equipment.Status == constants.EquipmentStatusBorrowed {
			return s.equipmentRepo.UpdateEquipmentStatusInTx(ctx, tx, borrow.EquipmentID, constants.EquipmentStatusAvailable)
		}
		return nil
	})
}

// Cancel lets the borrower withdraw a request that is not yet checked out.
func (s *BorrowService) Cancel(ctx context.Context, borrowID uint64) error {
	actorID, _, err := actorFromCtx(ctx)
	if err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.sweepInTx(ctx, tx); err != nil {
			return err
		}

		borrow, err := s.borrowRepo.FindBorrowInTx(ctx, tx, borrowID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NewNotFoundError("borrow %d does not exist", borrowID)
			}
			return err
		}
		if err := s.authorizeBorrower(ctx, borrow, actorID); err != nil {
			return err
		}

		applied, err := s.borrowRepo.ApplyTransitionInTx(ctx, tx, borrowID, constants.CancellableBorrowStatuses, repositories.BorrowChange{
			NewStatus:      constants.BorrowStatusCancelled,
			ClearApprovers: true,
		})
		if err != nil {
			return err
		}
		if !applied {
			return s.preconditionFailed(ctx, tx, borrowID, constants.CancellableBorrowStatuses)
		}
		return nil
	})
}

// GetBorrows lists borrows after the overdue sweep. Students only ever see
// their own rows.
func (s *BorrowService) GetBorrows(ctx context.Context, filter types.BorrowFilter) ([]dto.BorrowDTO, uint64, error) {
	actorID, role, err := actorFromCtx(ctx)
	if err != nil {
		return nil, 0, err
	}
	if role == constants.RoleStudent {
		filter.BorrowerID = actorID
	}

	if err := s.SweepOverdue(ctx); err != nil {
		return nil, 0, err
	}

	list, total, err := s.borrowRepo.ListBorrows(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	result := make([]dto.BorrowDTO, 0, len(list))
	for i := range list {
		result = append(result, dto.BorrowDTOFromEntity(&list[i]))
	}
	return result, total, nil
}

func (s *BorrowService) FindBorrow(ctx context.Context, borrowID uint64) (*dto.BorrowDTO, error) {
	actorID, role, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.SweepOverdue(ctx); err != nil {
		return nil, err
	}

	borrow, err := s.borrowRepo.FindBorrow(ctx, borrowID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("borrow %d does not exist", borrowID)
		}
		return nil, err
	}

	if role == constants.RoleStudent {
		if err := s.authorizeBorrower(ctx, borrow, actorID); err != nil {
			return nil, err
		}
	}

	out := dto.BorrowDTOFromEntity(borrow)
	return &out, nil
}
