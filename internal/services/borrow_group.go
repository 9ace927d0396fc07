package services

import (
	"context"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"lending-system/internal/dto"
	"lending-system/internal/entities"
	"lending-system/internal/repositories"
	"lending-system/pkg/constants"
	apperrors "lending-system/pkg/errors"
)

// BorrowGroupServiceInterface applies lifecycle transitions to a whole
// borrow group at once. Each bulk operation touches only the rows that
// satisfy the transition's precondition and reports how many it moved;
// zero matching rows is a valid outcome, not an error.
type BorrowGroupServiceInterface interface {
	ApproveGroup(ctx context.Context, groupID string, data dto.ApproveBorrowDTO) (*dto.TransitionResultDTO, error)
	RejectGroup(ctx context.Context, groupID string) (*dto.TransitionResultDTO, error)
	CheckoutGroup(ctx context.Context, groupID string) (*dto.TransitionResultDTO, error)
	RequestReturnGroup(ctx context.Context, groupID string) (*dto.TransitionResultDTO, error)
	ConfirmReturnGroup(ctx context.Context, groupID string, data dto.ConfirmReturnDTO) (*dto.TransitionResultDTO, error)
}

type BorrowGroupService struct {
	txManager     repositories.TxManagerInterface
	borrowRepo    repositories.BorrowRepositoryInterface
	equipmentRepo repositories.EquipmentRepositoryInterface
	classRepo     repositories.ClassRepositoryInterface
	clock         Clock
	logger        *zap.Logger
}

func NewBorrowGroupService(
	txManager repositories.TxManagerInterface,
	borrowRepo repositories.BorrowRepositoryInterface,
	equipmentRepo repositories.EquipmentRepositoryInterface,
	classRepo repositories.ClassRepositoryInterface,
	clock Clock,
	logger *zap.Logger,
) BorrowGroupServiceInterface {
	return &BorrowGroupService{
		txManager:     txManager,
		borrowRepo:    borrowRepo,
		equipmentRepo: equipmentRepo,
		classRepo:     classRepo,
		clock:         clock,
		logger:        logger,
	}
}

// loadGroup returns the group's rows locked for the rest of the
// transaction, sweeping time corrections first so preconditions are judged
// against current statuses.
func (s *BorrowGroupService) loadGroup(ctx context.Context, tx pgx.Tx, groupID string) ([]entities.Borrow, error) {
	now := s.clock.Now()
	if _, err := s.borrowRepo.SweepOverdueInTx(ctx, tx, now); err != nil {
		return nil, err
	}
	if _, err := s.borrowRepo.ExpirePendingInTx(ctx, tx, now); err != nil {
		return nil, err
	}

	rows, err := s.borrowRepo.ListGroupInTx(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewNotFoundError("borrow group %s does not exist", groupID)
	}
	return rows, nil
}

// authorizeKeeperForGroup checks the staff/faculty gate against every
// distinct class the group's rows are tied to.
func (s *BorrowGroupService) authorizeKeeperForGroup(ctx context.Context, actorID uint64, role string, rows []entities.Borrow) error {
	if role == constants.RoleStaff {
		return nil
	}
	checked := make(map[uint64]bool)
	for i := range rows {
		classID := rows[i].ClassID
		if classID != nil && checked[*classID] {
			continue
		}
		if err := authorizeKeeper(ctx, s.classRepo, actorID, role, classID); err != nil {
			return err
		}
		if classID != nil {
			checked[*classID] = true
		}
	}
	return nil
}

func (s *BorrowGroupService) authorizeMember(ctx context.Context, groupID string, actorID uint64, rows []entities.Borrow) error {
	for i := range rows {
		if rows[i].BorrowerID == actorID {
			return nil
		}
	}
	member, err := s.borrowRepo.IsGroupMember(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if !member {
		return apperrors.NewAuthorizationError("user %d is not a member of borrow group %s", actorID, groupID)
	}
	return nil
}

// reconcileEquipment recomputes the stored AVAILABLE/BORROWED flag for each
// distinct equipment touched by a bulk transition. Hard-unavailable and
// advisory RESERVED states are left alone.
func (s *BorrowGroupService) reconcileEquipment(ctx context.Context, tx pgx.Tx, equipmentIDs map[uint64]bool) error {
	for equipmentID := range equipmentIDs {
		equipment, err := s.equipmentRepo.FindEquipmentForUpdateInTx(ctx, tx, equipmentID)
		if err != nil {
			return err
		}
		if constants.IsHardUnavailableEquipmentStatus(equipment.Status) {
			continue
		}

		active, err := s.borrowRepo.CountByEquipmentAndStatusesInTx(ctx, tx, equipmentID,
			[]string{constants.BorrowStatusActive, constants.BorrowStatusOverdue}, 0)
		if err != nil {
			return err
		}

		derived := DeriveEquipmentStatus(equipment.Status, equipment.StockCount, active)
		switch {
		case derived == constants.EquipmentStatusBorrowed && equipment.Status != constants.EquipmentStatusBorrowed:
			if err := s.equipmentRepo.UpdateEquipmentStatusInTx(ctx, tx, equipmentID, constants.EquipmentStatusBorrowed); err != nil {
				return err
			}
		case derived == constants.EquipmentStatusAvailable && equipment.Status == constants.EquipmentStatusBorrowed:
			if err := s.equipmentRepo.UpdateEquipmentStatusInTx(ctx, tx, equipmentID, constants.EquipmentStatusAvailable); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *BorrowGroupService) ApproveGroup(ctx context.Context, groupID string, data dto.ApproveBorrowDTO) (*dto.TransitionResultDTO, error) {
	actorID, role, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	result := &dto.TransitionResultDTO{}
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := s.loadGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if err := s.authorizeKeeperForGroup(ctx, actorID, role, rows); err != nil {
			return err
		}

		expected := []string{constants.BorrowStatusPending}
		for i := range rows {
			if rows[i].BorrowStatus != constants.BorrowStatusPending {
				continue
			}

			approvedStart := rows[i].RequestedStartTime
			approvedEnd := rows[i].RequestedEndTime
			if data.ApprovedStartTime.Valid {
				approvedStart = data.ApprovedStartTime.Time
			}
			if data.ApprovedEndTime.Valid {
				approvedEnd = data.ApprovedEndTime.Time
			}
			if approvedEnd.Before(approvedStart) {
				return apperrors.NewValidationError(
					"approved end time must not precede start time for borrow %d", rows[i].ID)
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

			applied, err := s.borrowRepo.ApplyTransitionInTx(ctx, tx, rows[i].ID, expected, change)
			if err != nil {
				return err
			}
			if applied {
				result.UpdatedCount++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("borrow group approved",
		zap.String("groupId", groupID),
		zap.Int64("updated", result.UpdatedCount))
	return result, nil
}

func (s *BorrowGroupService) RejectGroup(ctx context.Context, groupID string) (*dto.TransitionResultDTO, error) {
	actorID, role, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	newStatus := constants.BorrowStatusRejectedStaff
	if role == constants.RoleFaculty {
		newStatus = constants.BorrowStatusRejectedFIC
	}

	result := &dto.TransitionResultDTO{}
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := s.loadGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if err := s.authorizeKeeperForGroup(ctx, actorID, role, rows); err != nil {
			return err
		}

		expected := []string{constants.BorrowStatusPending, constants.BorrowStatusApproved}
		for i := range rows {
			applied, err := s.borrowRepo.ApplyTransitionInTx(ctx, tx, rows[i].ID, expected, repositories.BorrowChange{
				NewStatus:      newStatus,
				ClearApprovers: true,
			})
			if err != nil {
				return err
			}
			if applied {
				result.UpdatedCount++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *BorrowGroupService) CheckoutGroup(ctx context.Context, groupID string) (*dto.TransitionResultDTO, error) {
	actorID, role, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	result := &dto.TransitionResultDTO{}
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := s.loadGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if err := s.authorizeKeeperForGroup(ctx, actorID, role, rows); err != nil {
			return err
		}

		now := s.clock.Now()
		expected := []string{constants.BorrowStatusApproved}
		touched := make(map[uint64]bool)
		for i := range rows {
			if rows[i].BorrowStatus != constants.BorrowStatusApproved {
				continue
			}

			newStatus := constants.BorrowStatusActive
			if rows[i].ApprovedEndTime != nil && rows[i].ApprovedEndTime.Before(now) {
				newStatus = constants.BorrowStatusOverdue
			}

			applied, err := s.borrowRepo.ApplyTransitionInTx(ctx, tx, rows[i].ID, expected, repositories.BorrowChange{
				NewStatus:    newStatus,
				CheckoutTime: &now,
			})
			if err != nil {
				return err
			}
			if applied {
				result.UpdatedCount++
				touched[rows[i].EquipmentID] = true
			}
		}

		return s.reconcileEquipment(ctx, tx, touched)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *BorrowGroupService) RequestReturnGroup(ctx context.Context, groupID string) (*dto.TransitionResultDTO, error) {
	actorID, _, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	result := &dto.TransitionResultDTO{}
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := s.loadGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if err := s.authorizeMember(ctx, groupID, actorID, rows); err != nil {
			return err
		}

		expected := []string{constants.BorrowStatusActive, constants.BorrowStatusOverdue}
		for i := range rows {
			applied, err := s.borrowRepo.ApplyTransitionInTx(ctx, tx, rows[i].ID, expected, repositories.BorrowChange{
				NewStatus: constants.BorrowStatusPendingReturn,
			})
			if err != nil {
				return err
			}
			if applied {
				result.UpdatedCount++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *BorrowGroupService) ConfirmReturnGroup(ctx context.Context, groupID string, data dto.ConfirmReturnDTO) (*dto.TransitionResultDTO, error) {
	actorID, role, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	result := &dto.TransitionResultDTO{}
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := s.loadGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if err := s.authorizeKeeperForGroup(ctx, actorID, role, rows); err != nil {
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
		touched := make(map[uint64]bool)
		for i := range rows {
			applied, err := s.borrowRepo.ApplyTransitionInTx(ctx, tx, rows[i].ID, expected, change)
			if err != nil {
				return err
			}
			if applied {
				result.UpdatedCount++
				touched[rows[i].EquipmentID] = true
			}
		}

		return s.reconcileEquipment(ctx, tx, touched)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("borrow group return confirmed",
		zap.String("groupId", groupID),
		zap.Int64("updated", result.UpdatedCount))
	return result, nil
}
