package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"lending-system/internal/dto"
	"lending-system/internal/entities"
	"lending-system/internal/repositories"
	"lending-system/pkg/constants"
	apperrors "lending-system/pkg/errors"
)

type AvailabilityServiceInterface interface {
	CheckAvailability(ctx context.Context, equipmentID uint64, start, end time.Time) (*dto.AvailabilityCheckDTO, error)
	AvailableUnitsInRange(ctx context.Context, equipmentID uint64, start, end time.Time) (*dto.AvailableUnitsDTO, error)

	// AdmitInTx is the transactional form used by submission flows: the
	// caller holds a row lock on the equipment, and a ConflictError naming
	// the equipment is returned when no unit is free.
	AdmitInTx(ctx context.Context, tx pgx.Tx, equipment *entities.Equipment, start, end time.Time) error
}

type AvailabilityService struct {
	borrowRepo    repositories.BorrowRepositoryInterface
	equipmentRepo repositories.EquipmentRepositoryInterface
	logger        *zap.Logger
}

func NewAvailabilityService(
	borrowRepo repositories.BorrowRepositoryInterface,
	equipmentRepo repositories.EquipmentRepositoryInterface,
	logger *zap.Logger,
) AvailabilityServiceInterface {
	return &AvailabilityService{
		borrowRepo:    borrowRepo,
		equipmentRepo: equipmentRepo,
		logger:        logger,
	}
}

// AdmitInTx counts blocking-status borrows whose effective interval overlaps
// [start, end) and admits iff the count is strictly below the stock count.
// A stock of N tolerates exactly N-1 concurrent overlaps.
func (s *AvailabilityService) AdmitInTx(ctx context.Context, tx pgx.Tx, equipment *entities.Equipment, start, end time.Time) error {
	if constants.IsHardUnavailableEquipmentStatus(equipment.Status) {
		return apperrors.NewConflictError("equipment %q is unavailable (%s)", equipment.Name, equipment.Status)
	}
	if equipment.StockCount <= 0 {
		return apperrors.NewConflictError("equipment %q has no stock", equipment.Name)
	}

	overlapping, err := s.borrowRepo.CountBlockingOverlapsInTx(ctx, tx, equipment.ID, start, end, constants.BlockingBorrowStatuses)
	if err != nil {
		return err
	}
	if overlapping >= equipment.StockCount {
		s.logger.Info("availability check rejected",
			zap.Uint64("equipmentId", equipment.ID),
			zap.Int("overlapping", overlapping),
			zap.Int("stock", equipment.StockCount))
		return apperrors.NewConflictError("equipment %q is not available for the requested interval", equipment.Name)
	}
	return nil
}

func (s *AvailabilityService) CheckAvailability(ctx context.Context, equipmentID uint64, start, end time.Time) (*dto.AvailabilityCheckDTO, error) {
	if !end.After(start) {
		return nil, apperrors.NewValidationError("end time must be after start time")
	}

	equipment, err := s.equipmentRepo.FindEquipment(ctx, equipmentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("equipment %d does not exist", equipmentID)
		}
		return nil, err
	}

	result := &dto.AvailabilityCheckDTO{EquipmentID: equipmentID}
	if err := s.AdmitInTx(ctx, nil, equipment, start, end); err != nil {
		var httpErr *apperrors.HttpError
		if errors.As(err, &httpErr) && httpErr.Code == http.StatusConflict {
			result.Available = false
			result.UnavailableReason = null.StringFrom(httpErr.Message)
			return result, nil
		}
		return nil, err
	}

	result.Available = true
	return result, nil
}

// AvailableUnitsInRange returns max(0, stock - overlapping) for surfacing
// partial availability in calendar browsing.
func (s *AvailabilityService) AvailableUnitsInRange(ctx context.Context, equipmentID uint64, start, end time.Time) (*dto.AvailableUnitsDTO, error) {
	if !end.After(start) {
		return nil, apperrors.NewValidationError("end time must be after start time")
	}

	equipment, err := s.equipmentRepo.FindEquipment(ctx, equipmentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("equipment %d does not exist", equipmentID)
		}
		return nil, err
	}

	units := 0
	if !constants.IsHardUnavailableEquipmentStatus(equipment.Status) {
		overlapping, err := s.borrowRepo.CountBlockingOverlapsInTx(ctx, nil, equipmentID, start, end, constants.BlockingBorrowStatuses)
		if err != nil {
			return nil, err
		}
		units = equipment.StockCount - overlapping
		if units < 0 {
			units = 0
		}
	}

	return &dto.AvailableUnitsDTO{
		EquipmentID:    equipmentID,
		RangeStart:     start,
		RangeEnd:       end,
		AvailableUnits: units,
	}, nil
}
