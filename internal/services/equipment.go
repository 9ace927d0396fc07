package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"lending-system/internal/dto"
	"lending-system/internal/entities"
	"lending-system/internal/repositories"
	"lending-system/pkg/constants"
	apperrors "lending-system/pkg/errors"
	"lending-system/pkg/types"
)

// DeriveEquipmentStatus computes the presentation status from the stored
// status and live borrow counters. Hard-unavailable stored statuses win
// unconditionally; otherwise availability is unit-count-driven, so a stored
// RESERVED with free units still derives AVAILABLE.
func DeriveEquipmentStatus(stored string, stockCount, activeBorrowCount int) string {
	if constants.IsHardUnavailableEquipmentStatus(stored) {
		return stored
	}
	if stockCount-activeBorrowCount <= 0 {
		return constants.EquipmentStatusBorrowed
	}
	return constants.EquipmentStatusAvailable
}

type EquipmentServiceInterface interface {
	GetEquipments(ctx context.Context, statusFilter string, limit, offset uint64) ([]dto.EquipmentDTO, uint64, error)
	FindEquipment(ctx context.Context, id uint64) (*dto.EquipmentDTO, error)
	CreateEquipment(ctx context.Context, data dto.CreateEquipmentDTO) (uint64, error)
	UpdateEquipment(ctx context.Context, id uint64, data dto.UpdateEquipmentDTO) error
	ArchiveEquipment(ctx context.Context, id uint64) error
	ExportEquipments(ctx context.Context) (*excelize.File, error)
}

type EquipmentService struct {
	equipmentRepo repositories.EquipmentRepositoryInterface
	logger        *zap.Logger
}

func NewEquipmentService(
	equipmentRepo repositories.EquipmentRepositoryInterface,
	logger *zap.Logger,
) EquipmentServiceInterface {
	return &EquipmentService{
		equipmentRepo: equipmentRepo,
		logger:        logger,
	}
}

// GetEquipments lists equipment with derived statuses. The status filter is
// matched against the derived status; ARCHIVED rows only appear when that
// status is asked for explicitly.
func (s *EquipmentService) GetEquipments(ctx context.Context, statusFilter string, limit, offset uint64) ([]dto.EquipmentDTO, uint64, error) {
	if statusFilter != "" && !constants.IsValidEquipmentStatus(statusFilter) {
		return nil, 0, apperrors.NewValidationError("unknown equipment status %q", statusFilter)
	}

	includeArchived := statusFilter == constants.EquipmentStatusArchived
	list, total, err := s.equipmentRepo.GetEquipments(ctx, types.EquipmentFilter{
		DerivedStatus:   statusFilter,
		IncludeArchived: includeArchived,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		return nil, 0, err
	}

	result := make([]dto.EquipmentDTO, 0, len(list))
	for i := range list {
		e := &list[i]
		derived := DeriveEquipmentStatus(e.Status, e.StockCount, e.ActiveBorrowCount)
		result = append(result, dto.EquipmentDTOFromStats(e, derived))
	}
	return result, total, nil
}

func (s *EquipmentService) FindEquipment(ctx context.Context, id uint64) (*dto.EquipmentDTO, error) {
	e, err := s.equipmentRepo.FindEquipmentWithStats(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("equipment %d does not exist", id)
		}
		return nil, err
	}

	derived := DeriveEquipmentStatus(e.Status, e.StockCount, e.ActiveBorrowCount)
	out := dto.EquipmentDTOFromStats(e, derived)
	return &out, nil
}

func (s *EquipmentService) CreateEquipment(ctx context.Context, data dto.CreateEquipmentDTO) (uint64, error) {
	status := data.Status
	if status == "" {
		status = constants.EquipmentStatusAvailable
	}

	return s.equipmentRepo.CreateEquipment(ctx, entities.Equipment{
		Name:        data.Name,
		Description: data.Description,
		StockCount:  data.StockCount,
		Status:      status,
	})
}

func (s *EquipmentService) UpdateEquipment(ctx context.Context, id uint64, data dto.UpdateEquipmentDTO) error {
	err := s.equipmentRepo.UpdateEquipment(ctx, id, entities.Equipment{
		Name:        data.Name,
		Description: data.Description,
		StockCount:  data.StockCount,
		Status:      data.Status,
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NewNotFoundError("equipment %d does not exist", id)
	}
	return err
}

// ArchiveEquipment soft-archives; borrow history keeps its reference.
func (s *EquipmentService) ArchiveEquipment(ctx context.Context, id uint64) error {
	err := s.equipmentRepo.ArchiveEquipment(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NewNotFoundError("equipment %d does not exist", id)
	}
	return err
}

// ExportEquipments renders the inventory with derived statuses as an XLSX
// workbook.
func (s *EquipmentService) ExportEquipments(ctx context.Context) (*excelize.File, error) {
	list, _, err := s.equipmentRepo.GetEquipments(ctx, types.EquipmentFilter{
		IncludeArchived: true,
		Limit:           types.MaxLimit,
	})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "Inventory"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Name", "Stock", "Stored Status", "Derived Status", "Active Borrows"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write export header: %w", err)
		}
	}

	for row := range list {
		e := &list[row]
		derived := DeriveEquipmentStatus(e.Status, e.StockCount, e.ActiveBorrowCount)
		values := []interface{}{e.ID, e.Name, e.StockCount, e.Status, derived, e.ActiveBorrowCount}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write export row: %w", err)
			}
		}
	}

	s.logger.Info("equipment inventory exported", zap.Int("rows", len(list)))
	return f, nil
}
