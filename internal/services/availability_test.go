package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lending-system/internal/entities"
	"lending-system/pkg/constants"
	apperrors "lending-system/pkg/errors"
)

func ts(hour int) time.Time {
	return time.Date(2026, 3, 10, hour, 0, 0, 0, time.UTC)
}

func approvedBorrow(equipmentID uint64, status string, start, end time.Time) entities.Borrow {
	return entities.Borrow{
		EquipmentID:        equipmentID,
		BorrowerID:         1,
		RequestedStartTime: start,
		RequestedEndTime:   end,
		ApprovedStartTime:  &start,
		ApprovedEndTime:    &end,
		BorrowStatus:       status,
	}
}

func TestAdmitRespectsStockBound(t *testing.T) {
	borrowRepo := newFakeBorrowRepo()
	equipmentRepo := newFakeEquipmentRepo()
	svc := NewAvailabilityService(borrowRepo, equipmentRepo, zap.NewNop())

	eqID := equipmentRepo.add(entities.Equipment{
		Name: "Oscilloscope", StockCount: 2, Status: constants.EquipmentStatusAvailable,
	})
	equipment, err := equipmentRepo.FindEquipment(context.Background(), eqID)
	require.NoError(t, err)

	// One overlapping APPROVED borrow leaves one free unit.
	borrowRepo.add(approvedBorrow(eqID, constants.BorrowStatusApproved, ts(10), ts(14)))
	err = svc.AdmitInTx(context.Background(), nil, equipment, ts(11), ts(13))
	assert.NoError(t, err)

	// A second overlapping blocking borrow exhausts the stock.
	borrowRepo.add(approvedBorrow(eqID, constants.BorrowStatusActive, ts(9), ts(15)))
	err = svc.AdmitInTx(context.Background(), nil, equipment, ts(11), ts(13))
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestAdmitTouchingIntervalsDoNotConflict(t *testing.T) {
	borrowRepo := newFakeBorrowRepo()
	equipmentRepo := newFakeEquipmentRepo()
	svc := NewAvailabilityService(borrowRepo, equipmentRepo, zap.NewNop())

	eqID := equipmentRepo.add(entities.Equipment{
		Name: "Camera", StockCount: 1, Status: constants.EquipmentStatusAvailable,
	})
	equipment, _ := equipmentRepo.FindEquipment(context.Background(), eqID)

	borrowRepo.add(approvedBorrow(eqID, constants.BorrowStatusApproved, ts(10), ts(12)))

	// [12, 14) starts exactly where [10, 12) ends.
	assert.NoError(t, svc.AdmitInTx(context.Background(), nil, equipment, ts(12), ts(14)))
	// [8, 10) ends exactly where [10, 12) starts.
	assert.NoError(t, svc.AdmitInTx(context.Background(), nil, equipment, ts(8), ts(10)))
	// One minute of overlap conflicts.
	assert.Error(t, svc.AdmitInTx(context.Background(), nil, equipment, ts(11), ts(13)))
}

func TestAdmitPendingDoesNotBlock(t *testing.T) {
	borrowRepo := newFakeBorrowRepo()
	equipmentRepo := newFakeEquipmentRepo()
	svc := NewAvailabilityService(borrowRepo, equipmentRepo, zap.NewNop())

	eqID := equipmentRepo.add(entities.Equipment{
		Name: "Soldering Station", StockCount: 1, Status: constants.EquipmentStatusAvailable,
	})
	equipment, _ := equipmentRepo.FindEquipment(context.Background(), eqID)

	borrowRepo.add(approvedBorrow(eqID, constants.BorrowStatusPending, ts(10), ts(14)))
	borrowRepo.add(approvedBorrow(eqID, constants.BorrowStatusPending, ts(10), ts(14)))

	assert.NoError(t, svc.AdmitInTx(context.Background(), nil, equipment, ts(10), ts(14)))
}

func TestAdmitUsesApprovedIntervalWhenPresent(t *testing.T) {
	borrowRepo := newFakeBorrowRepo()
	equipmentRepo := newFakeEquipmentRepo()
	svc := NewAvailabilityService(borrowRepo, equipmentRepo, zap.NewNop())

	eqID := equipmentRepo.add(entities.Equipment{
		Name: "Thermal Camera", StockCount: 1, Status: constants.EquipmentStatusAvailable,
	})
	equipment, _ := equipmentRepo.FindEquipment(context.Background(), eqID)

	// Requested [10, 12) but approved for [14, 16): the approved window is
	// the one that blocks.
	approvedStart, approvedEnd := ts(14), ts(16)
	borrowRepo.add(entities.Borrow{
		EquipmentID:        eqID,
		BorrowerID:         1,
		RequestedStartTime: ts(10),
		RequestedEndTime:   ts(12),
		ApprovedStartTime:  &approvedStart,
		ApprovedEndTime:    &approvedEnd,
		BorrowStatus:       constants.BorrowStatusApproved,
	})

	assert.NoError(t, svc.AdmitInTx(context.Background(), nil, equipment, ts(10), ts(12)))
	assert.Error(t, svc.AdmitInTx(context.Background(), nil, equipment, ts(15), ts(17)))
}

func TestAdmitHardUnavailableEquipment(t *testing.T) {
	borrowRepo := newFakeBorrowRepo()
	equipmentRepo := newFakeEquipmentRepo()
	svc := NewAvailabilityService(borrowRepo, equipmentRepo, zap.NewNop())

	eqID := equipmentRepo.add(entities.Equipment{
		Name: "Spectrum Analyzer", StockCount: 3, Status: constants.EquipmentStatusUnderMaintenance,
	})
	equipment, _ := equipmentRepo.FindEquipment(context.Background(), eqID)

	err := svc.AdmitInTx(context.Background(), nil, equipment, ts(10), ts(12))
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestCheckAvailabilityReportsReason(t *testing.T) {
	borrowRepo := newFakeBorrowRepo()
	equipmentRepo := newFakeEquipmentRepo()
	svc := NewAvailabilityService(borrowRepo, equipmentRepo, zap.NewNop())

	eqID := equipmentRepo.add(entities.Equipment{
		Name: "Camera", StockCount: 1, Status: constants.EquipmentStatusAvailable,
	})
	borrowRepo.add(approvedBorrow(eqID, constants.BorrowStatusActive, ts(10), ts(14)))

	res, err := svc.CheckAvailability(context.Background(), eqID, ts(11), ts(13))
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.True(t, res.UnavailableReason.Valid)
	assert.Contains(t, res.UnavailableReason.String, "Camera")

	res, err = svc.CheckAvailability(context.Background(), eqID, ts(14), ts(16))
	require.NoError(t, err)
	assert.True(t, res.Available)
}

func TestAvailableUnitsInRange(t *testing.T) {
	borrowRepo := newFakeBorrowRepo()
	equipmentRepo := newFakeEquipmentRepo()
	svc := NewAvailabilityService(borrowRepo, equipmentRepo, zap.NewNop())

	eqID := equipmentRepo.add(entities.Equipment{
		Name: "Oscilloscope", StockCount: 3, Status: constants.EquipmentStatusAvailable,
	})
	borrowRepo.add(approvedBorrow(eqID, constants.BorrowStatusApproved, ts(10), ts(14)))
	borrowRepo.add(approvedBorrow(eqID, constants.BorrowStatusOverdue, ts(9), ts(15)))

	res, err := svc.AvailableUnitsInRange(context.Background(), eqID, ts(11), ts(13))
	require.NoError(t, err)
	assert.Equal(t, 1, res.AvailableUnits)

	res, err = svc.AvailableUnitsInRange(context.Background(), eqID, ts(15), ts(17))
	require.NoError(t, err)
	assert.Equal(t, 3, res.AvailableUnits)
}
