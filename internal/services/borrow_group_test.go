package services

import (
	"context"
	"testing"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lending-system/internal/dto"
	"lending-system/internal/entities"
	"lending-system/pkg/constants"
	apperrors "lending-system/pkg/errors"
)

type groupFixture struct {
	svc           BorrowGroupServiceInterface
	borrowRepo    *fakeBorrowRepo
	equipmentRepo *fakeEquipmentRepo
	classRepo     *fakeClassRepo
	clock         *fakeClock
}

func newGroupFixture() *groupFixture {
	f := &groupFixture{
		borrowRepo:    newFakeBorrowRepo(),
		equipmentRepo: newFakeEquipmentRepo(),
		classRepo:     newFakeClassRepo(),
		clock:         &fakeClock{now: ts(9)},
	}
	f.svc = NewBorrowGroupService(
		fakeTxManager{}, f.borrowRepo, f.equipmentRepo, f.classRepo, f.clock, zap.NewNop(),
	)
	return f
}

const testGroupID = "9b1c4e6a-3f2d-4b8e-a7c5-d0e9f1a2b3c4"

func (f *groupFixture) addGroupBorrow(equipmentID uint64, status string) uint64 {
	b := approvedBorrow(equipmentID, status, ts(10), ts(14))
	group := testGroupID
	b.BorrowGroupID = &group
	return f.borrowRepo.add(b)
}

func TestApproveGroupOnlyTouchesPendingRows(t *testing.T) {
	f := newGroupFixture()
	eq := f.equipmentRepo.add(entities.Equipment{Name: "Camera", StockCount: 3, Status: constants.EquipmentStatusAvailable})

	pendingID := f.addGroupBorrow(eq, constants.BorrowStatusPending)
	cancelledID := f.addGroupBorrow(eq, constants.BorrowStatusCancelled)
	activeID := f.addGroupBorrow(eq, constants.BorrowStatusActive)

	res, err := f.svc.ApproveGroup(authedCtx(5, constants.RoleStaff), testGroupID, dto.ApproveBorrowDTO{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.UpdatedCount)

	b, _ := f.borrowRepo.FindBorrow(context.Background(), pendingID)
	assert.Equal(t, constants.BorrowStatusApproved, b.BorrowStatus)
	require.NotNil(t, b.ApprovedByStaffID)

	b, _ = f.borrowRepo.FindBorrow(context.Background(), cancelledID)
	assert.Equal(t, constants.BorrowStatusCancelled, b.BorrowStatus)
	b, _ = f.borrowRepo.FindBorrow(context.Background(), activeID)
	assert.Equal(t, constants.BorrowStatusActive, b.BorrowStatus)
}

func TestApproveGroupWithNoEligibleRowsReturnsZero(t *testing.T) {
	f := newGroupFixture()
	eq := f.equipmentRepo.add(entities.Equipment{Name: "Camera", StockCount: 1, Status: constants.EquipmentStatusAvailable})
	f.addGroupBorrow(eq, constants.BorrowStatusReturned)

	res, err := f.svc.ApproveGroup(authedCtx(5, constants.RoleStaff), testGroupID, dto.ApproveBorrowDTO{})
	require.NoError(t, err)
	assert.Zero(t, res.UpdatedCount)
}

func TestApproveGroupRejectsInvertedWindowFromPartialOverride(t *testing.T) {
	f := newGroupFixture()
	eq := f.equipmentRepo.add(entities.Equipment{Name: "Camera", StockCount: 1, Status: constants.EquipmentStatusAvailable})
	id := f.addGroupBorrow(eq, constants.BorrowStatusPending)

	// Rows requested [10:00, 14:00); overriding only the end to 08:00 would
	// leave each row with approvedEnd before approvedStart.
	_, err := f.svc.ApproveGroup(authedCtx(5, constants.RoleStaff), testGroupID, dto.ApproveBorrowDTO{
		ApprovedEndTime: null.TimeFrom(ts(8)),
	})
	require.Error(t, err)
	var httpErr *apperrors.HttpError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 400, httpErr.Code)

	b, _ := f.borrowRepo.FindBorrow(context.Background(), id)
	assert.Equal(t, constants.BorrowStatusPending, b.BorrowStatus)
	require.NotNil(t, b.ApprovedEndTime)
	assert.Equal(t, ts(14), *b.ApprovedEndTime)
}

func TestApproveGroupUnknownGroup(t *testing.T) {
	f := newGroupFixture()

	_, err := f.svc.ApproveGroup(authedCtx(5, constants.RoleStaff), "no-such-group", dto.ApproveBorrowDTO{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCheckoutGroupMarksEquipmentBorrowed(t *testing.T) {
	f := newGroupFixture()
	eq1 := f.equipmentRepo.add(entities.Equipment{Name: "Camera", StockCount: 1, Status: constants.EquipmentStatusAvailable})
	eq2 := f.equipmentRepo.add(entities.Equipment{Name: "Oscilloscope", StockCount: 3, Status: constants.EquipmentStatusAvailable})

	f.addGroupBorrow(eq1, constants.BorrowStatusApproved)
	f.addGroupBorrow(eq2, constants.BorrowStatusApproved)

	res, err := f.svc.CheckoutGroup(authedCtx(5, constants.RoleStaff), testGroupID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.UpdatedCount)

	// eq1 has one unit, now held; eq2 still has two free units.
	equipment, _ := f.equipmentRepo.FindEquipment(context.Background(), eq1)
	assert.Equal(t, constants.EquipmentStatusBorrowed, equipment.Status)
	equipment, _ = f.equipmentRepo.FindEquipment(context.Background(), eq2)
	assert.Equal(t, constants.EquipmentStatusAvailable, equipment.Status)
}

func TestConfirmReturnGroupCountsOnlyPendingReturnRows(t *testing.T) {
	f := newGroupFixture()
	eq := f.equipmentRepo.add(entities.Equipment{Name: "Camera", StockCount: 3, Status: constants.EquipmentStatusBorrowed})

	returnable := f.addGroupBorrow(eq, constants.BorrowStatusPendingReturn)
	f.addGroupBorrow(eq, constants.BorrowStatusActive)
	f.addGroupBorrow(eq, constants.BorrowStatusReturned)

	res, err := f.svc.ConfirmReturnGroup(authedCtx(5, constants.RoleStaff), testGroupID, dto.ConfirmReturnDTO{
		ReturnCondition: "good",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.UpdatedCount)

	b, _ := f.borrowRepo.FindBorrow(context.Background(), returnable)
	assert.Equal(t, constants.BorrowStatusReturned, b.BorrowStatus)
	require.NotNil(t, b.ReturnCondition)

	// One ACTIVE row remains against a stock of three: a unit is free again.
	equipment, _ := f.equipmentRepo.FindEquipment(context.Background(), eq)
	assert.Equal(t, constants.EquipmentStatusAvailable, equipment.Status)
}

func TestRejectGroupByFacultyChecksEveryClass(t *testing.T) {
	f := newGroupFixture()
	f.classRepo.classes[30] = &entities.Class{ID: 30, Code: "CS-301", FicID: 7}
	f.classRepo.classes[31] = &entities.Class{ID: 31, Code: "CS-442", FicID: 8}
	eq := f.equipmentRepo.add(entities.Equipment{Name: "Camera", StockCount: 2, Status: constants.EquipmentStatusAvailable})

	class30, class31 := uint64(30), uint64(31)
	id1 := f.addGroupBorrow(eq, constants.BorrowStatusPending)
	id2 := f.addGroupBorrow(eq, constants.BorrowStatusPending)
	f.borrowRepo.borrows[id1].ClassID = &class30
	f.borrowRepo.borrows[id2].ClassID = &class31

	// Faculty 7 is in charge of one class but not the other.
	_, err := f.svc.RejectGroup(authedCtx(7, constants.RoleFaculty), testGroupID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	res, err := f.svc.RejectGroup(authedCtx(5, constants.RoleStaff), testGroupID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.UpdatedCount)

	b, _ := f.borrowRepo.FindBorrow(context.Background(), id1)
	assert.Equal(t, constants.BorrowStatusRejectedStaff, b.BorrowStatus)
}

func TestRequestReturnGroupRequiresMembership(t *testing.T) {
	f := newGroupFixture()
	eq := f.equipmentRepo.add(entities.Equipment{Name: "Camera", StockCount: 1, Status: constants.EquipmentStatusBorrowed})
	id := f.addGroupBorrow(eq, constants.BorrowStatusActive)

	_, err := f.svc.RequestReturnGroup(authedCtx(99, constants.RoleStudent), testGroupID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	// Borrower id 1 owns the rows.
	res, err := f.svc.RequestReturnGroup(authedCtx(1, constants.RoleStudent), testGroupID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.UpdatedCount)

	b, _ := f.borrowRepo.FindBorrow(context.Background(), id)
	assert.Equal(t, constants.BorrowStatusPendingReturn, b.BorrowStatus)
}
