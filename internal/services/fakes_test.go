package services

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"lending-system/internal/entities"
	"lending-system/internal/repositories"
	"lending-system/pkg/constants"
	apperrors "lending-system/pkg/errors"
	"lending-system/pkg/types"
	"lending-system/pkg/utils"
)

// fakeTxManager runs the callback without a real transaction; the fake
// repositories ignore the tx argument.
type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// ----- borrow repository -----

type fakeBorrowRepo struct {
	nextID  uint64
	borrows map[uint64]*entities.Borrow
	mates   map[string]map[uint64]bool
}

func newFakeBorrowRepo() *fakeBorrowRepo {
	return &fakeBorrowRepo{
		borrows: make(map[uint64]*entities.Borrow),
		mates:   make(map[string]map[uint64]bool),
	}
}

func (r *fakeBorrowRepo) add(b entities.Borrow) uint64 {
	r.nextID++
	b.ID = r.nextID
	r.borrows[b.ID] = &b
	return b.ID
}

func (r *fakeBorrowRepo) CreateBorrowInTx(ctx context.Context, tx pgx.Tx, b *entities.Borrow) (uint64, error) {
	return r.add(*b), nil
}

func (r *fakeBorrowRepo) FindBorrow(ctx context.Context, id uint64) (*entities.Borrow, error) {
	b, ok := r.borrows[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *fakeBorrowRepo) FindBorrowInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Borrow, error) {
	return r.FindBorrow(ctx, id)
}

func (r *fakeBorrowRepo) sortedIDs() []uint64 {
	ids := make([]uint64, 0, len(r.borrows))
	for id := range r.borrows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *fakeBorrowRepo) ListBorrows(ctx context.Context, filter types.BorrowFilter) ([]entities.Borrow, uint64, error) {
	var matched []entities.Borrow
	for _, id := range r.sortedIDs() {
		b := r.borrows[id]
		if filter.Status != "" && b.BorrowStatus != filter.Status {
			continue
		}
		if filter.BorrowerID != 0 && b.BorrowerID != filter.BorrowerID {
			continue
		}
		matched = append(matched, *b)
	}

	total := uint64(len(matched))
	if filter.Offset >= total {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && uint64(len(matched)) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (r *fakeBorrowRepo) ListGroupInTx(ctx context.Context, tx pgx.Tx, groupID string) ([]entities.Borrow, error) {
	var out []entities.Borrow
	for _, id := range r.sortedIDs() {
		b := r.borrows[id]
		if b.BorrowGroupID != nil && *b.BorrowGroupID == groupID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func statusIn(status string, set []string) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func (r *fakeBorrowRepo) ApplyTransitionInTx(ctx context.Context, tx pgx.Tx, id uint64, expected []string, change repositories.BorrowChange) (bool, error) {
	b, ok := r.borrows[id]
	if !ok || !statusIn(b.BorrowStatus, expected) {
		return false, nil
	}

	b.BorrowStatus = change.NewStatus
	if change.ApprovedStartTime != nil {
		b.ApprovedStartTime = change.ApprovedStartTime
	}
	if change.ApprovedEndTime != nil {
		b.ApprovedEndTime = change.ApprovedEndTime
	}
	if change.CheckoutTime != nil {
		b.CheckoutTime = change.CheckoutTime
	}
	if change.ActualReturnTime != nil {
		b.ActualReturnTime = change.ActualReturnTime
	}
	if change.ApprovedByStaffID != nil {
		b.ApprovedByStaffID = change.ApprovedByStaffID
	}
	if change.ApprovedByFicID != nil {
		b.ApprovedByFicID = change.ApprovedByFicID
	}
	if change.ClearApprovers {
		b.ApprovedByStaffID = nil
		b.ApprovedByFicID = nil
	}
	if change.ReturnCondition != nil {
		b.ReturnCondition = change.ReturnCondition
	}
	if change.ReturnRemarks != nil {
		b.ReturnRemarks = change.ReturnRemarks
	}
	return true, nil
}

func (r *fakeBorrowRepo) CountBlockingOverlapsInTx(ctx context.Context, tx pgx.Tx, equipmentID uint64, start, end time.Time, statuses []string) (int, error) {
	count := 0
	for _, b := range r.borrows {
		if b.EquipmentID != equipmentID || !statusIn(b.BorrowStatus, statuses) {
			continue
		}
		if utils.IntervalsOverlap(b.EffectiveStart(), b.EffectiveEnd(), start, end) {
			count++
		}
	}
	return count, nil
}

func (r *fakeBorrowRepo) CountByEquipmentAndStatusesInTx(ctx context.Context, tx pgx.Tx, equipmentID uint64, statuses []string, excludeBorrowID uint64) (int, error) {
	count := 0
	for _, b := range r.borrows {
		if b.EquipmentID != equipmentID || b.ID == excludeBorrowID {
			continue
		}
		if statusIn(b.BorrowStatus, statuses) {
			count++
		}
	}
	return count, nil
}

func (r *fakeBorrowRepo) SweepOverdueInTx(ctx context.Context, tx pgx.Tx, now time.Time) (int64, error) {
	var n int64
	for _, b := range r.borrows {
		if b.BorrowStatus == constants.BorrowStatusActive &&
			b.ApprovedEndTime != nil && b.ApprovedEndTime.Before(now) {
			b.BorrowStatus = constants.BorrowStatusOverdue
			n++
		}
	}
	return n, nil
}

func (r *fakeBorrowRepo) ExpirePendingInTx(ctx context.Context, tx pgx.Tx, now time.Time) (int64, error) {
	var n int64
	for _, b := range r.borrows {
		if b.BorrowStatus == constants.BorrowStatusPending && b.EffectiveEnd().Before(now) {
			b.BorrowStatus = constants.BorrowStatusRejectedAutomatic
			n++
		}
	}
	return n, nil
}

func (r *fakeBorrowRepo) AddGroupMatesInTx(ctx context.Context, tx pgx.Tx, groupID string, userIDs []uint64) error {
	if r.mates[groupID] == nil {
		r.mates[groupID] = make(map[uint64]bool)
	}
	for _, id := range userIDs {
		r.mates[groupID][id] = true
	}
	return nil
}

func (r *fakeBorrowRepo) IsGroupMember(ctx context.Context, groupID string, userID uint64) (bool, error) {
	for _, b := range r.borrows {
		if b.BorrowGroupID != nil && *b.BorrowGroupID == groupID && b.BorrowerID == userID {
			return true, nil
		}
	}
	return r.mates[groupID][userID], nil
}

// ----- equipment repository -----

type fakeEquipmentRepo struct {
	nextID     uint64
	equipments map[uint64]*entities.Equipment
	stats      map[uint64]entities.EquipmentWithStats
}

func newFakeEquipmentRepo() *fakeEquipmentRepo {
	return &fakeEquipmentRepo{
		equipments: make(map[uint64]*entities.Equipment),
		stats:      make(map[uint64]entities.EquipmentWithStats),
	}
}

func (r *fakeEquipmentRepo) add(e entities.Equipment) uint64 {
	r.nextID++
	e.ID = r.nextID
	r.equipments[e.ID] = &e
	return e.ID
}

func (r *fakeEquipmentRepo) GetEquipments(ctx context.Context, filter types.EquipmentFilter) ([]entities.EquipmentWithStats, uint64, error) {
	ids := make([]uint64, 0, len(r.equipments))
	for id := range r.equipments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var matched []entities.EquipmentWithStats
	for _, id := range ids {
		e := r.equipments[id]
		if !filter.IncludeArchived && e.Status == constants.EquipmentStatusArchived {
			continue
		}
		row := entities.EquipmentWithStats{Equipment: *e}
		if stats, ok := r.stats[id]; ok {
			row = stats
		}
		if filter.DerivedStatus != "" &&
			DeriveEquipmentStatus(row.Status, row.StockCount, row.ActiveBorrowCount) != filter.DerivedStatus {
			continue
		}
		matched = append(matched, row)
	}

	total := uint64(len(matched))
	if filter.Offset >= total {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && uint64(len(matched)) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (r *fakeEquipmentRepo) FindEquipment(ctx context.Context, id uint64) (*entities.Equipment, error) {
	e, ok := r.equipments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *fakeEquipmentRepo) FindEquipmentWithStats(ctx context.Context, id uint64) (*entities.EquipmentWithStats, error) {
	e, ok := r.equipments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if stats, ok := r.stats[id]; ok {
		copied := stats
		return &copied, nil
	}
	return &entities.EquipmentWithStats{Equipment: *e}, nil
}

func (r *fakeEquipmentRepo) FindEquipmentForUpdateInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Equipment, error) {
	return r.FindEquipment(ctx, id)
}

func (r *fakeEquipmentRepo) CreateEquipment(ctx context.Context, e entities.Equipment) (uint64, error) {
	return r.add(e), nil
}

func (r *fakeEquipmentRepo) UpdateEquipment(ctx context.Context, id uint64, e entities.Equipment) error {
	existing, ok := r.equipments[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	existing.Name = e.Name
	existing.Description = e.Description
	existing.StockCount = e.StockCount
	existing.Status = e.Status
	return nil
}

func (r *fakeEquipmentRepo) UpdateEquipmentStatusInTx(ctx context.Context, tx pgx.Tx, id uint64, status string) error {
	e, ok := r.equipments[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	e.Status = status
	return nil
}

func (r *fakeEquipmentRepo) ArchiveEquipment(ctx context.Context, id uint64) error {
	return r.UpdateEquipmentStatusInTx(ctx, nil, id, constants.EquipmentStatusArchived)
}

// ----- class repository -----

type fakeClassRepo struct {
	classes map[uint64]*entities.Class
}

func newFakeClassRepo() *fakeClassRepo {
	return &fakeClassRepo{classes: make(map[uint64]*entities.Class)}
}

func (r *fakeClassRepo) FindClass(ctx context.Context, id uint64) (*entities.Class, error) {
	c, ok := r.classes[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

// ----- user repository -----

type fakeUserRepo struct {
	users map[uint64]*entities.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uint64]*entities.User)}
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id uint64) (*entities.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserRepo) MissingIDs(ctx context.Context, ids []uint64) ([]uint64, error) {
	var missing []uint64
	for _, id := range ids {
		if _, ok := r.users[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
