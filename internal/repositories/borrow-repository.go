package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"lending-system/internal/entities"
	"lending-system/pkg/constants"
	apperrors "lending-system/pkg/errors"
	"lending-system/pkg/types"
)

const (
	borrowTable     = "borrows"
	borrowMateTable = "borrow_group_mates"
	borrowFields    = `id, equipment_id, class_id, borrower_id,
		requested_start_time, requested_end_time, approved_start_time, approved_end_time,
		checkout_time, actual_return_time, borrow_status, borrow_group_id,
		approved_by_staff_id, approved_by_fic_id, return_condition, return_remarks,
		data_requested, data_request_status, data_request_remarks,
		created_at, updated_at`
)

// effectiveStartExpr/effectiveEndExpr resolve a borrow's effective interval
// in SQL: approved times win once present.
const (
	effectiveStartExpr = "COALESCE(approved_start_time, requested_start_time)"
	effectiveEndExpr   = "COALESCE(approved_end_time, requested_end_time)"
)

// BorrowChange describes the writable part of a status transition. Nil
// fields are left untouched; ClearApprovers resets both approver ids.
type BorrowChange struct {
	NewStatus         string
	ApprovedStartTime *time.Time
	ApprovedEndTime   *time.Time
	CheckoutTime      *time.Time
	ActualReturnTime  *time.Time
	ApprovedByStaffID *uint64
	ApprovedByFicID   *uint64
	ClearApprovers    bool
	ReturnCondition   *string
	ReturnRemarks     *string
}

type BorrowRepositoryInterface interface {
	CreateBorrowInTx(ctx context.Context, tx pgx.Tx, b *entities.Borrow) (uint64, error)
	FindBorrow(ctx context.Context, id uint64) (*entities.Borrow, error)
	FindBorrowInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Borrow, error)
	ListBorrows(ctx context.Context, filter types.BorrowFilter) ([]entities.Borrow, uint64, error)
	ListGroupInTx(ctx context.Context, tx pgx.Tx, groupID string) ([]entities.Borrow, error)

	// ApplyTransitionInTx performs the conditional status update. It reports
	// whether a row in one of the expected source statuses was updated.
	ApplyTransitionInTx(ctx context.Context, tx pgx.Tx, id uint64, expected []string, change BorrowChange) (bool, error)

	CountBlockingOverlapsInTx(ctx context.Context, tx pgx.Tx, equipmentID uint64, start, end time.Time, statuses []string) (int, error)
	CountByEquipmentAndStatusesInTx(ctx context.Context, tx pgx.Tx, equipmentID uint64, statuses []string, excludeBorrowID uint64) (int, error)

	SweepOverdueInTx(ctx context.Context, tx pgx.Tx, now time.Time) (int64, error)
	ExpirePendingInTx(ctx context.Context, tx pgx.Tx, now time.Time) (int64, error)

	AddGroupMatesInTx(ctx context.Context, tx pgx.Tx, groupID string, userIDs []uint64) error
	IsGroupMember(ctx context.Context, groupID string, userID uint64) (bool, error)
}

type borrowRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewBorrowRepository(storage *pgxpool.Pool, logger *zap.Logger) BorrowRepositoryInterface {
	return &borrowRepository{storage: storage, logger: logger}
}

func (r *borrowRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *borrowRepository) scanRow(row pgx.Row) (*entities.Borrow, error) {
	var b entities.Borrow
	err := row.Scan(
		&b.ID, &b.EquipmentID, &b.ClassID, &b.BorrowerID,
		&b.RequestedStartTime, &b.RequestedEndTime, &b.ApprovedStartTime, &b.ApprovedEndTime,
		&b.CheckoutTime, &b.ActualReturnTime, &b.BorrowStatus, &b.BorrowGroupID,
		&b.ApprovedByStaffID, &b.ApprovedByFicID, &b.ReturnCondition, &b.ReturnRemarks,
		&b.DataRequested, &b.DataRequestStatus, &b.DataRequestRemarks,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan borrows row: %w", err)
	}
	return &b, nil
}

func (r *borrowRepository) CreateBorrowInTx(ctx context.Context, tx pgx.Tx, b *entities.Borrow) (uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Insert(borrowTable).
		Columns("equipment_id", "class_id", "borrower_id",
			"requested_start_time", "requested_end_time",
			"approved_start_time", "approved_end_time",
			"checkout_time", "borrow_status", "borrow_group_id",
			"data_requested", "created_at", "updated_at").
		Values(b.EquipmentID, b.ClassID, b.BorrowerID,
			b.RequestedStartTime, b.RequestedEndTime,
			b.ApprovedStartTime, b.ApprovedEndTime,
			b.CheckoutTime, b.BorrowStatus, b.BorrowGroupID,
			b.DataRequested, sq.Expr("NOW()"), sq.Expr("NOW()")).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build borrow insert: %w", err)
	}

	var newID uint64
	if err := tx.QueryRow(ctx, query, args...).Scan(&newID); err != nil {
		return 0, fmt.Errorf("failed to insert borrow: %w", err)
	}
	return newID, nil
}

func (r *borrowRepository) findOne(ctx context.Context, querier Querier, id uint64) (*entities.Borrow, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select(borrowFields).From(borrowTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build borrow query: %w", err)
	}
	return r.scanRow(querier.QueryRow(ctx, query, args...))
}

func (r *borrowRepository) FindBorrow(ctx context.Context, id uint64) (*entities.Borrow, error) {
	return r.findOne(ctx, r.storage, id)
}

func (r *borrowRepository) FindBorrowInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Borrow, error) {
	return r.findOne(ctx, tx, id)
}

func (r *borrowRepository) ListBorrows(ctx context.Context, filter types.BorrowFilter) ([]entities.Borrow, uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	where := sq.And{}
	if filter.Status != "" {
		where = append(where, sq.Eq{"borrow_status": filter.Status})
	}
	if filter.BorrowerID != 0 {
		where = append(where, sq.Eq{"borrower_id": filter.BorrowerID})
	}

	limit := filter.Limit
	if limit == 0 || limit > types.MaxLimit {
		limit = types.DefaultLimit
	}

	builder := psql.Select(borrowFields).From(borrowTable)
	countBuilder := psql.Select("COUNT(*)").From(borrowTable)
	if len(where) > 0 {
		builder = builder.Where(where)
		countBuilder = countBuilder.Where(where)
	}

	query, args, err := builder.OrderBy("id DESC").Limit(limit).Offset(filter.Offset).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build borrows query: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query borrows: %w", err)
	}
	defer rows.Close()

	var list []entities.Borrow
	for rows.Next() {
		b, err := r.scanRow(rows)
		if err != nil {
			r.logger.Error("failed to scan borrow row", zap.Error(err))
			return nil, 0, err
		}
		list = append(list, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate borrows: %w", err)
	}

	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build borrows count query: %w", err)
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count borrows: %w", err)
	}

	return list, total, nil
}

// ListGroupInTx loads every member row of a borrow group with row locks, so
// group transitions see a stable snapshot.
func (r *borrowRepository) ListGroupInTx(ctx context.Context, tx pgx.Tx, groupID string) ([]entities.Borrow, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select(borrowFields).
		From(borrowTable).
		Where(sq.Eq{"borrow_group_id": groupID}).
		OrderBy("id").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build group query: %w", err)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query borrow group: %w", err)
	}
	defer rows.Close()

	var list []entities.Borrow
	for rows.Next() {
		b, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate borrow group: %w", err)
	}
	return list, nil
}

func (r *borrowRepository) ApplyTransitionInTx(ctx context.Context, tx pgx.Tx, id uint64, expected []string, change BorrowChange) (bool, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	builder := psql.Update(borrowTable).
		Set("borrow_status", change.NewStatus).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "borrow_status": expected})

	if change.ApprovedStartTime != nil {
		builder = builder.Set("approved_start_time", *change.ApprovedStartTime)
	}
	if change.ApprovedEndTime != nil {
		builder = builder.Set("approved_end_time", *change.ApprovedEndTime)
	}
	if change.CheckoutTime != nil {
		builder = builder.Set("checkout_time", *change.CheckoutTime)
	}
	if change.ActualReturnTime != nil {
		builder = builder.Set("actual_return_time", *change.ActualReturnTime)
	}
	if change.ApprovedByStaffID != nil {
		builder = builder.Set("approved_by_staff_id", *change.ApprovedByStaffID)
	}
	if change.ApprovedByFicID != nil {
		builder = builder.Set("approved_by_fic_id", *change.ApprovedByFicID)
	}
	if change.ClearApprovers {
		builder = builder.Set("approved_by_staff_id", nil).Set("approved_by_fic_id", nil)
	}
	if change.ReturnCondition != nil {
		builder = builder.Set("return_condition", *change.ReturnCondition)
	}
	if change.ReturnRemarks != nil {
		builder = builder.Set("return_remarks", *change.ReturnRemarks)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build transition update: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to apply borrow transition: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (r *borrowRepository) CountBlockingOverlapsInTx(ctx context.Context, tx pgx.Tx, equipmentID uint64, start, end time.Time, statuses []string) (int, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select("COUNT(*)").
		From(borrowTable).
		Where(sq.Eq{"equipment_id": equipmentID, "borrow_status": statuses}).
		Where(sq.Expr(effectiveStartExpr+" < ?", end)).
		Where(sq.Expr(effectiveEndExpr+" > ?", start)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build overlap count query: %w", err)
	}

	var count int
	if err := r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count overlapping borrows: %w", err)
	}
	return count, nil
}

func (r *borrowRepository) CountByEquipmentAndStatusesInTx(ctx context.Context, tx pgx.Tx, equipmentID uint64, statuses []string, excludeBorrowID uint64) (int, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	builder := psql.Select("COUNT(*)").
		From(borrowTable).
		Where(sq.Eq{"equipment_id": equipmentID, "borrow_status": statuses})
	if excludeBorrowID != 0 {
		builder = builder.Where(sq.NotEq{"id": excludeBorrowID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build status count query: %w", err)
	}

	var count int
	if err := r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count borrows by status: %w", err)
	}
	return count, nil
}

// SweepOverdueInTx flips ACTIVE rows whose approved end has passed into
// OVERDUE. Runs ahead of reads and transitions.
func (r *borrowRepository) SweepOverdueInTx(ctx context.Context, tx pgx.Tx, now time.Time) (int64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Update(borrowTable).
		Set("borrow_status", constants.BorrowStatusOverdue).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"borrow_status": constants.BorrowStatusActive}).
		Where(sq.Lt{"approved_end_time": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build overdue sweep: %w", err)
	}

	result, err := r.getQuerier(tx).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep overdue borrows: %w", err)
	}
	return result.RowsAffected(), nil
}

// ExpirePendingInTx auto-rejects PENDING requests whose effective window has
// fully passed without a decision.
func (r *borrowRepository) ExpirePendingInTx(ctx context.Context, tx pgx.Tx, now time.Time) (int64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Update(borrowTable).
		Set("borrow_status", constants.BorrowStatusRejectedAutomatic).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"borrow_status": constants.BorrowStatusPending}).
		Where(sq.Expr(effectiveEndExpr+" < ?", now)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build pending expiry: %w", err)
	}

	result, err := r.getQuerier(tx).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending borrows: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *borrowRepository) AddGroupMatesInTx(ctx context.Context, tx pgx.Tx, groupID string, userIDs []uint64) error {
	if len(userIDs) == 0 {
		return nil
	}

	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	builder := psql.Insert(borrowMateTable).Columns("borrow_group_id", "user_id")
	for _, uid := range userIDs {
		builder = builder.Values(groupID, uid)
	}
	query, args, err := builder.Suffix("ON CONFLICT DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("failed to build group mates insert: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert group mates: %w", err)
	}
	return nil
}

// IsGroupMember reports whether the user submitted one of the group's
// borrows or is listed as a group mate.
func (r *borrowRepository) IsGroupMember(ctx context.Context, groupID string, userID uint64) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s WHERE borrow_group_id = $1 AND borrower_id = $2
			UNION ALL
			SELECT 1 FROM %s WHERE borrow_group_id = $1 AND user_id = $2
		)`, borrowTable, borrowMateTable)

	var exists bool
	if err := r.storage.QueryRow(ctx, query, groupID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return exists, nil
}
