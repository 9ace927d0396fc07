package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"lending-system/internal/entities"
	"lending-system/pkg/constants"
	apperrors "lending-system/pkg/errors"
	"lending-system/pkg/types"
)

const (
	equipmentTable  = "equipments"
	equipmentFields = "id, name, description, stock_count, status, created_at, updated_at"
)

type EquipmentRepositoryInterface interface {
	GetEquipments(ctx context.Context, filter types.EquipmentFilter) ([]entities.EquipmentWithStats, uint64, error)
	FindEquipment(ctx context.Context, id uint64) (*entities.Equipment, error)
	FindEquipmentWithStats(ctx context.Context, id uint64) (*entities.EquipmentWithStats, error)
	FindEquipmentForUpdateInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Equipment, error)
	CreateEquipment(ctx context.Context, e entities.Equipment) (uint64, error)
	UpdateEquipment(ctx context.Context, id uint64, e entities.Equipment) error
	UpdateEquipmentStatusInTx(ctx context.Context, tx pgx.Tx, id uint64, status string) error
	ArchiveEquipment(ctx context.Context, id uint64) error
}

type equipmentRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewEquipmentRepository(storage *pgxpool.Pool, logger *zap.Logger) EquipmentRepositoryInterface {
	return &equipmentRepository{storage: storage, logger: logger}
}

func (r *equipmentRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *equipmentRepository) scanRow(row pgx.Row) (*entities.Equipment, error) {
	var e entities.Equipment
	err := row.Scan(
		&e.ID, &e.Name, &e.Description, &e.StockCount, &e.Status,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan equipments row: %w", err)
	}
	return &e, nil
}

func (r *equipmentRepository) findOne(ctx context.Context, querier Querier, suffix string, id uint64) (*entities.Equipment, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	builder := psql.Select(equipmentFields).From(equipmentTable).Where(sq.Eq{"id": id})
	if suffix != "" {
		builder = builder.Suffix(suffix)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build equipment query: %w", err)
	}
	return r.scanRow(querier.QueryRow(ctx, query, args...))
}

func (r *equipmentRepository) FindEquipment(ctx context.Context, id uint64) (*entities.Equipment, error) {
	return r.findOne(ctx, r.storage, "", id)
}

// FindEquipmentForUpdateInTx takes a row lock on the equipment, serializing
// concurrent availability checks for the same item.
func (r *equipmentRepository) FindEquipmentForUpdateInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Equipment, error) {
	return r.findOne(ctx, tx, "FOR UPDATE", id)
}

// statsJoin attaches the count of ACTIVE/OVERDUE borrows and the start of
// the next upcoming blocking reservation to each equipment row.
const equipmentStatsFields = `
	e.id, e.name, e.description, e.stock_count, e.status, e.created_at, e.updated_at,
	COALESCE(bc.active_count, 0) AS active_borrow_count,
	nr.next_start AS next_reservation_start`

const equipmentStatsJoins = `
	LEFT JOIN (
		SELECT equipment_id, COUNT(*) AS active_count
		FROM borrows
		WHERE borrow_status IN ('ACTIVE', 'OVERDUE')
		GROUP BY equipment_id
	) bc ON bc.equipment_id = e.id
	LEFT JOIN (
		SELECT equipment_id, MIN(COALESCE(approved_start_time, requested_start_time)) AS next_start
		FROM borrows
		WHERE borrow_status IN ('APPROVED', 'ACTIVE', 'OVERDUE')
		  AND COALESCE(approved_start_time, requested_start_time) > NOW()
		GROUP BY equipment_id
	) nr ON nr.equipment_id = e.id`

func (r *equipmentRepository) scanStatsRow(row pgx.Row) (*entities.EquipmentWithStats, error) {
	var e entities.EquipmentWithStats
	err := row.Scan(
		&e.ID, &e.Name, &e.Description, &e.StockCount, &e.Status,
		&e.CreatedAt, &e.UpdatedAt,
		&e.ActiveBorrowCount, &e.NextReservationStart,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan equipment stats row: %w", err)
	}
	return &e, nil
}

// derivedStatusCondition translates a derived-status filter into SQL over
// the stored status and the joined active-borrow count, mirroring
// services.DeriveEquipmentStatus.
func derivedStatusCondition(status string) string {
	hard := fmt.Sprintf("(e.status IN ('%s', '%s', '%s', '%s'))",
		constants.EquipmentStatusUnderMaintenance, constants.EquipmentStatusDefective,
		constants.EquipmentStatusOutOfCommission, constants.EquipmentStatusArchived)
	switch {
	case status == "":
		return ""
	case constants.IsHardUnavailableEquipmentStatus(status):
		return fmt.Sprintf("e.status = '%s'", status)
	case status == constants.EquipmentStatusAvailable:
		return fmt.Sprintf("NOT %s AND e.stock_count > COALESCE(bc.active_count, 0)", hard)
	case status == constants.EquipmentStatusBorrowed:
		return fmt.Sprintf("NOT %s AND e.stock_count <= COALESCE(bc.active_count, 0)", hard)
	default:
		// stored-only statuses (RESERVED) never surface as a derived status
		return "FALSE"
	}
}

func (r *equipmentRepository) GetEquipments(ctx context.Context, filter types.EquipmentFilter) ([]entities.EquipmentWithStats, uint64, error) {
	var conds []string
	if !filter.IncludeArchived {
		conds = append(conds, fmt.Sprintf("e.status <> '%s'", constants.EquipmentStatusArchived))
	}
	if c := derivedStatusCondition(filter.DerivedStatus); c != "" {
		conds = append(conds, c)
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit == 0 || limit > types.MaxLimit {
		limit = types.DefaultLimit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s e
		%s
		%s
		ORDER BY e.id
		LIMIT $1 OFFSET $2`,
		equipmentStatsFields, equipmentTable, equipmentStatsJoins, where)

	rows, err := r.storage.Query(ctx, query, limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query equipments: %w", err)
	}
	defer rows.Close()

	var list []entities.EquipmentWithStats
	for rows.Next() {
		e, err := r.scanStatsRow(rows)
		if err != nil {
			r.logger.Error("failed to scan equipment row", zap.Error(err))
			return nil, 0, err
		}
		list = append(list, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate equipments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s e %s %s",
		equipmentTable, equipmentStatsJoins, where)
	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count equipments: %w", err)
	}

	return list, total, nil
}

func (r *equipmentRepository) FindEquipmentWithStats(ctx context.Context, id uint64) (*entities.EquipmentWithStats, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s e
		%s
		WHERE e.id = $1`,
		equipmentStatsFields, equipmentTable, equipmentStatsJoins)

	return r.scanStatsRow(r.storage.QueryRow(ctx, query, id))
}

func (r *equipmentRepository) CreateEquipment(ctx context.Context, e entities.Equipment) (uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Insert(equipmentTable).
		Columns("name", "description", "stock_count", "status", "created_at", "updated_at").
		Values(e.Name, e.Description, e.StockCount, e.Status, sq.Expr("NOW()"), sq.Expr("NOW()")).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build equipment insert: %w", err)
	}

	var newID uint64
	if err := r.storage.QueryRow(ctx, query, args...).Scan(&newID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("equipment with this name already exists: %w", apperrors.ErrConflict)
		}
		return 0, fmt.Errorf("failed to insert equipment: %w", err)
	}
	return newID, nil
}

func (r *equipmentRepository) UpdateEquipment(ctx context.Context, id uint64, e entities.Equipment) error {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Update(equipmentTable).
		Set("name", e.Name).
		Set("description", e.Description).
		Set("stock_count", e.StockCount).
		Set("status", e.Status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build equipment update: %w", err)
	}

	result, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update equipment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *equipmentRepository) UpdateEquipmentStatusInTx(ctx context.Context, tx pgx.Tx, id uint64, status string) error {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Update(equipmentTable).
		Set("status", status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build equipment status update: %w", err)
	}

	result, err := r.getQuerier(tx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update equipment status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ArchiveEquipment soft-archives instead of deleting: borrow history keeps
// referencing the row.
func (r *equipmentRepository) ArchiveEquipment(ctx context.Context, id uint64) error {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Update(equipmentTable).
		Set("status", constants.EquipmentStatusArchived).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build equipment archive: %w", err)
	}

	result, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to archive equipment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
