package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lending-system/internal/entities"
	apperrors "lending-system/pkg/errors"
)

const (
	classTable  = "classes"
	classFields = "id, code, name, fic_id, created_at, updated_at"
)

type ClassRepositoryInterface interface {
	FindClass(ctx context.Context, id uint64) (*entities.Class, error)
}

type classRepository struct {
	storage *pgxpool.Pool
}

func NewClassRepository(storage *pgxpool.Pool) ClassRepositoryInterface {
	return &classRepository{storage: storage}
}

func (r *classRepository) FindClass(ctx context.Context, id uint64) (*entities.Class, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select(classFields).From(classTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build class query: %w", err)
	}

	var c entities.Class
	err = r.storage.QueryRow(ctx, query, args...).Scan(
		&c.ID, &c.Code, &c.Name, &c.FicID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan classes row: %w", err)
	}
	return &c, nil
}
