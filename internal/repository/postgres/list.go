package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Kerhoff/synclist/internal/models"
	"github.com/Kerhoff/synclist/internal/repository"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint violation
const uniqueViolation = "23505"

type listRepository struct {
	db *sql.DB
}

// NewListRepository creates a new list repository
func NewListRepository(db *sql.DB) repository.ListRepository {
	return &listRepository{db: db}
}

func (r *listRepository) Create(ctx context.Context, list *models.List) (*models.List, error) {
	query := `
		INSERT INTO lists (id, name, join_code, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		list.ID,
		list.Name,
		list.JoinCode,
		list.CreatedBy,
	).Scan(&list.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", repository.ErrDuplicateJoinCode, list.JoinCode)
		}
		return nil, fmt.Errorf("failed to create list: %w", err)
	}

	return list, nil
}

func (r *listRepository) GetByID(ctx context.Context, id string) (*models.List, error) {
	query := `
		SELECT id, name, join_code, created_by, created_at
		FROM lists
		WHERE id = $1`

	return r.scanOne(ctx, query, id)
}

func (r *listRepository) GetByJoinCode(ctx context.Context, joinCode string) (*models.List, error) {
	query := `
		SELECT id, name, join_code, created_by, created_at
		FROM lists
		WHERE join_code = $1`

	return r.scanOne(ctx, query, joinCode)
}

func (r *listRepository) scanOne(ctx context.Context, query string, arg any) (*models.List, error) {
	list := &models.List{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&list.ID,
		&list.Name,
		&list.JoinCode,
		&list.CreatedBy,
		&list.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get list: %w", err)
	}

	return list, nil
}
