package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kerhoff/synclist/internal/models"
	"github.com/Kerhoff/synclist/internal/repository"
)

const itemColumns = `id, list_id, text, checked, position, created_by, created_at, updated_at`

type itemRepository struct {
	db *sql.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *sql.DB) repository.ItemRepository {
	return &itemRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	item := &models.Item{}
	err := row.Scan(
		&item.ID,
		&item.ListID,
		&item.Text,
		&item.Checked,
		&item.Position,
		&item.CreatedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (r *itemRepository) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	query := `
		INSERT INTO list_items (id, list_id, text, position, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + itemColumns

	created, err := scanItem(r.db.QueryRowContext(ctx, query,
		item.ID,
		item.ListID,
		item.Text,
		item.Position,
		item.CreatedBy,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	return created, nil
}

func (r *itemRepository) GetByListID(ctx context.Context, listID string) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + `
		FROM list_items
		WHERE list_id = $1
		ORDER BY position ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := make([]models.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}

	return items, rows.Err()
}

func (r *itemRepository) SetChecked(ctx context.Context, id string, checked bool) (*models.Item, error) {
	query := `
		UPDATE list_items
		SET checked = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + itemColumns

	item, err := scanItem(r.db.QueryRowContext(ctx, query, checked, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update item %s: %w", id, err)
	}

	return item, nil
}

func (r *itemRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM list_items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}
	return nil
}

func (r *itemRepository) Reorder(ctx context.Context, updates []models.Position) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reorder: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `UPDATE list_items SET position = $1 WHERE id = $2`)
	if err != nil {
		return fmt.Errorf("failed to prepare reorder: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err = stmt.ExecContext(ctx, u.Position, u.ID); err != nil {
			return fmt.Errorf("failed to move item %s: %w", u.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}
	return nil
}
