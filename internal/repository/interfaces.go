package repository

import (
	"context"

	"github.com/Kerhoff/synclist/internal/models"
)

// ListRepository defines the interface for list data operations
type ListRepository interface {
	Create(ctx context.Context, list *models.List) (*models.List, error)
	GetByID(ctx context.Context, id string) (*models.List, error)
	GetByJoinCode(ctx context.Context, joinCode string) (*models.List, error)
}

// ItemRepository defines the interface for item data operations. Lookups and
// updates return a nil item without error when the item does not exist.
type ItemRepository interface {
	Create(ctx context.Context, item *models.Item) (*models.Item, error)
	GetByListID(ctx context.Context, listID string) ([]models.Item, error)
	SetChecked(ctx context.Context, id string, checked bool) (*models.Item, error)
	Delete(ctx context.Context, id string) error
	// Reorder applies every position update or none of them.
	Reorder(ctx context.Context, updates []models.Position) error
}
