// Package memory keeps lists and items in process memory for tests of the
// layers above the repository.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Kerhoff/synclist/internal/models"
	"github.com/Kerhoff/synclist/internal/repository"
)

// ListRepository is an in-memory repository.ListRepository
type ListRepository struct {
	mu    sync.Mutex
	lists map[string]models.List
}

// NewListRepository creates an empty list store
func NewListRepository() *ListRepository {
	return &ListRepository{lists: make(map[string]models.List)}
}

var _ repository.ListRepository = (*ListRepository)(nil)

// Create stores list, rejecting a join code that is already taken
func (r *ListRepository) Create(ctx context.Context, list *models.List) (*models.List, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.lists {
		if existing.JoinCode == list.JoinCode {
			return nil, repository.ErrDuplicateJoinCode
		}
	}
	stored := *list
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.lists[stored.ID] = stored
	return &stored, nil
}

// GetByID returns nil when the list does not exist
func (r *ListRepository) GetByID(ctx context.Context, id string) (*models.List, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, ok := r.lists[id]
	if !ok {
		return nil, nil
	}
	return &list, nil
}

// GetByJoinCode returns nil when no list has the code
func (r *ListRepository) GetByJoinCode(ctx context.Context, joinCode string) (*models.List, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, list := range r.lists {
		if list.JoinCode == joinCode {
			return &list, nil
		}
	}
	return nil, nil
}

// ItemRepository is an in-memory repository.ItemRepository. When Err is set
// every call fails with it.
type ItemRepository struct {
	mu    sync.Mutex
	items map[string]models.Item
	Err   error
}

// NewItemRepository creates an empty item store
func NewItemRepository() *ItemRepository {
	return &ItemRepository{items: make(map[string]models.Item)}
}

var _ repository.ItemRepository = (*ItemRepository)(nil)

func (r *ItemRepository) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	stored := *item
	now := time.Now().UTC()
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.items[stored.ID] = stored
	return &stored, nil
}

func (r *ItemRepository) GetByListID(ctx context.Context, listID string) ([]models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	items := []models.Item{}
	for _, item := range r.items {
		if item.ListID == listID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (r *ItemRepository) SetChecked(ctx context.Context, id string, checked bool) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	item.Checked = checked
	item.UpdatedAt = time.Now().UTC()
	r.items[id] = item
	return &item, nil
}

func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}

	delete(r.items, id)
	return nil
}

// Reorder skips IDs it does not know, like an UPDATE matching no row.
func (r *ItemRepository) Reorder(ctx context.Context, updates []models.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}

	for _, u := range updates {
		if item, ok := r.items[u.ID]; ok {
			item.Position = u.Position
			r.items[u.ID] = item
		}
	}
	return nil
}

// Get returns a stored item
func (r *ItemRepository) Get(id string) (models.Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	return item, ok
}
