package client

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/synclist/internal/models"
)

// StateReconciler holds the canonical in-memory items of every open list.
// Local optimistic mutations and server events are merged through the same
// Apply methods.
type StateReconciler struct {
	mu      sync.RWMutex
	lists   map[string][]models.Item
	changes listenerSet[string]
	logger  *logrus.Logger
}

// NewStateReconciler creates an empty reconciler
func NewStateReconciler(logger *logrus.Logger) *StateReconciler {
	return &StateReconciler{
		lists:  make(map[string][]models.Item),
		logger: logger,
	}
}

// OnChange registers fn, called with the list ID after every mutation
func (r *StateReconciler) OnChange(fn func(listID string)) Subscription {
	return r.changes.add(fn)
}

// Items returns a copy of the list's items in render order
func (r *StateReconciler) Items(listID string) []models.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Item(nil), r.lists[listID]...)
}

// Item returns one item of the list
func (r *StateReconciler) Item(listID, itemID string) (models.Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, item := range r.lists[listID] {
		if item.ID == itemID {
			return item, true
		}
	}
	return models.Item{}, false
}

// SetItems replaces the list's items, sorted by position.
func (r *StateReconciler) SetItems(listID string, items []models.Item) {
	sorted := append([]models.Item(nil), items...)
	sortByPosition(sorted)

	r.mu.Lock()
	r.lists[listID] = sorted
	r.mu.Unlock()
	r.changed(listID)
}

// ApplyAdded appends item. An item already present is replaced in place, so
// a repeated event does not duplicate it.
func (r *StateReconciler) ApplyAdded(listID string, item models.Item) {
	r.mu.Lock()
	items := r.lists[listID]
	if i := indexOf(items, item.ID); i >= 0 {
		items[i] = item
	} else {
		r.lists[listID] = append(items, item)
	}
	r.mu.Unlock()
	r.changed(listID)
}

// ApplyChecked replaces the item with the same ID. Unknown items are ignored.
func (r *StateReconciler) ApplyChecked(listID string, item models.Item) {
	r.mu.Lock()
	items := r.lists[listID]
	i := indexOf(items, item.ID)
	if i >= 0 {
		items[i] = item
	}
	r.mu.Unlock()
	if i >= 0 {
		r.changed(listID)
	}
}

// ApplyDeleted removes the item. Removing a missing item is a no-op.
func (r *StateReconciler) ApplyDeleted(listID, itemID string) {
	r.mu.Lock()
	items := r.lists[listID]
	i := indexOf(items, itemID)
	if i >= 0 {
		r.lists[listID] = append(items[:i:i], items[i+1:]...)
	}
	r.mu.Unlock()
	if i >= 0 {
		r.changed(listID)
	}
}

// ApplyReordered rewrites the position of every referenced item, keeps the
// others where they are, and re-sorts by position.
func (r *StateReconciler) ApplyReordered(listID string, updates []models.Position) {
	positions := make(map[string]int, len(updates))
	for _, u := range updates {
		positions[u.ID] = u.Position
	}

	r.mu.Lock()
	items := append([]models.Item(nil), r.lists[listID]...)
	for i := range items {
		if p, ok := positions[items[i].ID]; ok {
			items[i].Position = p
		}
	}
	sortByPosition(items)
	r.lists[listID] = items
	r.mu.Unlock()
	r.changed(listID)
}

// ApplyEvent merges a server event into the list. Error events carry no
// state and are ignored.
func (r *StateReconciler) ApplyEvent(listID string, event models.ServerEvent) error {
	switch event.Type {
	case models.ActionItemAdded:
		var item models.Item
		if err := event.DecodePayload(&item); err != nil {
			return fmt.Errorf("failed to decode %s: %w", event.Type, err)
		}
		r.ApplyAdded(listID, item)
	case models.ActionItemChecked, models.ActionItemUnchecked:
		var item models.Item
		if err := event.DecodePayload(&item); err != nil {
			return fmt.Errorf("failed to decode %s: %w", event.Type, err)
		}
		r.ApplyChecked(listID, item)
	case models.ActionItemDeleted:
		var payload models.IDPayload
		if err := event.DecodePayload(&payload); err != nil {
			return fmt.Errorf("failed to decode %s: %w", event.Type, err)
		}
		r.ApplyDeleted(listID, payload.ID)
	case models.ActionItemReordered:
		var payload models.ReorderPayload
		if err := event.DecodePayload(&payload); err != nil {
			return fmt.Errorf("failed to decode %s: %w", event.Type, err)
		}
		r.ApplyReordered(listID, payload.Items)
	case models.EventError:
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
	return nil
}

// EventSource is anything that publishes server events
type EventSource interface {
	OnEvent(fn func(models.ServerEvent)) Subscription
}

// Bind feeds every event from source into listID until the returned
// subscription is cancelled.
func (r *StateReconciler) Bind(listID string, source EventSource) Subscription {
	return source.OnEvent(func(event models.ServerEvent) {
		if err := r.ApplyEvent(listID, event); err != nil {
			r.logger.WithError(err).WithField("list_id", listID).Warn("Ignoring server event")
		}
	})
}

func (r *StateReconciler) changed(listID string) {
	deliver(r.changes.snapshot(), listID)
}

func indexOf(items []models.Item, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// sortByPosition orders items by position, keeping the current order for ties.
func sortByPosition(items []models.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})
}
