package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kerhoff/synclist/internal/models"
)

// ErrUnknownItem is returned for an item that is not in the local state
var ErrUnknownItem = errors.New("unknown item")

// ActionSender transmits or queues an action
type ActionSender interface {
	Send(action models.Action)
}

// ListEditor issues local mutations for one list. Adds wait for the server
// echo; checks, deletes and moves are applied locally before sending
// because the server does not echo them back.
type ListEditor struct {
	listID   string
	deviceID string
	state    *StateReconciler
	sender   ActionSender
	now      func() time.Time
}

// NewListEditor creates an editor for listID acting as deviceID
func NewListEditor(listID, deviceID string, state *StateReconciler, sender ActionSender) *ListEditor {
	return &ListEditor{
		listID:   listID,
		deviceID: deviceID,
		state:    state,
		sender:   sender,
		now:      time.Now,
	}
}

// Add asks the server to append an item. Nothing changes locally until the
// item_added echo arrives with the server-assigned id.
func (e *ListEditor) Add(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("item text is required")
	}
	position := len(e.state.Items(e.listID))
	return e.send(models.ActionItemAdded, models.AddPayload{Text: text, Position: position})
}

// SetChecked checks or unchecks an item.
func (e *ListEditor) SetChecked(itemID string, checked bool) error {
	item, ok := e.state.Item(e.listID, itemID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	item.Checked = checked
	item.UpdatedAt = e.now().UTC()
	e.state.ApplyChecked(e.listID, item)

	actionType := models.ActionItemUnchecked
	if checked {
		actionType = models.ActionItemChecked
	}
	return e.send(actionType, models.IDPayload{ID: itemID})
}

// Delete removes an item.
func (e *ListEditor) Delete(itemID string) error {
	if _, ok := e.state.Item(e.listID, itemID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	e.state.ApplyDeleted(e.listID, itemID)
	return e.send(models.ActionItemDeleted, models.IDPayload{ID: itemID})
}

// Move places an item at index to and renumbers every item by its new index.
func (e *ListEditor) Move(itemID string, to int) error {
	items := e.state.Items(e.listID)
	from := indexOf(items, itemID)
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	to = max(0, min(to, len(items)-1))

	moved := items[from]
	items = append(items[:from], items[from+1:]...)
	items = append(items[:to], append([]models.Item{moved}, items[to:]...)...)

	updates := make([]models.Position, len(items))
	for i, item := range items {
		updates[i] = models.Position{ID: item.ID, Position: i}
	}

	e.state.ApplyReordered(e.listID, updates)
	return e.send(models.ActionItemReordered, models.ReorderPayload{Items: updates})
}

func (e *ListEditor) send(actionType models.ActionType, payload any) error {
	action, err := models.NewAction(actionType, e.listID, e.deviceID, payload)
	if err != nil {
		return err
	}
	e.sender.Send(action)
	return nil
}
