package client

import (
	"encoding/json"
	"testing"

	"github.com/Kerhoff/synclist/internal/models"
	"github.com/Kerhoff/synclist/pkg/logger"
)

func ids(items []models.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func sameIDs(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func seedABC(r *StateReconciler) {
	r.SetItems("L1", []models.Item{
		{ID: "b", Position: 1},
		{ID: "c", Position: 2},
		{ID: "a", Position: 0},
	})
}

func TestReconcilerSetItemsSorts(t *testing.T) {
	r := NewStateReconciler(logger.Discard())
	seedABC(r)
	if got := ids(r.Items("L1")); !sameIDs(got, "a", "b", "c") {
		t.Fatalf("items=%v want [a b c]", got)
	}
	if len(r.Items("unknown")) != 0 {
		t.Fatal("unknown list is not empty")
	}
}

func TestReconcilerReorder(t *testing.T) {
	r := NewStateReconciler(logger.Discard())
	seedABC(r)

	r.ApplyReordered("L1", []models.Position{{ID: "c", Position: 0}, {ID: "a", Position: 1}, {ID: "b", Position: 2}})

	items := r.Items("L1")
	if got := ids(items); !sameIDs(got, "c", "a", "b") {
		t.Fatalf("items=%v want [c a b]", got)
	}
	for i, item := range items {
		if item.Position != i {
			t.Fatalf("item %s position=%d want %d", item.ID, item.Position, i)
		}
	}
}

func TestReconcilerPartialReorderKeepsOthers(t *testing.T) {
	r := NewStateReconciler(logger.Discard())
	seedABC(r)

	r.ApplyReordered("L1", []models.Position{{ID: "a", Position: 5}, {ID: "zzz", Position: 0}})

	if got := ids(r.Items("L1")); !sameIDs(got, "b", "c", "a") {
		t.Fatalf("items=%v want [b c a]", got)
	}
}

func TestReconcilerAddCheckDelete(t *testing.T) {
	r := NewStateReconciler(logger.Discard())
	seedABC(r)

	r.ApplyAdded("L1", models.Item{ID: "d", Text: "Milk", Position: 3})
	r.ApplyAdded("L1", models.Item{ID: "d", Text: "Milk", Position: 3})
	if got := ids(r.Items("L1")); !sameIDs(got, "a", "b", "c", "d") {
		t.Fatalf("items=%v want [a b c d]", got)
	}

	r.ApplyChecked("L1", models.Item{ID: "b", Checked: true, Position: 1})
	if item, _ := r.Item("L1", "b"); !item.Checked {
		t.Fatal("b not checked")
	}
	r.ApplyChecked("L1", models.Item{ID: "ghost", Checked: true})
	if _, ok := r.Item("L1", "ghost"); ok {
		t.Fatal("check of an unknown item created it")
	}

	r.ApplyDeleted("L1", "a")
	r.ApplyDeleted("L1", "a")
	if got := ids(r.Items("L1")); !sameIDs(got, "b", "c", "d") {
		t.Fatalf("items=%v want [b c d]", got)
	}
}

func TestReconcilerItemsIsACopy(t *testing.T) {
	r := NewStateReconciler(logger.Discard())
	seedABC(r)
	items := r.Items("L1")
	items[0].Text = "mutated"
	if item, _ := r.Item("L1", "a"); item.Text == "mutated" {
		t.Fatal("caller mutated reconciler state")
	}
}

func event(t *testing.T, eventType models.ActionType, payload any) models.ServerEvent {
	t.Helper()
	ev, err := models.NewEvent(eventType, payload)
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestReconcilerApplyEvent(t *testing.T) {
	r := NewStateReconciler(logger.Discard())
	seedABC(r)

	steps := []models.ServerEvent{
		event(t, models.ActionItemAdded, models.Item{ID: "d", Position: 3}),
		event(t, models.ActionItemChecked, models.Item{ID: "a", Checked: true}),
		event(t, models.ActionItemDeleted, models.IDPayload{ID: "b"}),
		event(t, models.ActionItemReordered, models.ReorderPayload{Items: []models.Position{{ID: "d", Position: -1}}}),
		models.NewErrorEvent("Server error"),
	}
	for _, ev := range steps {
		if err := r.ApplyEvent("L1", ev); err != nil {
			t.Fatalf("%s: %v", ev.Type, err)
		}
	}

	if got := ids(r.Items("L1")); !sameIDs(got, "d", "a", "c") {
		t.Fatalf("items=%v want [d a c]", got)
	}

	if err := r.ApplyEvent("L1", models.ServerEvent{Type: "item_renamed", Payload: json.RawMessage(`{}`)}); err == nil {
		t.Fatal("unknown event type accepted")
	}
	if err := r.ApplyEvent("L1", models.ServerEvent{Type: models.ActionItemDeleted, Payload: json.RawMessage(`"x"`)}); err == nil {
		t.Fatal("malformed payload accepted")
	}
}

func TestReconcilerOnChange(t *testing.T) {
	r := NewStateReconciler(logger.Discard())
	var changes []string
	sub := r.OnChange(func(listID string) { changes = append(changes, listID) })

	r.SetItems("L1", nil)
	r.ApplyAdded("L2", models.Item{ID: "x"})
	r.ApplyDeleted("L2", "missing")
	sub.Cancel()
	r.ApplyAdded("L1", models.Item{ID: "y"})

	if !sameIDs(changes, "L1", "L2") {
		t.Fatalf("changes=%v want [L1 L2]", changes)
	}
}

type fakeSource struct {
	listeners listenerSet[models.ServerEvent]
}

func (s *fakeSource) OnEvent(fn func(models.ServerEvent)) Subscription {
	return s.listeners.add(fn)
}

func (s *fakeSource) emit(ev models.ServerEvent) {
	deliver(s.listeners.snapshot(), ev)
}

func TestReconcilerBind(t *testing.T) {
	r := NewStateReconciler(logger.Discard())
	src := &fakeSource{}
	sub := r.Bind("L1", src)

	src.emit(event(t, models.ActionItemAdded, models.Item{ID: "a"}))
	sub.Cancel()
	src.emit(event(t, models.ActionItemAdded, models.Item{ID: "b"}))

	if got := ids(r.Items("L1")); !sameIDs(got, "a") {
		t.Fatalf("items=%v want [a]", got)
	}
}

func TestReconcilerReorderLeavesUnreferencedItem(t *testing.T) {
	r := NewStateReconciler(logger.Discard())
	seedABC(r)

	r.ApplyReordered("L1", []models.Position{{ID: "a", Position: 0}, {ID: "b", Position: 1}})

	if got := ids(r.Items("L1")); !sameIDs(got, "a", "b", "c") {
		t.Fatalf("items=%v want [a b c]", got)
	}
	if c, _ := r.Item("L1", "c"); c.Position != 2 {
		t.Fatalf("c position=%d want 2", c.Position)
	}
}
