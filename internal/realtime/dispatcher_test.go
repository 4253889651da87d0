package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/Kerhoff/synclist/internal/models"
	"github.com/Kerhoff/synclist/internal/repository/memory"
	"github.com/Kerhoff/synclist/pkg/logger"
)

type dispatcherFixture struct {
	items    *memory.ItemRepository
	registry *RoomRegistry
	d        *Dispatcher
	sender   *fakePeer
	other    *fakePeer
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		items:    memory.NewItemRepository(),
		registry: NewRoomRegistry(logger.Discard()),
		sender:   &fakePeer{},
		other:    &fakePeer{},
	}
	f.d = NewDispatcher(f.items, f.registry, logger.Discard())
	f.registry.Join("L1", f.sender)
	f.registry.Join("L1", f.other)
	return f
}

func (f *dispatcherFixture) handle(raw string) {
	f.d.Handle(context.Background(), f.sender, []byte(raw))
}

func (f *dispatcherFixture) seed(t *testing.T, id string, position int) {
	t.Helper()
	if _, err := f.items.Create(context.Background(), &models.Item{ID: id, ListID: "L1", Text: id, Position: position}); err != nil {
		t.Fatal(err)
	}
}

func assertError(t *testing.T, p *fakePeer, want string) {
	t.Helper()
	events := p.events(t)
	if len(events) != 1 {
		t.Fatalf("got %d events want 1", len(events))
	}
	ev := events[0]
	if ev.Type != models.EventError {
		t.Fatalf("type=%s want error", ev.Type)
	}
	var payload models.ErrorPayload
	if err := ev.DecodePayload(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Message != want || ev.Message != want {
		t.Fatalf("message=%q/%q want %q", payload.Message, ev.Message, want)
	}
}

func TestDispatcherProtocolErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"not json", `not json`, MsgInvalidJSON},
		{"not an object", `[1,2]`, MsgInvalidJSON},
		{"numeric type only", `{"type":1}`, MsgMissingFields},
		{"numeric type", `{"type":1,"listId":"L1","deviceId":"D1"}`, MsgUnknownActionType},
		{"numeric list", `{"type":"item_added","listId":7,"deviceId":"D1"}`, MsgMissingFields},
		{"empty type", `{"type":"","listId":"L1","deviceId":"D1"}`, MsgMissingFields},
		{"missing list", `{"type":"item_added","deviceId":"D1","payload":{"text":"x"}}`, MsgMissingFields},
		{"missing device", `{"type":"item_added","listId":"L1","payload":{"text":"x"}}`, MsgMissingFields},
		{"missing type", `{"listId":"L1","deviceId":"D1"}`, MsgMissingFields},
		{"unknown type", `{"type":"item_renamed","listId":"L1","deviceId":"D1","payload":{}}`, MsgUnknownActionType},
		{"bad payload", `{"type":"item_added","listId":"L1","deviceId":"D1","payload":"oops"}`, MsgServerError},
		{"no payload", `{"type":"item_deleted","listId":"L1","deviceId":"D1"}`, MsgServerError},
		{"blank id", `{"type":"item_checked","listId":"L1","deviceId":"D1","payload":{"id":""}}`, MsgServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newDispatcherFixture(t)
			f.handle(tc.raw)
			assertError(t, f.sender, tc.want)
			if len(f.other.msgs) != 0 {
				t.Fatal("error leaked to another session")
			}
		})
	}
}

func TestDispatcherItemAddedEchoesAndBroadcasts(t *testing.T) {
	f := newDispatcherFixture(t)
	f.handle(`{"type":"item_added","listId":"L1","deviceId":"D1","payload":{"text":"Milk","position":0}}`)

	mine, theirs := f.sender.events(t), f.other.events(t)
	if len(mine) != 1 || len(theirs) != 1 {
		t.Fatalf("sender=%d other=%d want 1 each", len(mine), len(theirs))
	}

	var echoed, broadcast models.Item
	if err := mine[0].DecodePayload(&echoed); err != nil {
		t.Fatal(err)
	}
	if err := theirs[0].DecodePayload(&broadcast); err != nil {
		t.Fatal(err)
	}
	if mine[0].Type != models.ActionItemAdded || echoed.ID == "" {
		t.Fatalf("unexpected echo %+v", mine[0])
	}
	if echoed.ID != broadcast.ID {
		t.Fatalf("echo id %s differs from broadcast id %s", echoed.ID, broadcast.ID)
	}
	if echoed.Text != "Milk" || echoed.Checked || echoed.ListID != "L1" || echoed.CreatedBy != "D1" {
		t.Fatalf("unexpected item %+v", echoed)
	}

	if _, ok := f.items.Get(echoed.ID); !ok {
		t.Fatal("item was not persisted")
	}
}

func TestDispatcherItemChecked(t *testing.T) {
	f := newDispatcherFixture(t)
	f.seed(t, "I1", 0)

	f.handle(`{"type":"item_checked","listId":"L1","deviceId":"D1","payload":{"id":"I1"}}`)

	if len(f.sender.msgs) != 0 {
		t.Fatal("check was echoed to the sender")
	}
	events := f.other.events(t)
	if len(events) != 1 || events[0].Type != models.ActionItemChecked {
		t.Fatalf("unexpected broadcast %+v", events)
	}
	var item models.Item
	if err := events[0].DecodePayload(&item); err != nil {
		t.Fatal(err)
	}
	if !item.Checked || item.ID != "I1" {
		t.Fatalf("unexpected item %+v", item)
	}

	f.handle(`{"type":"item_unchecked","listId":"L1","deviceId":"D1","payload":{"id":"I1"}}`)
	stored, _ := f.items.Get("I1")
	if stored.Checked {
		t.Fatal("item still checked after item_unchecked")
	}
}

func TestDispatcherCheckMissingItemIsSilent(t *testing.T) {
	f := newDispatcherFixture(t)
	f.handle(`{"type":"item_checked","listId":"L1","deviceId":"D1","payload":{"id":"gone"}}`)

	if len(f.sender.msgs) != 0 || len(f.other.msgs) != 0 {
		t.Fatalf("sender=%d other=%d want no messages", len(f.sender.msgs), len(f.other.msgs))
	}
}

func TestDispatcherItemDeleted(t *testing.T) {
	f := newDispatcherFixture(t)
	f.seed(t, "I1", 0)

	f.handle(`{"type":"item_deleted","listId":"L1","deviceId":"D1","payload":{"id":"I1"}}`)

	if _, ok := f.items.Get("I1"); ok {
		t.Fatal("item still stored")
	}
	events := f.other.events(t)
	if len(events) != 1 || events[0].Type != models.ActionItemDeleted {
		t.Fatalf("unexpected broadcast %+v", events)
	}
	var payload models.IDPayload
	if err := events[0].DecodePayload(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.ID != "I1" {
		t.Fatalf("id=%s want I1", payload.ID)
	}
	if len(f.sender.msgs) != 0 {
		t.Fatal("delete was echoed to the sender")
	}
}

func TestDispatcherItemReordered(t *testing.T) {
	f := newDispatcherFixture(t)
	f.seed(t, "a", 0)
	f.seed(t, "b", 1)
	f.seed(t, "c", 2)

	f.handle(`{"type":"item_reordered","listId":"L1","deviceId":"D1","payload":{"items":[{"id":"c","position":0},{"id":"a","position":1},{"id":"b","position":2}]}}`)

	items, err := f.items.GetByListID(context.Background(), "L1")
	if err != nil {
		t.Fatal(err)
	}
	got := []string{items[0].ID, items[1].ID, items[2].ID}
	if got[0] != "c" || got[1] != "a" || got[2] != "b" {
		t.Fatalf("order=%v want [c a b]", got)
	}

	events := f.other.events(t)
	if len(events) != 1 || events[0].Type != models.ActionItemReordered {
		t.Fatalf("unexpected broadcast %+v", events)
	}
	var payload models.ReorderPayload
	if err := events[0].DecodePayload(&payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Items) != 3 || payload.Items[0].ID != "c" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestDispatcherStoreFailureIsServerError(t *testing.T) {
	f := newDispatcherFixture(t)
	f.items.Err = errors.New("connection refused")

	f.handle(`{"type":"item_added","listId":"L1","deviceId":"D1","payload":{"text":"Milk"}}`)

	assertError(t, f.sender, MsgServerError)
	if len(f.other.msgs) != 0 {
		t.Fatal("failed action was broadcast")
	}
}

func TestDispatcherSurvivesErrors(t *testing.T) {
	f := newDispatcherFixture(t)
	f.handle(`garbage`)
	f.handle(`{"type":"item_added","listId":"L1","deviceId":"D1","payload":{"text":"Milk"}}`)

	events := f.sender.events(t)
	if len(events) != 2 || events[1].Type != models.ActionItemAdded {
		t.Fatalf("unexpected events %+v", events)
	}
	if f.d.locks.size() != 0 {
		t.Fatal("room lock leaked")
	}
}
