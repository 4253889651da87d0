package handlers

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/Kerhoff/synclist/internal/client"
	"github.com/Kerhoff/synclist/internal/models"
	"github.com/Kerhoff/synclist/pkg/logger"
)

type fakeSender struct {
	mu      sync.Mutex
	actions []models.Action
}

func (s *fakeSender) Send(action models.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
}

type fixedStatus client.Status

func (s fixedStatus) Status() client.Status { return client.Status(s) }

func newView() (*ListView, *fakeSender) {
	state := client.NewStateReconciler(logger.Discard())
	state.SetItems("L1", []models.Item{
		{ID: "a", Text: "Milk", Position: 0},
		{ID: "b", Text: "Eggs", Position: 1, Checked: true},
	})
	sender := &fakeSender{}
	return &ListView{
		ListID: "L1",
		Name:   "Groceries",
		State:  state,
		Editor: client.NewListEditor("L1", "D1", state, sender),
		Conn:   fixedStatus(client.StatusConnected),
	}, sender
}

func TestListHandlerRenders(t *testing.T) {
	view, _ := newView()
	var out bytes.Buffer
	if err := NewListHandler(view, logger.Discard()).Handle(&out, nil); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, "[ ] 1. Milk") || !strings.Contains(got, "[x] 2. Eggs") {
		t.Fatalf("out=%q", got)
	}
}

func TestItemCommands(t *testing.T) {
	view, sender := newView()
	l := logger.Discard()
	var out bytes.Buffer

	if err := NewAddHandler(view, l).Handle(&out, []string{"oat", "milk"}); err != nil {
		t.Fatal(err)
	}
	if err := NewCheckHandler(view, true, l).Handle(&out, []string{"1"}); err != nil {
		t.Fatal(err)
	}
	if err := NewMoveHandler(view, l).Handle(&out, []string{"2", "1"}); err != nil {
		t.Fatal(err)
	}
	if err := NewDeleteHandler(view, l).Handle(&out, []string{"2"}); err != nil {
		t.Fatal(err)
	}

	want := []models.ActionType{
		models.ActionItemAdded,
		models.ActionItemChecked,
		models.ActionItemReordered,
		models.ActionItemDeleted,
	}
	if len(sender.actions) != len(want) {
		t.Fatalf("sent %d actions want %d", len(sender.actions), len(want))
	}
	for i, w := range want {
		if sender.actions[i].Type != w {
			t.Fatalf("action %d type=%s want %s", i, sender.actions[i].Type, w)
		}
	}

	// moved Eggs to the top, then deleted Milk
	items := view.State.Items("L1")
	if len(items) != 1 || items[0].ID != "b" {
		t.Fatalf("items=%+v", items)
	}
}

func TestItemCommandErrors(t *testing.T) {
	view, sender := newView()
	l := logger.Discard()
	var out bytes.Buffer

	cases := []struct {
		name string
		err  error
	}{
		{"add nothing", NewAddHandler(view, l).Handle(&out, nil)},
		{"check nothing", NewCheckHandler(view, true, l).Handle(&out, nil)},
		{"check word", NewCheckHandler(view, true, l).Handle(&out, []string{"milk"})},
		{"check out of range", NewCheckHandler(view, false, l).Handle(&out, []string{"9"})},
		{"delete zero", NewDeleteHandler(view, l).Handle(&out, []string{"0"})},
		{"move one arg", NewMoveHandler(view, l).Handle(&out, []string{"1"})},
		{"move bad target", NewMoveHandler(view, l).Handle(&out, []string{"1", "top"})},
	}
	for _, tc := range cases {
		if tc.err == nil {
			t.Fatalf("%s: no error", tc.name)
		}
	}
	if len(sender.actions) != 0 {
		t.Fatalf("sent %d actions on invalid input", len(sender.actions))
	}
}

func TestStatusAndHelp(t *testing.T) {
	view, _ := newView()
	var out bytes.Buffer

	_ = NewStatusHandler(view, logger.Discard()).Handle(&out, nil)
	_ = NewHelpHandler(logger.Discard()).Handle(&out, nil)

	if !strings.Contains(out.String(), "connection: connected") || !strings.Contains(out.String(), "move <n> <to>") {
		t.Fatalf("out=%q", out.String())
	}
}
