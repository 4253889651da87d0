package handlers

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ---------------------------------------------------------------------------
// ListHandler – list
// ---------------------------------------------------------------------------

// ListHandler prints the current items.
type ListHandler struct {
	view   *ListView
	logger *logrus.Logger
}

// NewListHandler creates a new ListHandler.
func NewListHandler(view *ListView, logger *logrus.Logger) *ListHandler {
	return &ListHandler{view: view, logger: logger}
}

// Handle processes the list command.
func (h *ListHandler) Handle(out io.Writer, args []string) error {
	Render(out, h.view.Name, h.view.State.Items(h.view.ListID))
	return nil
}

// ---------------------------------------------------------------------------
// AddHandler – add <text>
// ---------------------------------------------------------------------------

// AddHandler sends a new item to the server.
type AddHandler struct {
	view   *ListView
	logger *logrus.Logger
}

// NewAddHandler creates a new AddHandler.
func NewAddHandler(view *ListView, logger *logrus.Logger) *AddHandler {
	return &AddHandler{view: view, logger: logger}
}

// Handle processes the add command. The item shows up once the server has
// stored it.
func (h *AddHandler) Handle(out io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: add <text>")
	}
	return h.view.Editor.Add(strings.Join(args, " "))
}

// ---------------------------------------------------------------------------
// CheckHandler – check <n> / uncheck <n>
// ---------------------------------------------------------------------------

// CheckHandler checks or unchecks an item.
type CheckHandler struct {
	view    *ListView
	checked bool
	logger  *logrus.Logger
}

// NewCheckHandler creates a handler that sets items to checked.
func NewCheckHandler(view *ListView, checked bool, logger *logrus.Logger) *CheckHandler {
	return &CheckHandler{view: view, checked: checked, logger: logger}
}

// Handle processes the check and uncheck commands.
func (h *CheckHandler) Handle(out io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: check|uncheck <item number>")
	}
	id, err := h.view.resolveItem(args[0])
	if err != nil {
		return err
	}
	return h.view.Editor.SetChecked(id, h.checked)
}

// ---------------------------------------------------------------------------
// DeleteHandler – delete <n>
// ---------------------------------------------------------------------------

// DeleteHandler removes an item.
type DeleteHandler struct {
	view   *ListView
	logger *logrus.Logger
}

// NewDeleteHandler creates a new DeleteHandler.
func NewDeleteHandler(view *ListView, logger *logrus.Logger) *DeleteHandler {
	return &DeleteHandler{view: view, logger: logger}
}

// Handle processes the delete command.
func (h *DeleteHandler) Handle(out io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <item number>")
	}
	id, err := h.view.resolveItem(args[0])
	if err != nil {
		return err
	}
	return h.view.Editor.Delete(id)
}

// ---------------------------------------------------------------------------
// MoveHandler – move <n> <to>
// ---------------------------------------------------------------------------

// MoveHandler reorders an item.
type MoveHandler struct {
	view   *ListView
	logger *logrus.Logger
}

// NewMoveHandler creates a new MoveHandler.
func NewMoveHandler(view *ListView, logger *logrus.Logger) *MoveHandler {
	return &MoveHandler{view: view, logger: logger}
}

// Handle processes the move command. Both numbers are 1-based.
func (h *MoveHandler) Handle(out io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: move <item number> <new number>")
	}
	id, err := h.view.resolveItem(args[0])
	if err != nil {
		return err
	}
	to, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%q is not an item number", args[1])
	}
	return h.view.Editor.Move(id, to-1)
}
