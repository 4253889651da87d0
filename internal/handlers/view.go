package handlers

import (
	"fmt"
	"io"
	"strconv"

	"github.com/Kerhoff/synclist/internal/client"
	"github.com/Kerhoff/synclist/internal/models"
)

// StatusSource reports the connection state
type StatusSource interface {
	Status() client.Status
}

// ListView is the list a console session is editing
type ListView struct {
	ListID string
	Name   string
	State  *client.StateReconciler
	Editor *client.ListEditor
	Conn   StatusSource
}

// Render prints the items of the list, numbered from 1 in render order.
func Render(out io.Writer, name string, items []models.Item) {
	fmt.Fprintf(out, "── %s ──\n", name)
	if len(items) == 0 {
		fmt.Fprintln(out, "  (empty)")
		return
	}
	for i, item := range items {
		mark := " "
		if item.Checked {
			mark = "x"
		}
		fmt.Fprintf(out, "  [%s] %d. %s\n", mark, i+1, item.Text)
	}
}

// resolveItem maps a 1-based item number to the item's ID.
func (v *ListView) resolveItem(arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return "", fmt.Errorf("%q is not an item number", arg)
	}
	items := v.State.Items(v.ListID)
	if n < 1 || n > len(items) {
		return "", fmt.Errorf("no item number %d", n)
	}
	return items[n-1].ID, nil
}
