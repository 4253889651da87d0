package handlers

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

const helpText = `Commands:
  list                 show the list
  add <text>           add an item
  check <n>            check item n
  uncheck <n>          uncheck item n
  delete <n>           delete item n
  move <n> <to>        move item n to position to
  status               show the connection state
  help                 show this help
  quit                 leave the list`

// HelpHandler prints the available commands.
type HelpHandler struct {
	logger *logrus.Logger
}

// NewHelpHandler creates a new HelpHandler.
func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

// Handle processes the help command.
func (h *HelpHandler) Handle(out io.Writer, args []string) error {
	fmt.Fprintln(out, helpText)
	return nil
}

// StatusHandler prints the connection state.
type StatusHandler struct {
	view   *ListView
	logger *logrus.Logger
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(view *ListView, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{view: view, logger: logger}
}

// Handle processes the status command.
func (h *StatusHandler) Handle(out io.Writer, args []string) error {
	fmt.Fprintf(out, "connection: %s\n", h.view.Conn.Status())
	return nil
}
