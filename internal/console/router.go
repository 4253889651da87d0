package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// CommandHandler defines the interface for console command handlers
type CommandHandler interface {
	Handle(out io.Writer, args []string) error
}

// Router parses input lines and dispatches them to command handlers
type Router struct {
	logger   *logrus.Logger
	out      io.Writer
	handlers map[string]CommandHandler
}

// NewRouter creates a new command router writing replies to out
func NewRouter(logger *logrus.Logger, out io.Writer) *Router {
	return &Router{
		logger:   logger,
		out:      out,
		handlers: make(map[string]CommandHandler),
	}
}

// RegisterCommand registers a command handler
func (r *Router) RegisterCommand(command string, handler CommandHandler) {
	r.handlers[command] = handler
	r.logger.Debugf("Registered command: %s", command)
}

// Commands returns the registered command names in alphabetical order
func (r *Router) Commands() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandleLine runs the command on one input line
func (r *Router) HandleLine(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	command := strings.ToLower(fields[0])
	args := fields[1:]

	handler, exists := r.handlers[command]
	if !exists {
		r.logger.WithField("command", command).Debug("Unknown command")
		fmt.Fprintln(r.out, "Unknown command. Type help to see available commands.")
		return
	}

	if err := handler.Handle(r.out, args); err != nil {
		r.logger.WithFields(logrus.Fields{
			"command": command,
			"error":   err,
		}).Debug("Command handler failed")
		fmt.Fprintf(r.out, "error: %v\n", err)
	}
}

// Run reads commands from in until it is exhausted, ctx is cancelled or the
// user types quit.
func (r *Router) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errs <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}
			if trimmed := strings.TrimSpace(line); trimmed == "quit" || trimmed == "exit" {
				return nil
			}
			r.HandleLine(line)
		}
	}
}
