package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/synclist/internal/client"
	"github.com/Kerhoff/synclist/internal/config"
	"github.com/Kerhoff/synclist/internal/console"
	"github.com/Kerhoff/synclist/internal/handlers"
	"github.com/Kerhoff/synclist/internal/models"
	"github.com/Kerhoff/synclist/pkg/logger"
)

const usage = `usage:
  synclist create <name>    create a list and open it
  synclist join <code>      join a list by its join code and open it
  synclist open <list id>   open a list you already belong to`

// syncWriter serializes writes from the console and the event listeners.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.NewWithOutput(cfg.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		l.Fatalf("Failed to create data directory: %v", err)
	}
	kv, err := client.OpenSQLiteKV(ctx, filepath.Join(cfg.DataDir, "synclist.db"))
	if err != nil {
		l.Fatalf("Failed to open local store: %v", err)
	}

	if err := run(ctx, cfg, kv, l, os.Args[1], os.Args[2]); err != nil {
		_ = kv.Close()
		l.Fatal(err)
	}
	if err := kv.Close(); err != nil {
		l.Errorf("Failed to close local store: %v", err)
	}
}

func run(ctx context.Context, cfg *config.ClientConfig, kv *client.SQLiteKV, l *logrus.Logger, command, arg string) error {
	deviceID, err := client.DeviceID(ctx, kv)
	if err != nil {
		return fmt.Errorf("failed to load device id: %w", err)
	}
	apiClient := client.NewAPIClient(cfg.APIURL)
	out := &syncWriter{w: os.Stdout}

	var listID string
	switch command {
	case "create":
		list, err := apiClient.CreateList(ctx, arg, deviceID)
		if err != nil {
			return fmt.Errorf("failed to create list: %w", err)
		}
		fmt.Fprintf(out, "Created %q. Share join code %s to invite others.\n", list.Name, list.JoinCode)
		listID = list.ID
	case "join":
		list, err := apiClient.JoinList(ctx, arg, deviceID)
		if errors.Is(err, client.ErrNotFound) {
			return fmt.Errorf("no list found with code %s", arg)
		}
		if err != nil {
			return fmt.Errorf("failed to join list: %w", err)
		}
		fmt.Fprintf(out, "Joined %q.\n", list.Name)
		listID = list.ID
	case "open":
		listID = arg
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	return openList(ctx, cfg, kv, l, apiClient, out, listID, deviceID)
}

func openList(ctx context.Context, cfg *config.ClientConfig, kv client.KV, l *logrus.Logger,
	apiClient *client.APIClient, out io.Writer, listID, deviceID string) (err error) {
	state := client.NewStateReconciler(l)
	name := listID

	list, err := apiClient.GetList(ctx, listID)
	switch {
	case errors.Is(err, client.ErrNotFound):
		return fmt.Errorf("list %s not found", listID)
	case err != nil:
		l.WithError(err).Warn("Could not load the list, starting offline")
	default:
		name = list.Name
		state.SetItems(listID, list.Items)
	}

	queue := client.NewPendingActionQueue(kv, client.DefaultQueueKey)
	conn, err := client.NewConnectionManager(cfg.WSURL, queue, l,
		client.WithBackoff(cfg.BackoffInitial, cfg.BackoffMax))
	if err != nil {
		return err
	}

	subs := []client.Subscription{
		state.Bind(listID, conn),
		conn.OnStatusChange(func(status client.Status) {
			fmt.Fprintf(out, "[%s]\n", status)
		}),
		conn.OnEvent(func(event models.ServerEvent) {
			if event.Type != models.EventError {
				return
			}
			var payload models.ErrorPayload
			if err := event.DecodePayload(&payload); err != nil || payload.Message == "" {
				payload.Message = event.Message
			}
			fmt.Fprintf(out, "server error: %s\n", payload.Message)
		}),
		state.OnChange(func(changed string) {
			if changed == listID {
				handlers.Render(out, name, state.Items(listID))
			}
		}),
	}

	view := &handlers.ListView{
		ListID: listID,
		Name:   name,
		State:  state,
		Editor: client.NewListEditor(listID, deviceID, state, conn),
		Conn:   conn,
	}

	router := console.NewRouter(l, out)
	router.RegisterCommand("help", handlers.NewHelpHandler(l))
	router.RegisterCommand("list", handlers.NewListHandler(view, l))
	router.RegisterCommand("add", handlers.NewAddHandler(view, l))
	router.RegisterCommand("check", handlers.NewCheckHandler(view, true, l))
	router.RegisterCommand("uncheck", handlers.NewCheckHandler(view, false, l))
	router.RegisterCommand("delete", handlers.NewDeleteHandler(view, l))
	router.RegisterCommand("move", handlers.NewMoveHandler(view, l))
	router.RegisterCommand("status", handlers.NewStatusHandler(view, l))

	conn.Connect(listID, deviceID)
	handlers.Render(out, name, state.Items(listID))
	fmt.Fprintln(out, "Type help for commands.")

	defer func() {
		for _, sub := range subs {
			sub.Cancel()
		}
		conn.Close()

		var result *multierror.Error
		if pending, qerr := queue.Len(context.Background()); qerr != nil {
			result = multierror.Append(result, qerr)
		} else if pending > 0 {
			fmt.Fprintf(out, "%d change(s) will be sent next time you open this list.\n", pending)
		}
		if err != nil {
			result = multierror.Append(result, err)
		}
		err = result.ErrorOrNil()
	}()

	return router.Run(ctx, os.Stdin)
}
