package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/synclist/internal/metrics"
	"github.com/Kerhoff/synclist/internal/models"
	"github.com/Kerhoff/synclist/internal/repository"
)

// Error messages sent to the offending session.
const (
	MsgInvalidJSON       = "Invalid JSON"
	MsgMissingFields     = "Missing required fields"
	MsgUnknownActionType = "Unknown action type"
	MsgServerError       = "Server error"
)

type outcome string

const (
	outcomeOK            outcome = "ok"
	outcomeNoop          outcome = "noop"
	outcomeProtocolError outcome = "protocol_error"
	outcomeServerError   outcome = "server_error"
)

// errInvalidPayload marks payloads that do not match their action type.
var errInvalidPayload = errors.New("invalid payload")

type actionHandler func(ctx context.Context, sender Peer, action models.Action) (outcome, error)

// Dispatcher validates inbound actions, persists their effect and fans the
// persisted result out to the list's room.
type Dispatcher struct {
	items    repository.ItemRepository
	registry *RoomRegistry
	logger   *logrus.Logger
	locks    *keyedMutex
	handlers map[models.ActionType]actionHandler
	newID    func() string
}

// NewDispatcher creates a dispatcher persisting through items and
// broadcasting through registry
func NewDispatcher(items repository.ItemRepository, registry *RoomRegistry, logger *logrus.Logger) *Dispatcher {
	d := &Dispatcher{
		items:    items,
		registry: registry,
		logger:   logger,
		locks:    newKeyedMutex(),
		newID:    uuid.NewString,
	}
	d.handlers = map[models.ActionType]actionHandler{
		models.ActionItemAdded:     d.handleItemAdded,
		models.ActionItemChecked:   d.handleItemChecked,
		models.ActionItemUnchecked: d.handleItemChecked,
		models.ActionItemDeleted:   d.handleItemDeleted,
		models.ActionItemReordered: d.handleItemReordered,
	}
	return d
}

// Handle processes one raw inbound message from sender. Failures are
// reported to the sender only and never end the connection.
func (d *Dispatcher) Handle(ctx context.Context, sender Peer, raw []byte) {
	action, msg := decodeAction(raw)
	if msg != "" {
		metrics.ActionsTotal.WithLabelValues(string(action.Type), string(outcomeProtocolError)).Inc()
		d.replyError(sender, msg)
		return
	}

	handler, ok := d.handlers[action.Type]
	if !ok {
		d.logger.WithFields(logrus.Fields{
			"action":    action.Type,
			"list_id":   action.ListID,
			"device_id": action.DeviceID,
		}).Warn("Unknown action type")
		metrics.ActionsTotal.WithLabelValues("unknown", string(outcomeProtocolError)).Inc()
		d.replyError(sender, MsgUnknownActionType)
		return
	}

	start := time.Now()
	result := d.apply(ctx, handler, sender, action)
	metrics.ActionsTotal.WithLabelValues(string(action.Type), string(result)).Inc()
	metrics.ActionDuration.WithLabelValues(string(action.Type)).Observe(time.Since(start).Seconds())
}

// apply runs handler while holding the room's lock so that persist and
// broadcast are observed in the same order by every member.
func (d *Dispatcher) apply(ctx context.Context, handler actionHandler, sender Peer, action models.Action) (result outcome) {
	unlock := d.locks.Lock(action.ListID)
	defer unlock()

	log := d.logger.WithFields(logrus.Fields{
		"action":    action.Type,
		"list_id":   action.ListID,
		"device_id": action.DeviceID,
	})

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Panic in action handler: %v", r)
			d.replyError(sender, MsgServerError)
			result = outcomeServerError
		}
	}()

	result, err := handler(ctx, sender, action)
	if err == nil {
		return result
	}
	if errors.Is(err, errInvalidPayload) {
		log.WithError(err).Debug("Rejected action payload")
		d.replyError(sender, MsgServerError)
		return outcomeProtocolError
	}
	log.WithError(err).Error("Error handling action")
	d.replyError(sender, MsgServerError)
	return outcomeServerError
}

func (d *Dispatcher) handleItemAdded(ctx context.Context, sender Peer, action models.Action) (outcome, error) {
	var payload models.AddPayload
	if err := decodePayload(action, &payload); err != nil {
		return outcomeProtocolError, err
	}

	item, err := d.items.Create(ctx, &models.Item{
		ID:        d.newID(),
		ListID:    action.ListID,
		Text:      payload.Text,
		Position:  payload.Position,
		CreatedBy: action.DeviceID,
	})
	if err != nil {
		return outcomeServerError, err
	}

	msg, err := encodeEvent(models.ActionItemAdded, item)
	if err != nil {
		return outcomeServerError, err
	}

	// The sender learns the server-assigned id only through this echo.
	d.reply(sender, msg)
	d.registry.Broadcast(action.ListID, msg, sender)
	return outcomeOK, nil
}

func (d *Dispatcher) handleItemChecked(ctx context.Context, sender Peer, action models.Action) (outcome, error) {
	var payload models.IDPayload
	if err := decodePayload(action, &payload); err != nil {
		return outcomeProtocolError, err
	}
	if payload.ID == "" {
		return outcomeProtocolError, fmt.Errorf("%w: id is required", errInvalidPayload)
	}

	checked := action.Type == models.ActionItemChecked
	item, err := d.items.SetChecked(ctx, payload.ID, checked)
	if err != nil {
		return outcomeServerError, err
	}
	if item == nil {
		// deleted by another device in the meantime
		return outcomeNoop, nil
	}

	msg, err := encodeEvent(action.Type, item)
	if err != nil {
		return outcomeServerError, err
	}
	d.registry.Broadcast(action.ListID, msg, sender)
	return outcomeOK, nil
}

func (d *Dispatcher) handleItemDeleted(ctx context.Context, sender Peer, action models.Action) (outcome, error) {
	var payload models.IDPayload
	if err := decodePayload(action, &payload); err != nil {
		return outcomeProtocolError, err
	}
	if payload.ID == "" {
		return outcomeProtocolError, fmt.Errorf("%w: id is required", errInvalidPayload)
	}

	if err := d.items.Delete(ctx, payload.ID); err != nil {
		return outcomeServerError, err
	}

	msg, err := encodeEvent(models.ActionItemDeleted, models.IDPayload{ID: payload.ID})
	if err != nil {
		return outcomeServerError, err
	}
	d.registry.Broadcast(action.ListID, msg, sender)
	return outcomeOK, nil
}

func (d *Dispatcher) handleItemReordered(ctx context.Context, sender Peer, action models.Action) (outcome, error) {
	var payload models.ReorderPayload
	if err := decodePayload(action, &payload); err != nil {
		return outcomeProtocolError, err
	}
	for _, u := range payload.Items {
		if u.ID == "" {
			return outcomeProtocolError, fmt.Errorf("%w: every item needs an id", errInvalidPayload)
		}
	}

	if err := d.items.Reorder(ctx, payload.Items); err != nil {
		return outcomeServerError, err
	}

	msg, err := encodeEvent(models.ActionItemReordered, payload)
	if err != nil {
		return outcomeServerError, err
	}
	d.registry.Broadcast(action.ListID, msg, sender)
	return outcomeOK, nil
}

func (d *Dispatcher) reply(peer Peer, msg []byte) {
	if err := peer.Send(msg); err != nil {
		d.logger.WithError(err).Debug("Reply not delivered")
	}
}

func (d *Dispatcher) replyError(peer Peer, message string) {
	msg, err := json.Marshal(models.NewErrorEvent(message))
	if err != nil {
		d.logger.WithError(err).Error("Failed to encode error event")
		return
	}
	d.reply(peer, msg)
}

// envelope is an inbound message before its fields are type checked.
type envelope struct {
	Type     any             `json:"type"`
	ListID   any             `json:"listId"`
	DeviceID any             `json:"deviceId"`
	Payload  json.RawMessage `json:"payload"`
}

// decodeAction parses raw into an action. On failure it returns the error
// message for the sender: a missing or empty field is reported before a
// type that is not a string.
func decodeAction(raw []byte) (models.Action, string) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.Action{}, MsgInvalidJSON
	}
	if !present(env.Type) || !present(env.ListID) || !present(env.DeviceID) {
		return models.Action{}, MsgMissingFields
	}
	listID, ok := env.ListID.(string)
	if !ok {
		return models.Action{}, MsgMissingFields
	}
	deviceID, ok := env.DeviceID.(string)
	if !ok {
		return models.Action{}, MsgMissingFields
	}
	actionType, ok := env.Type.(string)
	if !ok {
		return models.Action{}, MsgUnknownActionType
	}
	return models.Action{
		Type:     models.ActionType(actionType),
		ListID:   listID,
		DeviceID: deviceID,
		Payload:  env.Payload,
	}, ""
}

// present reports whether a decoded JSON value is set and not empty, zero
// or false.
func present(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0
	default:
		return true
	}
}

func decodePayload(action models.Action, dst any) error {
	if err := action.DecodePayload(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	return nil
}

func encodeEvent(eventType models.ActionType, payload any) ([]byte, error) {
	event, err := models.NewEvent(eventType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(event)
}
