package models

import (
	"encoding/json"
	"fmt"
)

// ActionType identifies a mutation sent by a device or an event sent by the server
type ActionType string

const (
	ActionItemAdded     ActionType = "item_added"
	ActionItemChecked   ActionType = "item_checked"
	ActionItemUnchecked ActionType = "item_unchecked"
	ActionItemDeleted   ActionType = "item_deleted"
	ActionItemReordered ActionType = "item_reordered"
	EventError          ActionType = "error"
)

// Action is the client to server envelope. Only its effect is persisted.
type Action struct {
	Type     ActionType      `json:"type"`
	ListID   string          `json:"listId"`
	DeviceID string          `json:"deviceId"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// ServerEvent is the server to client envelope.
type ServerEvent struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Message string          `json:"message,omitempty"`
}

// AddPayload is the item_added request payload
type AddPayload struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// IDPayload is the payload of check, uncheck and delete requests, and of the
// item_deleted event
type IDPayload struct {
	ID string `json:"id"`
}

// ReorderPayload is the item_reordered request and event payload
type ReorderPayload struct {
	Items []Position `json:"items"`
}

// ErrorPayload is the payload of an error event
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewAction builds an action envelope, encoding payload as JSON.
func NewAction(actionType ActionType, listID, deviceID string, payload any) (Action, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Action{}, fmt.Errorf("failed to encode %s payload: %w", actionType, err)
	}
	return Action{Type: actionType, ListID: listID, DeviceID: deviceID, Payload: raw}, nil
}

// NewEvent builds a server event envelope, encoding payload as JSON.
func NewEvent(eventType ActionType, payload any) (ServerEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ServerEvent{}, fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}
	return ServerEvent{Type: eventType, Payload: raw}, nil
}

// NewErrorEvent builds an error event. The text is carried both at the top
// level and inside the payload.
func NewErrorEvent(message string) ServerEvent {
	raw, _ := json.Marshal(ErrorPayload{Message: message})
	return ServerEvent{Type: EventError, Payload: raw, Message: message}
}

// DecodePayload unmarshals the event payload into dst.
func (e ServerEvent) DecodePayload(dst any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s event has no payload", e.Type)
	}
	return json.Unmarshal(e.Payload, dst)
}

// DecodePayload unmarshals the action payload into dst.
func (a Action) DecodePayload(dst any) error {
	if len(a.Payload) == 0 {
		return fmt.Errorf("%s action has no payload", a.Type)
	}
	return json.Unmarshal(a.Payload, dst)
}
