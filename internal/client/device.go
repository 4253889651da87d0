package client

import (
	"context"

	"github.com/google/uuid"
)

const deviceIDKey = "device_id"

// DeviceID returns the device identifier stored in kv, creating one on first
// use.
func DeviceID(ctx context.Context, kv KV) (string, error) {
	raw, ok, err := kv.Get(ctx, deviceIDKey)
	if err != nil {
		return "", err
	}
	if ok && len(raw) > 0 {
		return string(raw), nil
	}

	id := uuid.NewString()
	if err := kv.Set(ctx, deviceIDKey, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}
