package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Kerhoff/synclist/internal/models"
)

// DefaultQueueKey is the KV key holding the offline queue
const DefaultQueueKey = "offline_queue"

// PendingActionQueue is a durable FIFO of actions issued while offline.
type PendingActionQueue struct {
	mu  sync.Mutex
	kv  KV
	key string
}

// NewPendingActionQueue stores its entries under key in kv
func NewPendingActionQueue(kv KV, key string) *PendingActionQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &PendingActionQueue{kv: kv, key: key}
}

// Enqueue appends actions durably, in the order given.
func (q *PendingActionQueue) Enqueue(ctx context.Context, actions ...models.Action) error {
	if len(actions) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	queue, err := q.load(ctx)
	if err != nil {
		return err
	}
	queue = append(queue, actions...)
	return q.store(ctx, queue)
}

// Len returns the number of queued actions
func (q *PendingActionQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queue, err := q.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(queue), nil
}

// DrainAndSend removes every queued action and calls send for each one in
// insertion order before returning. Enqueue waits while a drain is running.
// If send fails, that action and the ones after it are put back and the
// error is returned. Actions are lost if the process dies mid-drain.
func (q *PendingActionQueue) DrainAndSend(ctx context.Context, send func(models.Action) error) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queue, err := q.load(ctx)
	if err != nil {
		return 0, err
	}
	if len(queue) == 0 {
		return 0, nil
	}
	if err := q.kv.Delete(ctx, q.key); err != nil {
		return 0, err
	}

	for i, action := range queue {
		if err := send(action); err != nil {
			if serr := q.store(ctx, queue[i:]); serr != nil {
				return i, fmt.Errorf("failed to requeue %d actions after %v: %w", len(queue)-i, err, serr)
			}
			return i, err
		}
	}
	return len(queue), nil
}

func (q *PendingActionQueue) load(ctx context.Context) ([]models.Action, error) {
	raw, ok, err := q.kv.Get(ctx, q.key)
	if err != nil || !ok {
		return nil, err
	}
	var queue []models.Action
	if err := json.Unmarshal(raw, &queue); err != nil {
		return nil, fmt.Errorf("failed to decode offline queue: %w", err)
	}
	return queue, nil
}

func (q *PendingActionQueue) store(ctx context.Context, queue []models.Action) error {
	raw, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("failed to encode offline queue: %w", err)
	}
	return q.kv.Set(ctx, q.key, raw)
}
