package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/Kerhoff/synclist/internal/models"
)

type fakePeer struct {
	mu     sync.Mutex
	closed bool
	msgs   [][]byte
}

func (p *fakePeer) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

func (p *fakePeer) Send(msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrSessionClosed
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePeer) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *fakePeer) events(t *testing.T) []models.ServerEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.ServerEvent, 0, len(p.msgs))
	for _, raw := range p.msgs {
		var event models.ServerEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			t.Fatalf("peer received invalid json %q: %v", raw, err)
		}
		out = append(out, event)
	}
	return out
}
