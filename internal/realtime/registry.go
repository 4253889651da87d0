package realtime

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/synclist/internal/metrics"
)

// Peer is a connected session as seen by the registry and the dispatcher.
type Peer interface {
	// IsOpen reports whether the transport is ready to send.
	IsOpen() bool
	Send(msg []byte) error
}

// RoomRegistry maps a list ID to the sessions currently viewing that list.
// A room exists only while it has at least one member.
type RoomRegistry struct {
	mu     sync.RWMutex
	rooms  map[string]map[Peer]struct{}
	logger *logrus.Logger
}

// NewRoomRegistry creates an empty registry
func NewRoomRegistry(logger *logrus.Logger) *RoomRegistry {
	return &RoomRegistry{
		rooms:  make(map[string]map[Peer]struct{}),
		logger: logger,
	}
}

// Join adds peer to the room for listID, creating the room if needed.
// Joining twice is harmless.
func (r *RoomRegistry) Join(listID string, peer Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[listID]
	if !ok {
		room = make(map[Peer]struct{})
		r.rooms[listID] = room
	}
	room[peer] = struct{}{}
	metrics.ActiveRooms.Set(float64(len(r.rooms)))
}

// Leave removes peer from the room and deletes the room once it is empty.
// Unknown rooms and peers are ignored.
func (r *RoomRegistry) Leave(listID string, peer Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[listID]
	if !ok {
		return
	}
	delete(room, peer)
	if len(room) == 0 {
		delete(r.rooms, listID)
	}
	metrics.ActiveRooms.Set(float64(len(r.rooms)))
}

// Broadcast delivers msg to every open member of the room except exclude,
// which may be nil.
func (r *RoomRegistry) Broadcast(listID string, msg []byte, exclude Peer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for peer := range r.rooms[listID] {
		if peer == exclude || !peer.IsOpen() {
			continue
		}
		if err := peer.Send(msg); err != nil {
			r.logger.WithError(err).WithField("list_id", listID).Debug("Broadcast delivery failed")
			continue
		}
		metrics.BroadcastMessages.Inc()
	}
}

// HasRoom reports whether anyone is connected to listID
func (r *RoomRegistry) HasRoom(listID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[listID]
	return ok
}

// Members returns the number of sessions in the room for listID
func (r *RoomRegistry) Members(listID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[listID])
}

// RoomCount returns the number of non-empty rooms
func (r *RoomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
