package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// Wire-level event names. Connected clients depend on these exact strings.
const (
	EventNewGroupMessage = "newGroupMessage"
	EventNewUserMessage  = "newUserMessage"
	EventRiskFlagChanged = "riskFlagChanged"
)

// Socket is one live client connection. The registry only needs an identity
// and a way to emit; the websocket transport provides the real thing and
// tests substitute fakes.
type Socket interface {
	ID() string
	Emit(event string, payload interface{}) error
}

// Registry maps logical channels (a group id or a user id) to the sockets
// currently subscribed to them. It is the only shared mutable state in the
// process and is safe for concurrent join/leave/broadcast.
//
// Subscriptions are transient: nothing is persisted and clients must rejoin
// after a restart.
type Registry struct {
	mu sync.RWMutex
	// channel id -> socket id -> socket
	channels map[string]map[string]Socket
	// socket id -> set of channel ids, for disconnect cleanup
	memberships map[string]map[string]struct{}

	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		channels:    make(map[string]map[string]Socket),
		memberships: make(map[string]map[string]struct{}),
		logger:      logger,
	}
}

// Join subscribes the socket to a channel. A socket may belong to any number
// of channels at once.
func (r *Registry) Join(s Socket, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[channelID]; !ok {
		r.channels[channelID] = make(map[string]Socket)
	}
	r.channels[channelID][s.ID()] = s

	if _, ok := r.memberships[s.ID()]; !ok {
		r.memberships[s.ID()] = make(map[string]struct{})
	}
	r.memberships[s.ID()][channelID] = struct{}{}
}

// Leave removes the socket from one channel. Empty channel entries are
// dropped so the map does not grow without bound.
func (r *Registry) Leave(socketID, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(socketID, channelID)
}

// LeaveAll removes the socket from every channel it joined. Called on
// disconnect.
func (r *Registry) LeaveAll(socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for channelID := range r.memberships[socketID] {
		r.leaveLocked(socketID, channelID)
	}
	delete(r.memberships, socketID)
}

func (r *Registry) leaveLocked(socketID, channelID string) {
	if members, ok := r.channels[channelID]; ok {
		delete(members, socketID)
		if len(members) == 0 {
			delete(r.channels, channelID)
		}
	}
	if chans, ok := r.memberships[socketID]; ok {
		delete(chans, channelID)
	}
}

// Broadcast emits the event to every socket currently subscribed to the
// channel and returns how many sockets it reached. Zero subscribers is not an
// error. Per-socket emit failures are logged and skipped; a socket vanishing
// between lookup and emit is an accepted race, never a dispatch failure.
func (r *Registry) Broadcast(channelID, event string, payload interface{}) int {
	r.mu.RLock()
	sockets := make([]Socket, 0, len(r.channels[channelID]))
	for _, s := range r.channels[channelID] {
		sockets = append(sockets, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range sockets {
		if err := s.Emit(event, payload); err != nil {
			r.logger.Warn("emit failed",
				zap.String("socket", s.ID()),
				zap.String("channel", channelID),
				zap.String("event", event),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}

// Subscribers reports how many sockets are joined to the channel.
func (r *Registry) Subscribers(channelID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[channelID])
}
