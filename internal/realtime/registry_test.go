package realtime

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSocket struct {
	id     string
	mu     sync.Mutex
	events []string
	fail   bool
}

func newFakeSocket() *fakeSocket { return &fakeSocket{id: uuid.NewString()} }

func (s *fakeSocket) ID() string { return s.id }

func (s *fakeSocket) Emit(event string, _ interface{}) error {
	if s.fail {
		return errors.New("connection reset")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *fakeSocket) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func TestRegistry_JoinAndBroadcast(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(zap.NewNop())
	s1 := newFakeSocket()
	s2 := newFakeSocket()

	r.Join(s1, "group-1")
	r.Join(s2, "group-1")

	delivered := r.Broadcast("group-1", EventNewGroupMessage, map[string]string{"hello": "world"})

	req.Equal(2, delivered)
	req.Equal([]string{EventNewGroupMessage}, s1.received())
	req.Equal([]string{EventNewGroupMessage}, s2.received())
}

func TestRegistry_BroadcastEmptyChannel_NoError(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.Equal(t, 0, r.Broadcast("nobody-home", EventNewUserMessage, nil))
}

func TestRegistry_SocketInMultipleChannels(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(zap.NewNop())
	s := newFakeSocket()

	r.Join(s, "group-1")
	r.Join(s, "group-2")
	r.Join(s, s.ID())

	req.Equal(1, r.Broadcast("group-1", EventNewGroupMessage, nil))
	req.Equal(1, r.Broadcast("group-2", EventNewGroupMessage, nil))
	req.Len(s.received(), 2)
}

func TestRegistry_Leave(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(zap.NewNop())
	s := newFakeSocket()

	r.Join(s, "group-1")
	r.Leave(s.ID(), "group-1")

	req.Equal(0, r.Broadcast("group-1", EventNewGroupMessage, nil))
	req.Equal(0, r.Subscribers("group-1"))
}

func TestRegistry_LeaveAll_CleansEveryChannel(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(zap.NewNop())
	s := newFakeSocket()
	other := newFakeSocket()

	r.Join(s, "group-1")
	r.Join(s, "group-2")
	r.Join(other, "group-1")

	r.LeaveAll(s.ID())

	req.Equal(1, r.Subscribers("group-1"))
	req.Equal(0, r.Subscribers("group-2"))
	req.Equal(1, r.Broadcast("group-1", EventNewGroupMessage, nil))
	req.Empty(s.received())
}

func TestRegistry_EmitFailure_SkipsSocket(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(zap.NewNop())
	healthy := newFakeSocket()
	broken := newFakeSocket()
	broken.fail = true

	r.Join(healthy, "group-1")
	r.Join(broken, "group-1")

	delivered := r.Broadcast("group-1", EventNewGroupMessage, nil)

	req.Equal(1, delivered)
	req.Len(healthy.received(), 1)
}

func TestRegistry_ConcurrentJoinLeaveBroadcast(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := newFakeSocket()
			r.Join(s, "group-1")
			r.Broadcast("group-1", EventNewGroupMessage, nil)
			r.LeaveAll(s.ID())
		}()
	}
	wg.Wait()
	require.Equal(t, 0, r.Subscribers("group-1"))
}
