package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// eventFrame is the outbound wire shape: one event name plus its payload.
type eventFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// socket wraps one websocket connection. Writes are serialized with a mutex
// because broadcasts and the ping loop run on different goroutines.
type socket struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func newSocket(conn *websocket.Conn) *socket {
	return &socket{id: uuid.NewString(), conn: conn}
}

func (s *socket) ID() string { return s.id }

func (s *socket) Emit(event string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(eventFrame{Event: event, Data: payload})
}

func (s *socket) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *socket) close() {
	_ = s.conn.Close()
}
