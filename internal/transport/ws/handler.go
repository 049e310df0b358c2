// Package ws exposes the realtime channel registry over a websocket endpoint.
// Clients subscribe with {"action":"joinRoom","room":"<channel>"} and receive
// event frames of the form {"event":"...","data":{...}}.
package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/go-classroom-api/internal/realtime"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

const (
	actionJoinRoom  = "joinRoom"
	actionLeaveRoom = "leaveRoom"
)

type inboundFrame struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

// Handler upgrades HTTP requests and runs the per-connection loop.
type Handler struct {
	registry *realtime.Registry
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHandler(registry *realtime.Registry, logger *zap.Logger) *Handler {
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s := newSocket(conn)
	h.logger.Debug("socket connected", zap.String("socket_id", s.ID()))

	done := make(chan struct{})
	go h.pingLoop(s, done)

	defer func() {
		close(done)
		h.registry.LeaveAll(s.ID())
		s.close()
		h.logger.Debug("socket disconnected", zap.String("socket_id", s.ID()))
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("socket read failed", zap.String("socket_id", s.ID()), zap.Error(err))
			}
			return
		}
		switch frame.Action {
		case actionJoinRoom:
			if frame.Room != "" {
				h.registry.Join(s, frame.Room)
			}
		case actionLeaveRoom:
			if frame.Room != "" {
				h.registry.Leave(s.ID(), frame.Room)
			}
		default:
			h.logger.Debug("unknown socket action",
				zap.String("socket_id", s.ID()),
				zap.String("action", frame.Action),
			)
		}
	}
}

func (h *Handler) pingLoop(s *socket, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
