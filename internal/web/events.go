package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raine/sellsmart-bot/internal/session"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// stateEvent is pushed to WebSocket clients on every state change.
type stateEvent struct {
	Type string `json:"type"`
	sessionResponse
}

// stateMailbox holds the newest undelivered state. An offer replaces any
// older state still waiting, so a slow client skips intermediate states but
// always ends on the latest one.
type stateMailbox struct {
	mu      sync.Mutex
	pending *session.State
	ready   chan struct{}
}

func newStateMailbox() *stateMailbox {
	return &stateMailbox{ready: make(chan struct{}, 1)}
}

func (m *stateMailbox) offer(state session.State) {
	m.mu.Lock()
	m.pending = &state
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *stateMailbox) take() (session.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return session.State{}, false
	}
	state := *m.pending
	m.pending = nil
	return state, true
}

// streamEvents upgrades to a WebSocket and pushes the session state, first
// the current snapshot and then every change. Client messages are ignored.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", ws.id).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	mailbox := newStateMailbox()
	remove := ws.controller.OnChange(mailbox.offer)
	defer remove()

	closed := make(chan struct{})
	go readPump(conn, closed)

	log.Info().Str("sessionId", ws.id).Msg("websocket client connected")
	defer log.Info().Str("sessionId", ws.id).Msg("websocket client disconnected")

	if err := writeState(conn, ws.id, ws.controller.Snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-mailbox.ready:
			state, ok := mailbox.take()
			if !ok {
				continue
			}
			if err := writeState(conn, ws.id, state); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeState(conn *websocket.Conn, id string, state session.State) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := conn.WriteJSON(stateEvent{Type: "state", sessionResponse: newSessionResponse(id, state)})
	if err != nil {
		log.Debug().Err(err).Str("sessionId", id).Msg("websocket write failed")
	}
	return err
}

// readPump keeps the read side alive so pongs and close frames are
// processed, and closes done when the client goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
	}
}
