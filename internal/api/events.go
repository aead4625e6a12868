package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/apply-wizard/internal/session"
)

const (
	eventWriteWait = 10 * time.Second
	eventPongWait  = 60 * time.Second
	eventPingEvery = eventPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWizardEvents streams the wizard state over a websocket: the current
// state first, then one message per change
func (s *Server) handleWizardEvents(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	state, err := sess.State()
	if err != nil {
		respondWizardError(w, err, "failed to read wizard")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	slog.Info("events websocket connected", "id", sess.ID())

	initial, err := json.Marshal(session.Event{Type: session.EventState, State: &state})
	if err != nil {
		slog.Error("failed to encode wizard event", "error", err)
		return
	}
	if err := writeEvent(conn, initial); err != nil {
		return
	}

	// Read side only handles control frames and notices disconnects
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(eventPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingEvery)
	defer ping.Stop()

	for {
		select {
		case <-done:
			slog.Info("events websocket disconnected", "id", sess.ID())
			return
		case msg, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "wizard closed"),
					time.Now().Add(eventWriteWait))
				return
			}
			if err := writeEvent(conn, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, msg []byte) error {
	conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		slog.Debug("failed to send wizard event", "error", err)
		return err
	}
	return nil
}
