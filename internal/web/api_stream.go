package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/haasonsaas/whiteboard/internal/canvas"
)

const (
	wsMaxPayloadBytes = 1 << 16
	wsPingInterval    = 15 * time.Second
	wsPongWait        = 45 * time.Second
	wsWriteWait       = 10 * time.Second
)

// apiStream handles GET /sessions/{token}/ws. The first frame is a replace
// carrying the current elements; every later write to the session follows
// as a merge or replace frame, and a delete frame closes the stream.
func (h *Handler) apiStream(w http.ResponseWriter, r *http.Request) {
	session, err := h.manager().Resolve(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, err, "Failed to open stream")
		return
	}

	messages, cancel := h.manager().Hub().Subscribe(session.ID)
	defer cancel()

	// Re-read after subscribing: a write that landed since the first read is
	// in this snapshot, and every later write arrives on messages.
	session, err = h.manager().Resolve(r.Context(), session.ID)
	if err != nil {
		h.writeError(w, r, err, "Failed to open stream")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied with an HTTP error.
		return
	}
	defer conn.Close()

	metrics := h.manager().Metrics()
	metrics.ViewerConnected()
	defer metrics.ViewerDisconnected()

	logger := h.config.Logger.With("session_id", session.ID)
	logger.Debug("stream opened", "remote_addr", r.RemoteAddr)

	initial, err := json.Marshal(map[string]any{"elements": nonNil(session.Elements)})
	if err != nil {
		logger.Error("encode initial frame", "error", err)
		return
	}
	if err := writeFrame(conn, canvas.StreamMessage{
		Type:      canvas.MessageReplace,
		SessionID: session.ID,
		Payload:   initial,
		Timestamp: time.Now(),
	}); err != nil {
		return
	}

	done := make(chan struct{})
	go readLoop(conn, done)

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			logger.Debug("stream closed by client")
			return
		case <-r.Context().Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := writeFrame(conn, msg); err != nil {
				logger.Debug("stream write failed", "error", err)
				return
			}
			if msg.Type == canvas.MessageDelete {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session deleted"))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so pongs and close frames are processed.
// Clients never send data; anything they send is ignored.
func readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(wsMaxPayloadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, msg canvas.StreamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
