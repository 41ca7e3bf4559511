package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vasanthk84/oi-analyzer/middleware"
	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/services/stream"
)

const (
	// writeWait bounds a single snapshot write to a client
	writeWait = 10 * time.Second

	// pongWait is how long a client may stay silent before the read side
	// gives up on it; pings go out at a fraction of this
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultSendBuffer = 16
)

// StreamHandler upgrades UI connections to websockets and relays position
// snapshots from the hub. Each connection gets a buffered send queue; a client
// that cannot keep up loses frames, never the connection — the next snapshot
// supersedes the missed one anyway.
type StreamHandler struct {
	hub        *stream.Broadcaster
	upgrader   websocket.Upgrader
	sendBuffer int
	logger     *zap.Logger
}

// NewStreamHandler creates a new StreamHandler. allowedOrigins gates the
// websocket handshake the same way CORS gates the REST routes; "*" admits any
// origin.
func NewStreamHandler(hub *stream.Broadcaster, allowedOrigins []string, sendBuffer int, logger *zap.Logger) *StreamHandler {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		sendBuffer: sendBuffer,
		logger:     logger,
	}
}

// HandleWebSocket handles GET /api/ws
func (h *StreamHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error
		h.logger.Warn("websocket upgrade failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		return
	}

	h.logger.Info("websocket client connected",
		zap.String("request_id", requestID),
		zap.String("remote", conn.RemoteAddr().String()))

	send := make(chan models.PositionsSnapshot, h.sendBuffer)
	unsubscribe := h.hub.Subscribe(func(snapshot models.PositionsSnapshot) {
		select {
		case send <- snapshot:
		default:
			// Queue full: drop this frame for this client
		}
	})

	done := make(chan struct{})
	go h.writePump(conn, send, done, requestID)

	h.readPump(conn)

	close(done)
	unsubscribe()
	_ = conn.Close()

	h.logger.Info("websocket client disconnected",
		zap.String("request_id", requestID))
}

// readPump drains client frames until the connection dies. The UI never sends
// data; reading is only how gorilla surfaces close frames and pongs.
func (h *StreamHandler) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) writePump(conn *websocket.Conn, send <-chan models.PositionsSnapshot, done <-chan struct{}, requestID string) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snapshot := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snapshot); err != nil {
				h.logger.Debug("websocket write failed",
					zap.String("request_id", requestID),
					zap.Error(err))
				_ = conn.Close()
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}

		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients (the CLI, curl) send no Origin
			return true
		}
		return set[origin]
	}
}
