package broadcast

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pulpit/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 4096
)

// WebSocketOptions configures the status stream endpoint.
type WebSocketOptions struct {
	// AllowedOrigins lists browser origins accepted besides the request
	// host. "*" accepts any origin.
	AllowedOrigins []string
}

// WebSocketHandler streams hub events to WebSocket clients, one JSON text
// frame per event.
type WebSocketHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler builds the /ws/status handler.
func NewWebSocketHandler(hub *Hub, opts WebSocketOptions, logger *slog.Logger) *WebSocketHandler {
	allowed := append([]string(nil), opts.AllowedOrigins...)
	return &WebSocketHandler{
		hub:    hub,
		logger: logging.NewComponentLogger(logger, "broadcast-ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r, allowed)
			},
		},
	}
}

func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Host, r.Host)
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	id, events := h.hub.Subscribe()
	h.logger.Info("status observer connected",
		logging.String(logging.FieldEventType, "ws_connected"),
		logging.String("client_id", id),
		logging.String("remote", r.RemoteAddr),
	)
	go h.writePump(conn, events)
	h.readPump(conn, id)
}

// readPump discards inbound frames and unsubscribes on disconnect, which
// closes the event channel and ends the write pump.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, id string) {
	defer func() {
		h.hub.Unsubscribe(id)
		_ = conn.Close()
		h.logger.Info("status observer disconnected",
			logging.String(logging.FieldEventType, "ws_disconnected"),
			logging.String("client_id", id),
		)
	}()
	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read failed", logging.Error(err))
			}
			return
		}
	}
}

func (h *WebSocketHandler) writePump(conn *websocket.Conn, events <-chan Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case event, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Debug("encode status event failed", logging.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
