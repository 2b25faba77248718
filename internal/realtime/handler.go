package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gig-payments/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxInboundBytes = 4096

// Handler upgrades GET /ws?userId=<id> to a push connection.
type Handler struct {
	registry Registry
	upgrader websocket.Upgrader
	now      func() time.Time
	newID    func() string
	log      *zap.Logger
}

// NewHandler builds the websocket endpoint. allowedOrigin "*" or empty accepts
// any Origin header.
func NewHandler(reg Registry, allowedOrigin string, log *zap.Logger) *Handler {
	return &Handler{
		registry: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
		now:   time.Now,
		newID: uuid.NewString,
		log:   log.With(zap.String("component", "realtime")),
	}
}

func (h *Handler) Serve(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	userID, err := parseUserID(c.Query("userId"))
	if err != nil {
		h.reject(ws, err.Error())
		return
	}

	ws.SetReadLimit(maxInboundBytes)
	client := NewClient(h.newID(), userID, ws, h.now())
	h.registry.Register(client)
	metrics.ActiveConnections.Set(float64(h.registry.Len()))

	log := h.log.With(zap.String("conn_id", client.ID), zap.Uint("user_id", userID))
	log.Debug("connection established")

	if err := client.Send(ConnectionEvent(h.now())); err != nil {
		log.Debug("greeting failed", zap.Error(err))
		Evict(h.registry, client)
		return
	}

	h.readLoop(client)
	log.Debug("connection closed")
}

// readLoop blocks until the transport fails. Only pongs are interpreted.
func (h *Handler) readLoop(c *Client) {
	defer Evict(h.registry, c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inbound
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		if msg.Type == TypePong {
			h.registry.Touch(c.ID, h.now())
		}
	}
}

func (h *Handler) reject(ws *websocket.Conn, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = ws.SetWriteDeadline(deadline)
	_ = ws.WriteJSON(ErrorEvent(reason))
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	_ = ws.Close()
}

var (
	errMissingUserID = errors.New("userId is required")
	errInvalidUserID = errors.New("userId must be a positive integer")
)

func parseUserID(raw string) (uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errMissingUserID
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidUserID
	}
	return uint(id), nil
}
