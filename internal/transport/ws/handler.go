// Package ws serves interactive similarity sessions over websockets:
// UI events in, full state snapshots out.
package ws

import (
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/cinesim/internal/logger"
	"github.com/kailas-cloud/cinesim/internal/metrics"
	"github.com/kailas-cloud/cinesim/internal/session"
	"github.com/kailas-cloud/cinesim/internal/transport/api"
)

// SessionFactory creates the session served on one connection.
type SessionFactory func(id string, logger *zap.Logger) *session.Session

// Config tunes websocket connections.
type Config struct {
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	MaxMessageBytes int64
	// AllowedOrigins lists the accepted Origin hosts. Empty allows same-host requests only.
	AllowedOrigins []string
}

func (c *Config) applyDefaults() {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 4096
	}
}

// Handler upgrades requests and runs one session per connection.
type Handler struct {
	newSession SessionFactory
	cfg        Config
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewHandler creates a websocket session handler.
func NewHandler(factory SessionFactory, cfg Config, logger *zap.Logger) *Handler {
	cfg.applyDefaults()
	h := &Handler{newSession: factory, cfg: cfg, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if len(h.cfg.AllowedOrigins) == 0 {
		return strings.EqualFold(u.Host, r.Host)
	}
	return slices.ContainsFunc(h.cfg.AllowedOrigins, func(o string) bool {
		return o == "*" || strings.EqualFold(o, origin) || strings.EqualFold(o, u.Host)
	})
}

// ServeHTTP handles GET /api/session/ws.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	reqLogger := logpkg.FromContext(r.Context())
	sess := h.newSession(id, reqLogger)
	logger := logpkg.FromContext(logpkg.WithSession(r.Context(), id))

	metrics.ActiveSessions.Inc()
	logger.Info("session opened")

	c := &client{
		conn:   conn,
		sess:   sess,
		cfg:    h.cfg,
		logger: logger,
		done:   make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()

	c.readLoop()

	close(c.done)
	wg.Wait()
	sess.Close()
	_ = conn.Close()
	metrics.ActiveSessions.Dec()
	logger.Info("session closed")
}

// client pumps one connection. Only writeLoop and reply write to conn, serialized by writeMu.
type client struct {
	conn   *websocket.Conn
	sess   *session.Session
	cfg    Config
	logger *zap.Logger
	done   chan struct{}

	writeMu sync.Mutex
}

func (c *client) readLoop() {
	pongWait := 2 * c.cfg.PingInterval
	c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:wrapcheck // gorilla callback
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg eventMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(errorMessage{Type: messageError, Code: api.ErrorCodeBadRequest, Message: "invalid event: " + err.Error()})
			continue
		}
		if err := c.sess.Handle(msg.toEvent()); err != nil {
			c.logger.Debug("event rejected", zap.String("type", msg.Type), zap.Error(err))
			c.reply(newErrorMessage(err))
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	if !c.reply(newSnapshotMessage(c.sess.Snapshot())) {
		return
	}
	for {
		select {
		case <-c.done:
			return
		case <-c.sess.Updates():
			if !c.reply(newSnapshotMessage(c.sess.Snapshot())) {
				return
			}
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.fail(err)
				return
			}
		}
	}
}

// reply writes one JSON message. A failed write closes the connection, which ends readLoop.
func (c *client) reply(v any) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		c.fail(err)
		return false
	}
	return true
}

func (c *client) fail(err error) {
	c.logger.Warn("websocket write failed", zap.Error(err))
	_ = c.conn.Close()
}
