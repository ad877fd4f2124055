package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 5 * time.Second
	maxInterval      = 60 * time.Second
	maxIntervalMilli = 60_000
)

// Message types on /ws.
const (
	wsTypeState   = "state"   // on connect and every interval
	wsTypeChanged = "changed" // profile or power source changed
	wsTypeError   = "error"   // state unavailable; the server closes after it
)

type wsEnvelope struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSession is one subscriber. Only the goroutine running stream writes to conn.
type wsSession struct {
	h    *Handler
	conn *websocket.Conn
}

// @Summary      Live state stream
// @Description  Sends {"type":"state","data":PowerState} on connect and every interval (default 5s), {"type":"changed",...} whenever the profile or power source changes, and {"type":"error"} before closing if state cannot be read. Browsers pass the JWT as access_token.
// @Tags         power
// @Param        interval      query  string  false  "Periodic push interval, e.g. 2s"
// @Param        interval_ms   query  int     false  "Periodic push interval in milliseconds"
// @Param        access_token  query  string  false  "JWT when no Authorization header can be sent"
// @Router       /ws [get]
// @Security     BearerAuth
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s := &wsSession{h: h, conn: conn}
	done := make(chan struct{})
	go s.drain(done)
	s.stream(c.Request.Context(), interval, done)
}

func (s *wsSession) stream(ctx context.Context, interval time.Duration, done <-chan struct{}) {
	changes, unsubscribe := s.h.services.Monitoring.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if !s.push(ctx, wsTypeState) {
		return
	}
	for {
		var ok bool
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			ok = s.write(websocket.PingMessage, nil)
		case <-changes:
			ok = s.push(ctx, wsTypeChanged)
		case <-ticker.C:
			ok = s.push(ctx, wsTypeState)
		}
		if !ok {
			return
		}
	}
}

// push sends the current state. It reports whether the session should continue.
func (s *wsSession) push(ctx context.Context, typ string) bool {
	st, err := s.h.services.Monitoring.GetState(ctx)
	if err != nil {
		s.logInfo("ws_get_state_failed", err)
		_ = s.writeJSON(wsEnvelope{Type: wsTypeError, Error: "state unavailable"})
		_ = s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "state unavailable"))
		return false
	}
	if err := s.writeJSON(wsEnvelope{Type: typ, Data: st}); err != nil {
		s.logInfo("ws_write_failed", err)
		return false
	}
	return true
}

func (s *wsSession) writeJSON(v any) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *wsSession) write(messageType int, data []byte) bool {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(messageType, data); err != nil {
		s.logInfo("ws_control_write_failed", err)
		return false
	}
	return true
}

// drain reads until the peer goes away so control frames are processed.
func (s *wsSession) drain(done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.logInfo("ws_read_closed", err)
			return
		}
	}
}

func (s *wsSession) logInfo(event string, err error) {
	if s.h.log != nil {
		s.h.log.Infow(event, "err", err)
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000. Out-of-range values fall back to the default.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}
