package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shellpane/shellpane/internal/ansi"
	"github.com/shellpane/shellpane/internal/dispatch"
	"github.com/shellpane/shellpane/internal/infrastructure/monitoring"
	"github.com/shellpane/shellpane/internal/registry"
	"github.com/shellpane/shellpane/internal/shared/id"
	"github.com/shellpane/shellpane/internal/term"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS policy is enforced at the HTTP layer
	},
}

// Limits throttles outgoing event delivery per connection.
type Limits struct {
	EventsPerSecond int
	Burst           int
}

// Handler upgrades session stream connections.
type Handler struct {
	registry   *registry.Manager
	dispatcher *dispatch.Dispatcher
	parser     *ansi.Parser
	metrics    *monitoring.Metrics
	logger     *zap.Logger
	limits     Limits
}

// NewHandler creates a WebSocket handler.
func NewHandler(
	reg *registry.Manager,
	dispatcher *dispatch.Dispatcher,
	parser *ansi.Parser,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
	limits Limits,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.EventsPerSecond <= 0 {
		limits.EventsPerSecond = 120
	}
	if limits.Burst <= 0 {
		limits.Burst = limits.EventsPerSecond * 2
	}
	return &Handler{
		registry:   reg,
		dispatcher: dispatcher,
		parser:     parser,
		metrics:    metrics,
		logger:     logger,
		limits:     limits,
	}
}

// clientMessage is what the frontend sends.
type clientMessage struct {
	Type  string `json:"type"`
	Input string `json:"input,omitempty"`
	Key   string `json:"key,omitempty"`
}

// lineView is a line with its parsed segments.
type lineView struct {
	term.Line
	Segments []ansi.Segment `json:"segments"`
}

// serverMessage is what the server pushes.
type serverMessage struct {
	Type    string     `json:"type"`
	Session string     `json:"session_id,omitempty"`
	Line    *lineView  `json:"line,omitempty"`
	Lines   []lineView `json:"lines,omitempty"`
	Running *bool      `json:"running,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// HandleConnection upgrades the request and streams the session until either
// side closes.
func (h *Handler) HandleConnection(c *gin.Context) {
	sessionID := id.SessionID(c.Param("id"))
	session, ok := h.registry.Get(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.New().String()
	logger := h.logger.With(
		zap.String("conn_id", connID),
		zap.String("session_id", sessionID.String()),
	)
	logger.Info("stream connected")
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	watcher := session.Watch()
	defer watcher.Close()

	// Reader feeds the dispatcher and never writes to the socket; pings are
	// forwarded so all writes stay on this goroutine.
	pings := make(chan struct{}, 1)
	done := make(chan struct{})
	go h.readLoop(conn, session, logger, pings, done)

	if err := h.send(conn, h.welcome(session)); err != nil {
		return
	}

	limiter := rate.NewLimiter(rate.Limit(h.limits.EventsPerSecond), h.limits.Burst)
	ctx := c.Request.Context()

	for {
		select {
		case <-done:
			logger.Info("stream disconnected")
			return

		case <-pings:
			if err := h.send(conn, serverMessage{Type: "pong"}); err != nil {
				return
			}

		case event := <-watcher.Events():
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			if watcher.NeedsResync() {
				// Queued events predate the drop; the snapshot supersedes
				// them all.
				drain(watcher)
				if err := h.send(conn, h.snapshot(session, "resync")); err != nil {
					return
				}
				continue
			}
			if err := h.send(conn, h.translate(session, event)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readLoop(conn *websocket.Conn, session *term.Session, logger *zap.Logger, pings chan<- struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			logger.Debug("malformed client message", zap.Error(err))
			continue
		}
		if h.metrics != nil {
			h.metrics.WSMessages.WithLabelValues("in", msg.Type).Inc()
		}

		switch msg.Type {
		case "input":
			h.dispatcher.SetInput(session.ID(), msg.Input)

		case "key":
			key := dispatch.Key(msg.Key)
			if key == dispatch.KeyEnter {
				// Submit blocks until the executor resolves; do not stall the
				// read loop (Ctrl+C must stay deliverable).
				go func() {
					if err := h.dispatcher.HandleKey(context.Background(), session.ID(), key); err != nil {
						logger.Debug("key rejected", zap.Error(err))
					}
				}()
				continue
			}
			if err := h.dispatcher.HandleKey(context.Background(), session.ID(), key); err != nil {
				logger.Debug("key rejected", zap.Error(err))
			}

		case "ping":
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}

func drain(watcher *term.Watcher) {
	for {
		select {
		case <-watcher.Events():
		default:
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, msg serverMessage) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.WSMessages.WithLabelValues("out", msg.Type).Inc()
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Handler) welcome(session *term.Session) serverMessage {
	msg := h.snapshot(session, "welcome")
	running := session.Running()
	msg.Running = &running
	return msg
}

func (h *Handler) snapshot(session *term.Session, msgType string) serverMessage {
	lines := session.Lines()
	views := make([]lineView, 0, len(lines))
	for _, line := range lines {
		views = append(views, h.view(line))
	}
	return serverMessage{
		Type:    msgType,
		Session: session.ID().String(),
		Lines:   views,
	}
}

func (h *Handler) translate(session *term.Session, event term.Event) serverMessage {
	switch event.Type {
	case term.EventLineAdded:
		view := h.view(*event.Line)
		return serverMessage{Type: "line", Session: session.ID().String(), Line: &view}
	case term.EventLineUpdated:
		view := h.view(*event.Line)
		return serverMessage{Type: "stream", Session: session.ID().String(), Line: &view}
	case term.EventCleared:
		return serverMessage{Type: "clear", Session: session.ID().String()}
	case term.EventRunning:
		running := event.Running
		return serverMessage{Type: "running", Session: session.ID().String(), Running: &running}
	}
	return serverMessage{Type: "unknown"}
}

func (h *Handler) view(line term.Line) lineView {
	return lineView{Line: line, Segments: h.parser.Parse(line.Content)}
}
