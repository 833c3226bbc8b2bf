// Package http exposes the terminal engine over REST: session lifecycle,
// transcript snapshots with parsed segments, search, and transcript export.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/shellpane/shellpane/internal/ansi"
	"github.com/shellpane/shellpane/internal/dispatch"
	"github.com/shellpane/shellpane/internal/infrastructure/monitoring"
	"github.com/shellpane/shellpane/internal/registry"
	"github.com/shellpane/shellpane/internal/search"
	"github.com/shellpane/shellpane/internal/shared/id"
	"github.com/shellpane/shellpane/internal/term"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	registry   *registry.Manager
	dispatcher *dispatch.Dispatcher
	parser     *ansi.Parser
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// NewHandlers creates the REST handler set.
func NewHandlers(
	reg *registry.Manager,
	dispatcher *dispatch.Dispatcher,
	parser *ansi.Parser,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		registry:   reg,
		dispatcher: dispatcher,
		parser:     parser,
		metrics:    metrics,
		logger:     logger,
	}
}

// sessionInfo is the public representation of a session.
type sessionInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	WorkingDir string    `json:"working_dir"`
	Running    bool      `json:"running"`
	LineCount  int       `json:"line_count"`
	CreatedAt  time.Time `json:"created_at"`
	Active     bool      `json:"active"`
}

func (h *Handlers) info(session *term.Session) sessionInfo {
	return sessionInfo{
		ID:         session.ID().String(),
		Name:       session.Name(),
		WorkingDir: session.WorkingDir(),
		Running:    session.Running(),
		LineCount:  session.LineCount(),
		CreatedAt:  session.CreatedAt(),
		Active:     session.ID() == h.registry.ActiveID(),
	}
}

// Health handles health checks.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": h.registry.Count(),
	})
}

// ListSessions lists all sessions in tab order.
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.registry.List()
	infos := make([]sessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, h.info(session))
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions":  infos,
		"active_id": h.registry.ActiveID().String(),
	})
}

// CreateSession opens a new tab and makes it active.
func (h *Handlers) CreateSession(c *gin.Context) {
	session := h.registry.Add()
	if h.metrics != nil {
		h.metrics.SessionsTotal.Inc()
		h.metrics.SessionsActive.Set(float64(h.registry.Count()))
	}
	h.logger.Info("session created", zap.String("session_id", session.ID().String()))

	c.JSON(http.StatusCreated, h.info(session))
}

// GetSession returns one session.
func (h *Handlers) GetSession(c *gin.Context) {
	session, ok := h.registry.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, h.info(session))
}

// CloseSession closes a tab. Closing the active tab activates the leftmost
// remaining one; closing the last leaves the registry empty.
func (h *Handlers) CloseSession(c *gin.Context) {
	sessionID := id.SessionID(c.Param("id"))
	if !h.registry.Close(sessionID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if h.metrics != nil {
		h.metrics.SessionsActive.Set(float64(h.registry.Count()))
	}
	h.logger.Info("session closed", zap.String("session_id", sessionID.String()))

	c.JSON(http.StatusOK, gin.H{"active_id": h.registry.ActiveID().String()})
}

// SelectSession makes a tab active. Unknown ids change nothing.
func (h *Handlers) SelectSession(c *gin.Context) {
	if !h.registry.Select(id.SessionID(c.Param("id"))) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active_id": h.registry.ActiveID().String()})
}

// lineView is a transcript line with its parsed segments.
type lineView struct {
	term.Line
	Segments []ansi.Segment `json:"segments"`
}

// GetLines returns the session transcript in display order, each line with
// its styled segments resolved.
func (h *Handlers) GetLines(c *gin.Context) {
	session, ok := h.registry.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	lines := session.Lines()
	views := make([]lineView, 0, len(lines))
	for _, line := range lines {
		views = append(views, lineView{Line: line, Segments: h.parser.Parse(line.Content)})
	}

	c.JSON(http.StatusOK, gin.H{"lines": views})
}

// Search runs a substring search over the session transcript.
func (h *Handlers) Search(c *gin.Context) {
	session, ok := h.registry.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	state := search.Find(session, c.Query("q"))
	c.JSON(http.StatusOK, state)
}

// SubmitInput submits a command to a session. Built-ins resolve before the
// response; external commands run asynchronously and stream over the
// session's WebSocket.
func (h *Handlers) SubmitInput(c *gin.Context) {
	session, ok := h.registry.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	var req struct {
		Input string `json:"input"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if session.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": dispatch.ErrSessionBusy.Error()})
		return
	}

	// The command outlives this request; cancellation comes from Ctrl+C, not
	// from the HTTP connection going away.
	go func() {
		if err := h.dispatcher.Submit(context.Background(), session.ID(), req.Input); err != nil {
			h.logger.Debug("submit rejected",
				zap.String("session_id", session.ID().String()),
				zap.Error(err),
			)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"session_id": session.ID().String()})
}

// Export streams the ANSI-stripped transcript as a gzip attachment.
func (h *Handlers) Export(c *gin.Context) {
	session, ok := h.registry.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	c.Header("Content-Type", "application/gzip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.txt.gz", session.ID()))
	c.Status(http.StatusOK)

	zw := gzip.NewWriter(c.Writer)
	defer zw.Close()
	for _, line := range session.Lines() {
		if _, err := fmt.Fprintln(zw, h.parser.Strip(line.Content)); err != nil {
			h.logger.Warn("export write failed", zap.Error(err))
			return
		}
	}
}
