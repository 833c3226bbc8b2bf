package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shellpane/shellpane/internal/ansi"
	"github.com/shellpane/shellpane/internal/dispatch"
	"github.com/shellpane/shellpane/internal/registry"
	"github.com/shellpane/shellpane/internal/shared/id"
)

type nopExecutor struct{}

func (nopExecutor) Execute(ctx context.Context, command string, sessionID id.SessionID) error {
	return nil
}

func (nopExecutor) Cancel(sessionID id.SessionID) {}

func newTestRouter(t *testing.T) (*gin.Engine, *registry.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := registry.NewManager(registry.Config{DefaultWorkingDir: "/"})
	dispatcher := dispatch.NewDispatcher(reg, nopExecutor{})
	handlers := NewHandlers(reg, dispatcher, ansi.NewParser(ansi.DefaultPalette()), nil, nil)

	router := gin.New()
	router.GET("/health", handlers.Health)
	router.GET("/sessions", handlers.ListSessions)
	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions/:id", handlers.GetSession)
	router.DELETE("/sessions/:id", handlers.CloseSession)
	router.POST("/sessions/:id/select", handlers.SelectSession)
	router.GET("/sessions/:id/lines", handlers.GetLines)
	router.GET("/sessions/:id/search", handlers.Search)
	router.POST("/sessions/:id/input", handlers.SubmitInput)
	router.GET("/sessions/:id/export", handlers.Export)
	return router, reg
}

func doRequest(router *gin.Engine, method, path string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, float64(1), resp["sessions"])
}

func TestCreateAndListSessions(t *testing.T) {
	router, reg := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Active bool   `json:"active"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Terminal 2", created.Name)
	assert.True(t, created.Active)

	w = doRequest(router, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Sessions []struct {
			ID string `json:"id"`
		} `json:"sessions"`
		ActiveID string `json:"active_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Sessions, 2)
	assert.Equal(t, created.ID, list.ActiveID)
	assert.Equal(t, 2, reg.Count())
}

func TestGetSessionNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/sessions/sess_missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCloseSession(t *testing.T) {
	router, reg := newTestRouter(t)

	first := reg.ActiveID()
	second := reg.Add()

	w := doRequest(router, http.MethodDelete, "/sessions/"+second.ID().String(), "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ActiveID string `json:"active_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, first.String(), resp.ActiveID)
}

func TestCloseLastSessionLeavesRegistryEmpty(t *testing.T) {
	router, reg := newTestRouter(t)

	w := doRequest(router, http.MethodDelete, "/sessions/"+reg.ActiveID().String(), "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ActiveID string `json:"active_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.ActiveID)
	assert.Equal(t, 0, reg.Count())
}

func TestSelectSession(t *testing.T) {
	router, reg := newTestRouter(t)

	first := reg.ActiveID()
	reg.Add()

	w := doRequest(router, http.MethodPost, "/sessions/"+first.String()+"/select", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, reg.ActiveID())

	w = doRequest(router, http.MethodPost, "/sessions/sess_missing/select", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetLinesWithSegments(t *testing.T) {
	router, reg := newTestRouter(t)

	session, _ := reg.Active()
	session.AddCommand("ls")
	session.AddOutput("\x1b[31mred\x1b[0m plain", false)

	w := doRequest(router, http.MethodGet, "/sessions/"+session.ID().String()+"/lines", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Lines []struct {
			Kind     string `json:"kind"`
			Content  string `json:"content"`
			Segments []struct {
				Text string `json:"text"`
			} `json:"segments"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Lines, 2)
	assert.Equal(t, "command", resp.Lines[0].Kind)
	require.Len(t, resp.Lines[1].Segments, 2)
	assert.Equal(t, "red", resp.Lines[1].Segments[0].Text)
	assert.Equal(t, " plain", resp.Lines[1].Segments[1].Text)
}

func TestSubmitInputBuiltin(t *testing.T) {
	router, reg := newTestRouter(t)

	session, _ := reg.Active()
	w := doRequest(router, http.MethodPost,
		"/sessions/"+session.ID().String()+"/input", `{"input":"cd /tmp"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		return session.WorkingDir() == "/tmp"
	}, time.Second, 5*time.Millisecond)
}

func TestSubmitInputBusy(t *testing.T) {
	router, reg := newTestRouter(t)

	session, _ := reg.Active()
	session.SetRunning(true)

	w := doRequest(router, http.MethodPost,
		"/sessions/"+session.ID().String()+"/input", `{"input":"ls"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmitInputBadBody(t *testing.T) {
	router, reg := newTestRouter(t)

	w := doRequest(router, http.MethodPost,
		"/sessions/"+reg.ActiveID().String()+"/input", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchEndpoint(t *testing.T) {
	router, reg := newTestRouter(t)

	session, _ := reg.Active()
	session.AddOutput("error: something broke", true)
	session.AddOutput("all good", false)
	session.AddOutput("another ERROR here", true)

	w := doRequest(router, http.MethodGet,
		"/sessions/"+session.ID().String()+"/search?q=error", "")
	require.Equal(t, http.StatusOK, w.Code)

	var state struct {
		Query   string `json:"query"`
		Matches []struct {
			LineIndex int `json:"line_index"`
		} `json:"matches"`
		Current int `json:"current"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, "error", state.Query)
	require.Len(t, state.Matches, 2)
	assert.Equal(t, 0, state.Matches[0].LineIndex)
	assert.Equal(t, 2, state.Matches[1].LineIndex)
}

func TestExportStripsANSI(t *testing.T) {
	router, reg := newTestRouter(t)

	session, _ := reg.Active()
	session.AddCommand("ls")
	session.AddOutput("\x1b[32mfile.txt\x1b[0m", false)

	w := doRequest(router, http.MethodGet,
		"/sessions/"+session.ID().String()+"/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))

	zr, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer zr.Close()

	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "ls\nfile.txt\n", string(data))
}
