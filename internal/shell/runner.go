// Package shell executes non-built-in commands through the system shell and
// streams their output into terminal sessions. It implements the dispatcher's
// Executor interface.
//
// Commands run line-oriented over pipes, not a PTY: this transcript terminal
// has no raw-mode semantics to honor, and pipes keep stdout and stderr
// separable so the transcript can tag them.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/shellpane/shellpane/internal/shared/id"
	"github.com/shellpane/shellpane/internal/term"
)

// readChunk is the stdout read size. Small enough to stream promptly, large
// enough to keep the coalesced line count low.
const readChunk = 4096

// SessionStore resolves session ids to sessions.
type SessionStore interface {
	Get(sessionID id.SessionID) (*term.Session, bool)
}

// Runner executes commands via `<shell> -c` with the session's working
// directory.
type Runner struct {
	store  SessionStore
	shell  string
	logger *zap.Logger

	mu      sync.Mutex
	running map[id.SessionID]*exec.Cmd
}

// NewRunner creates a runner using the given shell binary (e.g. /bin/sh).
func NewRunner(store SessionStore, shell string, logger *zap.Logger) *Runner {
	if shell == "" {
		shell = "/bin/sh"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:   store,
		shell:   shell,
		logger:  logger,
		running: make(map[id.SessionID]*exec.Cmd),
	}
}

// Execute runs command and blocks until it finishes, fails, or ctx is
// cancelled. Stdout streams into the session in coalesced chunks; stderr is
// appended line-wise as stderr-kind lines.
func (r *Runner) Execute(ctx context.Context, command string, sessionID id.SessionID) error {
	session, ok := r.store.Get(sessionID)
	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	cmd := exec.CommandContext(ctx, r.shell, "-c", command)
	cmd.Dir = session.WorkingDir()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start command: %w", err)
	}

	r.mu.Lock()
	r.running[sessionID] = cmd
	r.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.streamStdout(session, stdout)
	}()
	go func() {
		defer wg.Done()
		r.streamStderr(session, stderr)
	}()

	wg.Wait()
	waitErr := cmd.Wait()

	r.mu.Lock()
	if r.running[sessionID] == cmd {
		delete(r.running, sessionID)
	}
	r.mu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitErr != nil {
		return fmt.Errorf("command failed: %w", waitErr)
	}
	return nil
}

// Cancel best-effort kills the in-flight command for a session. The context
// passed to Execute is the authoritative cancellation path; this covers
// executor-side teardown when the caller cannot reach that context.
func (r *Runner) Cancel(sessionID id.SessionID) {
	r.mu.Lock()
	cmd := r.running[sessionID]
	r.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			r.logger.Debug("failed to kill process",
				zap.String("session_id", sessionID.String()),
				zap.Error(err),
			)
		}
	}
}

func (r *Runner) streamStdout(session *term.Session, stdout io.Reader) {
	buf := make([]byte, readChunk)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			session.StreamOutput(string(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

func (r *Runner) streamStderr(session *term.Session, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, readChunk), 1024*1024)
	for scanner.Scan() {
		session.AddOutput(scanner.Text(), true)
	}
}
