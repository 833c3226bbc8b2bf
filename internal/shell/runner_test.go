package shell

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shellpane/shellpane/internal/registry"
	"github.com/shellpane/shellpane/internal/term"
)

func newRunner(t *testing.T) (*Runner, *term.Session) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	reg := registry.NewManager(registry.Config{DefaultWorkingDir: t.TempDir()})
	session, ok := reg.Active()
	require.True(t, ok)
	return NewRunner(reg, "/bin/sh", nil), session
}

func joined(session *term.Session) string {
	var sb strings.Builder
	for _, line := range session.Lines() {
		sb.WriteString(line.Content)
	}
	return sb.String()
}

func TestExecuteStreamsStdout(t *testing.T) {
	runner, session := newRunner(t)

	err := runner.Execute(context.Background(), "echo hello", session.ID())

	require.NoError(t, err)
	assert.Contains(t, joined(session), "hello")
	for _, line := range session.Lines() {
		assert.Equal(t, term.KindStdout, line.Kind)
	}
}

func TestExecuteStderrTagged(t *testing.T) {
	runner, session := newRunner(t)

	err := runner.Execute(context.Background(), "echo oops 1>&2", session.ID())

	require.NoError(t, err)
	lines := session.Lines()
	require.NotEmpty(t, lines)
	assert.Equal(t, term.KindStderr, lines[0].Kind)
	assert.Equal(t, "oops", lines[0].Content)
}

func TestExecuteUsesWorkingDir(t *testing.T) {
	runner, session := newRunner(t)

	err := runner.Execute(context.Background(), "pwd", session.ID())

	require.NoError(t, err)
	assert.Contains(t, joined(session), session.WorkingDir())
}

func TestExecuteNonZeroExit(t *testing.T) {
	runner, session := newRunner(t)

	err := runner.Execute(context.Background(), "exit 3", session.ID())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "command failed")
}

func TestExecuteUnknownSession(t *testing.T) {
	runner, _ := newRunner(t)

	err := runner.Execute(context.Background(), "echo x", "sess_missing")
	assert.Error(t, err)
}

func TestExecuteCancellation(t *testing.T) {
	runner, session := newRunner(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- runner.Execute(ctx, "sleep 30", session.ID())
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled command did not return")
	}
}
