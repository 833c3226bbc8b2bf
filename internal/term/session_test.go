package term

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(limits Limits) *Session {
	return NewSession("Terminal 1", "/home/user", limits)
}

func TestNewSessionDefaults(t *testing.T) {
	s := newTestSession(Limits{})

	assert.NotEmpty(t, s.ID())
	assert.Equal(t, "Terminal 1", s.Name())
	assert.Equal(t, "/home/user", s.WorkingDir())
	assert.Empty(t, s.Lines())
	assert.Empty(t, s.HistoryEntries())
	assert.Equal(t, CursorNone, s.HistoryCursor())
	assert.False(t, s.Running())
	assert.Nil(t, s.ActiveProcess())
}

func TestAddLineKinds(t *testing.T) {
	s := newTestSession(Limits{})

	s.AddCommand("ls")
	s.AddOutput("file.txt", false)
	s.AddOutput("not found", true)
	s.AddInfo("note")
	s.AddSuccess("done")
	s.AddError("boom")
	s.AddSystem("cwd changed")

	lines := s.Lines()
	require.Len(t, lines, 7)
	kinds := []Kind{KindCommand, KindStdout, KindStderr, KindInfo, KindSuccess, KindError, KindSystem}
	for i, kind := range kinds {
		assert.Equal(t, kind, lines[i].Kind)
		assert.False(t, lines[i].Streaming)
		assert.NotEmpty(t, lines[i].ID)
		assert.False(t, lines[i].CreatedAt.IsZero())
	}
}

func TestLineIDsUnique(t *testing.T) {
	s := newTestSession(Limits{})

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		line := s.AddInfo("x")
		assert.False(t, seen[line.ID.String()])
		seen[line.ID.String()] = true
	}
}

func TestEviction(t *testing.T) {
	const maxLines = 10
	s := newTestSession(Limits{MaxLines: maxLines})

	for i := 0; i < maxLines+5; i++ {
		s.AddInfo(fmt.Sprintf("line %d", i))
	}

	lines := s.Lines()
	require.Len(t, lines, maxLines)
	// The most recent lines survive in original relative order.
	for i, line := range lines {
		assert.Equal(t, fmt.Sprintf("line %d", i+5), line.Content)
	}
}

func TestEvictionNeverDropsStreamingTail(t *testing.T) {
	s := newTestSession(Limits{MaxLines: 2})

	s.AddInfo("old")
	s.StreamOutput("partial")
	s.AddInfo("evicts the head") // seals the streaming line first

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "partial", lines[0].Content)
	assert.False(t, lines[0].Streaming)
	assert.Equal(t, "evicts the head", lines[1].Content)
}

func TestStreamingCoalescing(t *testing.T) {
	s := newTestSession(Limits{})

	s.StreamOutput("a")
	s.StreamOutput("b")
	s.StreamOutput("c")

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "abc", lines[0].Content)
	assert.Equal(t, KindStdout, lines[0].Kind)
	assert.True(t, lines[0].Streaming)

	s.FinishStream()
	s.AddLine(KindStdout, "next")

	lines = s.Lines()
	require.Len(t, lines, 2)
	assert.False(t, lines[0].Streaming)
	assert.Equal(t, "abc", lines[0].Content)
	assert.Equal(t, "next", lines[1].Content)
}

func TestStreamAfterFinishStartsNewLine(t *testing.T) {
	s := newTestSession(Limits{})

	s.StreamOutput("first")
	s.FinishStream()
	s.StreamOutput("second")

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "first", lines[0].Content)
	assert.Equal(t, "second", lines[1].Content)
	assert.True(t, lines[1].Streaming)
}

func TestFinishStreamIdempotent(t *testing.T) {
	s := newTestSession(Limits{})

	s.FinishStream() // nothing streaming: no-op
	assert.Empty(t, s.Lines())

	s.StreamOutput("x")
	s.FinishStream()
	s.FinishStream()

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.False(t, lines[0].Streaming)
}

func TestAddLineSealsStreaming(t *testing.T) {
	s := newTestSession(Limits{})

	s.StreamOutput("stream")
	s.AddError("failed")

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.False(t, lines[0].Streaming)

	// Further streamed output starts a fresh line rather than reopening.
	s.StreamOutput("late")
	lines = s.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "late", lines[2].Content)
}

func TestHistoryDedup(t *testing.T) {
	s := newTestSession(Limits{})

	s.SubmitHistory("ls")
	s.SubmitHistory("pwd")
	s.SubmitHistory("ls")

	assert.Equal(t, []string{"pwd", "ls"}, s.HistoryEntries())
}

func TestHistoryBounded(t *testing.T) {
	s := newTestSession(Limits{MaxHistory: 3})

	for i := 0; i < 5; i++ {
		s.SubmitHistory(fmt.Sprintf("cmd %d", i))
	}

	assert.Equal(t, []string{"cmd 2", "cmd 3", "cmd 4"}, s.HistoryEntries())
}

func TestNavigateHistory(t *testing.T) {
	s := newTestSession(Limits{})
	s.SubmitHistory("first")
	s.SubmitHistory("second")
	s.SubmitHistory("third")

	// Backward through history, clamped at the oldest entry.
	assert.Equal(t, "third", s.NavigateHistory(Older))
	assert.Equal(t, "second", s.NavigateHistory(Older))
	assert.Equal(t, "first", s.NavigateHistory(Older))
	assert.Equal(t, "first", s.NavigateHistory(Older))
	assert.Equal(t, 2, s.HistoryCursor())

	// Forward again, ending at free input.
	assert.Equal(t, "second", s.NavigateHistory(Newer))
	assert.Equal(t, "third", s.NavigateHistory(Newer))
	assert.Equal(t, "", s.NavigateHistory(Newer))
	assert.Equal(t, CursorNone, s.HistoryCursor())
	assert.Equal(t, "", s.NavigateHistory(Newer))
	assert.Equal(t, CursorNone, s.HistoryCursor())
}

func TestNavigateHistoryEmpty(t *testing.T) {
	s := newTestSession(Limits{})

	assert.Equal(t, "", s.NavigateHistory(Older))
	assert.Equal(t, CursorNone, s.HistoryCursor())
	assert.Equal(t, "", s.NavigateHistory(Newer))
	assert.Equal(t, CursorNone, s.HistoryCursor())
}

func TestSubmitResetsCursor(t *testing.T) {
	s := newTestSession(Limits{})
	s.SubmitHistory("one")
	s.NavigateHistory(Older)
	require.Equal(t, 0, s.HistoryCursor())

	s.SubmitHistory("two")
	assert.Equal(t, CursorNone, s.HistoryCursor())
}

func TestClear(t *testing.T) {
	s := newTestSession(Limits{})
	s.AddCommand("ls")
	s.StreamOutput("out")

	s.Clear()

	assert.Empty(t, s.Lines())
	// Output after clear starts a new streaming line cleanly.
	s.StreamOutput("fresh")
	require.Equal(t, 1, s.LineCount())
}

func TestRunningAndProcess(t *testing.T) {
	s := newTestSession(Limits{})

	s.SetRunning(true)
	s.SetActiveProcess(&Process{Command: "sleep 5"})
	assert.True(t, s.Running())
	require.NotNil(t, s.ActiveProcess())
	assert.Equal(t, "sleep 5", s.ActiveProcess().Command)

	s.SetRunning(false)
	s.SetActiveProcess(nil)
	assert.False(t, s.Running())
	assert.Nil(t, s.ActiveProcess())
}

func TestFinishProcess(t *testing.T) {
	s := newTestSession(Limits{})
	require.True(t, s.TryStartRunning())
	s.SetActiveProcess(&Process{ID: "proc_a", Command: "sleep 5"})
	s.StreamOutput("partial")

	assert.False(t, s.FinishProcess("proc_b"), "a different process owns the session")
	assert.True(t, s.Running())
	require.NotNil(t, s.ActiveProcess())

	assert.True(t, s.FinishProcess("proc_a"))
	assert.False(t, s.Running())
	assert.Nil(t, s.ActiveProcess())
	assert.False(t, s.Lines()[0].Streaming)

	assert.False(t, s.FinishProcess("proc_a"), "finishing twice is a no-op")
}

func TestTryStartRunning(t *testing.T) {
	s := newTestSession(Limits{})

	require.True(t, s.TryStartRunning())
	assert.True(t, s.Running())
	assert.False(t, s.TryStartRunning(), "a running session admits nothing")

	s.SetRunning(false)
	assert.True(t, s.TryStartRunning())
}

func TestTryStartRunningConcurrent(t *testing.T) {
	s := newTestSession(Limits{})

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)
	admitted := make(chan bool, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			admitted <- s.TryStartRunning()
		}()
	}
	wg.Wait()
	close(admitted)

	wins := 0
	for ok := range admitted {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestWatcherReceivesEvents(t *testing.T) {
	s := newTestSession(Limits{})
	w := s.Watch()
	defer w.Close()

	s.AddCommand("ls")
	s.StreamOutput("a")
	s.StreamOutput("b")
	s.Clear()
	s.SetRunning(true)

	expected := []EventType{EventLineAdded, EventLineAdded, EventLineUpdated, EventCleared, EventRunning}
	for _, want := range expected {
		event := <-w.Events()
		assert.Equal(t, want, event.Type)
	}
	assert.False(t, w.NeedsResync())
}

func TestWatcherOverflowFlagsResync(t *testing.T) {
	s := newTestSession(Limits{})
	w := s.Watch()
	defer w.Close()

	for i := 0; i < watcherBuffer+10; i++ {
		s.AddInfo("flood")
	}

	assert.True(t, w.NeedsResync())
	assert.False(t, w.NeedsResync())
}

func TestWatcherCloseStopsDelivery(t *testing.T) {
	s := newTestSession(Limits{})
	w := s.Watch()
	w.Close()

	s.AddInfo("after close")

	select {
	case <-w.Events():
		t.Fatal("watcher received event after close")
	default:
	}
}
