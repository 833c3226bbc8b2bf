package term

import (
	"sync"
	"time"

	"github.com/shellpane/shellpane/internal/shared/id"
)

const (
	// DefaultMaxLines bounds the transcript; oldest lines are evicted first.
	DefaultMaxLines = 1000
	// DefaultMaxHistory bounds the command history.
	DefaultMaxHistory = 500

	// CursorNone means the input field holds free-typed text, not a history
	// entry.
	CursorNone = -1

	// watcherBuffer is the per-watcher event queue depth before delivery
	// degrades to a resync flag.
	watcherBuffer = 256
)

// Limits configures per-session resource bounds. Zero fields fall back to
// the package defaults.
type Limits struct {
	MaxLines   int
	MaxHistory int
}

func (l Limits) withDefaults() Limits {
	if l.MaxLines <= 0 {
		l.MaxLines = DefaultMaxLines
	}
	if l.MaxHistory <= 0 {
		l.MaxHistory = DefaultMaxHistory
	}
	return l
}

// Direction selects which way history navigation moves.
type Direction int

const (
	// Older moves toward the first submitted command.
	Older Direction = iota
	// Newer moves back toward free-typed input.
	Newer
)

// Process describes the command currently executing in a session.
type Process struct {
	ID        id.ProcessID `json:"id"`
	Command   string       `json:"command"`
	StartedAt time.Time    `json:"started_at"`
}

// Session is one independent terminal tab.
type Session struct {
	id        id.SessionID
	name      string
	limits    Limits
	createdAt time.Time

	mu         sync.Mutex
	workingDir string
	lines      []Line
	history    []string
	cursor     int
	running    bool
	proc       *Process
	watchers   []*Watcher
	lost       map[*Watcher]bool
}

// NewSession creates an empty session rooted at workingDir.
func NewSession(name, workingDir string, limits Limits) *Session {
	return &Session{
		id:         id.NewSessionID(),
		name:       name,
		limits:     limits.withDefaults(),
		createdAt:  time.Now(),
		workingDir: workingDir,
		cursor:     CursorNone,
		lost:       make(map[*Watcher]bool),
	}
}

// ID returns the session id.
func (s *Session) ID() id.SessionID { return s.id }

// Name returns the tab display name.
func (s *Session) Name() string { return s.name }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// WorkingDir returns the current working directory.
func (s *Session) WorkingDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workingDir
}

// SetWorkingDir replaces the working directory.
func (s *Session) SetWorkingDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workingDir = dir
}

// Running reports whether a command is executing.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetRunning sets the running flag.
func (s *Session) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
	s.publishLocked(Event{Type: EventRunning, Running: running})
}

// TryStartRunning sets the running flag if no command is executing and
// reports whether it did. Testing and setting under one mutex hold keeps
// command admission atomic: two concurrent submitters can never both
// observe an idle session.
func (s *Session) TryStartRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.publishLocked(Event{Type: EventRunning, Running: true})
	return true
}

// ActiveProcess returns the in-flight process descriptor, or nil.
func (s *Session) ActiveProcess() *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return nil
	}
	proc := *s.proc
	return &proc
}

// SetActiveProcess records or clears the in-flight process descriptor. The
// dispatcher pairs it with SetRunning; a process is active only while the
// session is running.
func (s *Session) SetActiveProcess(proc *Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proc = proc
}

// FinishProcess clears the running flag and process descriptor and seals
// streaming lines, but only while procID is still the active process. An
// interrupted execution that resolves after a successor was admitted finds
// its descriptor already cleared and must leave the successor's state alone.
func (s *Session) FinishProcess(procID id.ProcessID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc == nil || s.proc.ID != procID {
		return false
	}
	s.proc = nil
	s.running = false
	s.publishLocked(Event{Type: EventRunning, Running: false})
	for i := range s.lines {
		if s.lines[i].Streaming {
			s.lines[i].Streaming = false
			line := s.lines[i]
			s.publishLocked(Event{Type: EventLineUpdated, Line: &line})
		}
	}
	return true
}

// Lines returns a snapshot copy of the transcript in display order.
func (s *Session) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]Line, len(s.lines))
	copy(lines, s.lines)
	return lines
}

// LineCount returns the number of retained lines.
func (s *Session) LineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// AddLine appends a sealed line, sealing any streaming line first, and
// returns it.
func (s *Session) AddLine(kind Kind, content string) Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(NewLine(kind, content))
}

// AddCommand echoes a submitted command into the transcript.
func (s *Session) AddCommand(command string) Line {
	return s.AddLine(KindCommand, command)
}

// AddOutput appends process output as stdout or stderr.
func (s *Session) AddOutput(text string, isError bool) Line {
	kind := KindStdout
	if isError {
		kind = KindStderr
	}
	return s.AddLine(kind, text)
}

// AddInfo appends an informational line.
func (s *Session) AddInfo(text string) Line { return s.AddLine(KindInfo, text) }

// AddSuccess appends a success line.
func (s *Session) AddSuccess(text string) Line { return s.AddLine(KindSuccess, text) }

// AddError appends an error line.
func (s *Session) AddError(text string) Line { return s.AddLine(KindError, text) }

// AddSystem appends a system line.
func (s *Session) AddSystem(text string) Line { return s.AddLine(KindSystem, text) }

// Clear drops the whole transcript. Streaming state is reset with it.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.publishLocked(Event{Type: EventCleared})
}

// StreamOutput appends a chunk of process output. Consecutive chunks extend
// the last line while it is streaming, so high-frequency small writes
// coalesce into a bounded number of lines.
func (s *Session) StreamOutput(chunk string) Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.lines); n > 0 && s.lines[n-1].Streaming {
		s.lines[n-1].Content += chunk
		line := s.lines[n-1]
		s.publishLocked(Event{Type: EventLineUpdated, Line: &line})
		return line
	}
	return s.appendLocked(NewStreamingLine(KindStdout, chunk))
}

// FinishStream seals every streaming line. Calling it with nothing streaming
// is a no-op.
func (s *Session) FinishStream() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].Streaming {
			s.lines[i].Streaming = false
			line := s.lines[i]
			s.publishLocked(Event{Type: EventLineUpdated, Line: &line})
		}
	}
}

// appendLocked seals a trailing streaming line, appends, and evicts from the
// head down to capacity. Streaming lines live at the tail, so FIFO eviction
// never removes the line currently receiving output.
func (s *Session) appendLocked(line Line) Line {
	if n := len(s.lines); n > 0 && s.lines[n-1].Streaming && !line.Streaming {
		s.lines[n-1].Streaming = false
	}

	s.lines = append(s.lines, line)
	if over := len(s.lines) - s.limits.MaxLines; over > 0 {
		s.lines = append(s.lines[:0:0], s.lines[over:]...)
	}

	s.publishLocked(Event{Type: EventLineAdded, Line: &line})
	return line
}

// SubmitHistory records a submitted command. An equal existing entry moves to
// the most-recent position instead of duplicating, and the navigation cursor
// resets to free input.
func (s *Session) SubmitHistory(command string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.history {
		if entry == command {
			s.history = append(s.history[:i], s.history[i+1:]...)
			break
		}
	}
	s.history = append(s.history, command)
	if over := len(s.history) - s.limits.MaxHistory; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
	s.cursor = CursorNone
}

// HistoryEntries returns a snapshot of the command history, oldest first.
func (s *Session) HistoryEntries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]string, len(s.history))
	copy(entries, s.history)
	return entries
}

// HistoryCursor returns the current navigation cursor.
func (s *Session) HistoryCursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// NavigateHistory moves the history cursor and returns the input text the
// field should now hold: a history entry, or "" when the cursor returns to
// free input.
func (s *Session) NavigateHistory(dir Direction) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursor, _ = navigate(s.history, s.cursor, dir)
	return entryAt(s.history, s.cursor)
}

// navigate computes the next cursor position. It is a pure function of its
// inputs: Older increments toward the first command (clamped to len-1),
// Newer decrements toward CursorNone.
func navigate(history []string, cursor int, dir Direction) (int, string) {
	switch dir {
	case Older:
		if cursor < len(history)-1 {
			cursor++
		}
	case Newer:
		if cursor > CursorNone {
			cursor--
		}
	}
	return cursor, entryAt(history, cursor)
}

func entryAt(history []string, cursor int) string {
	if cursor == CursorNone || len(history) == 0 {
		return ""
	}
	return history[len(history)-1-cursor]
}

// Watch subscribes to session mutation events.
func (s *Session) Watch() *Watcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := &Watcher{ch: make(chan Event, watcherBuffer), session: s}
	s.watchers = append(s.watchers, w)
	return w
}

func (s *Session) publishLocked(event Event) {
	for _, w := range s.watchers {
		select {
		case w.ch <- event:
		default:
			s.lost[w] = true
		}
	}
}
