package dispatch

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shellpane/shellpane/internal/registry"
	"github.com/shellpane/shellpane/internal/shared/id"
	"github.com/shellpane/shellpane/internal/term"
)

var (
	// ErrSessionNotFound is returned when the targeted session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionBusy is returned when a command is submitted while one is
	// already running in the session.
	ErrSessionBusy = errors.New("session is busy")
)

// interruptMarker is the conventional echo for a keyboard interrupt.
const interruptMarker = "^C"

// Executor runs non-built-in commands. Execute streams output into the
// session while it runs and returns exactly once, with an error on failure.
// Cancel best-effort stops an in-flight execution; it need not be
// instantaneous.
type Executor interface {
	Execute(ctx context.Context, command string, sessionID id.SessionID) error
	Cancel(sessionID id.SessionID)
}

// Metrics receives dispatcher counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	CommandDispatched(builtin bool)
	ExecutorFailed()
}

// Key identifies an input key event.
type Key string

const (
	KeyEnter     Key = "enter"
	KeyArrowUp   Key = "arrow_up"
	KeyArrowDown Key = "arrow_down"
	KeyCtrlC     Key = "ctrl_c"
	KeyCtrlL     Key = "ctrl_l"
	KeyCtrlF     Key = "ctrl_f"
)

// inputState is the dispatcher-side state of one session's input field.
type inputState struct {
	text       string
	searchOpen bool
}

// Dispatcher owns the input field state machine for every session and routes
// submitted commands to built-ins or the executor.
type Dispatcher struct {
	registry *registry.Manager
	executor Executor
	logger   *zap.Logger
	metrics  Metrics

	mu      sync.Mutex
	inputs  map[id.SessionID]*inputState
	cancels map[id.SessionID]runHandle
}

// runHandle ties a cancel function to the specific execution it belongs to,
// so a finished command never clears the cancel entry of its successor.
type runHandle struct {
	cancel  context.CancelFunc
	process id.ProcessID
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMetrics attaches dispatch counters.
func WithMetrics(metrics Metrics) Option {
	return func(d *Dispatcher) { d.metrics = metrics }
}

// NewDispatcher creates a dispatcher over the given registry and executor.
func NewDispatcher(reg *registry.Manager, executor Executor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		executor: executor,
		logger:   zap.NewNop(),
		inputs:   make(map[id.SessionID]*inputState),
		cancels:  make(map[id.SessionID]runHandle),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetInput replaces the input field text for a session.
func (d *Dispatcher) SetInput(sessionID id.SessionID, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.input(sessionID).text = text
}

// Input returns the current input field text for a session.
func (d *Dispatcher) Input(sessionID id.SessionID) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.input(sessionID).text
}

// SearchOpen reports whether the search panel is visible for a session.
func (d *Dispatcher) SearchOpen(sessionID id.SessionID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.input(sessionID).searchOpen
}

// input returns the session's input state, creating it on first use.
// Callers hold d.mu.
func (d *Dispatcher) input(sessionID id.SessionID) *inputState {
	state, ok := d.inputs[sessionID]
	if !ok {
		state = &inputState{}
		d.inputs[sessionID] = state
	}
	return state
}

// HandleKey applies one key event to a session.
func (d *Dispatcher) HandleKey(ctx context.Context, sessionID id.SessionID, key Key) error {
	session, ok := d.registry.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	switch key {
	case KeyEnter:
		d.mu.Lock()
		input := d.input(sessionID).text
		d.input(sessionID).text = ""
		d.mu.Unlock()
		return d.Submit(ctx, sessionID, input)

	case KeyArrowUp:
		d.SetInput(sessionID, session.NavigateHistory(term.Older))

	case KeyArrowDown:
		d.SetInput(sessionID, session.NavigateHistory(term.Newer))

	case KeyCtrlC:
		d.interrupt(session)

	case KeyCtrlL:
		session.Clear()

	case KeyCtrlF:
		d.mu.Lock()
		d.input(sessionID).searchOpen = !d.input(sessionID).searchOpen
		d.mu.Unlock()
	}
	return nil
}

// Submit runs one command against a session. Built-ins resolve locally;
// everything else goes to the executor and blocks until it resolves, fails,
// or is cancelled. Executor failures become error lines, never returned
// errors.
func (d *Dispatcher) Submit(ctx context.Context, sessionID id.SessionID, input string) error {
	session, ok := d.registry.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	command := strings.TrimSpace(input)
	if command == "" {
		return nil
	}
	// Admission doubles as the reservation: the running flag is tested and
	// set in one critical section, so concurrent submits against an idle
	// session admit exactly one command.
	if !session.TryStartRunning() {
		return ErrSessionBusy
	}

	session.SubmitHistory(command)
	session.AddCommand(command)

	switch {
	case command == "clear" || command == "cls":
		session.Clear()
		session.SetRunning(false)
		d.countCommand(true)
		return nil

	case strings.HasPrefix(command, "cd "):
		d.changeDir(session, strings.TrimSpace(command[3:]))
		session.SetRunning(false)
		d.countCommand(true)
		return nil
	}

	d.countCommand(false)
	d.execute(ctx, session, command)
	return nil
}

// changeDir resolves the cd built-in. Absolute paths replace the working
// directory outright, relative paths join onto it; both are cleaned so
// repeated separators and dot segments collapse.
func (d *Dispatcher) changeDir(session *term.Session, arg string) {
	dir := session.WorkingDir()
	if arg != "" {
		if path.IsAbs(arg) {
			dir = path.Clean(arg)
		} else {
			dir = path.Clean(path.Join(dir, arg))
		}
	}
	session.SetWorkingDir(dir)
	session.AddSystem("cwd: " + dir)
}

// execute runs a non-built-in command through the executor. The caller has
// already reserved the running flag; the process descriptor and flag are
// cleared together after the executor resolves.
func (d *Dispatcher) execute(ctx context.Context, session *term.Session, command string) {
	sessionID := session.ID()
	processID := id.NewProcessID()

	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancels[sessionID] = runHandle{cancel: cancel, process: processID}
	d.mu.Unlock()

	session.SetActiveProcess(&term.Process{
		ID:        processID,
		Command:   command,
		StartedAt: time.Now(),
	})

	err := d.executor.Execute(runCtx, command, sessionID)

	d.mu.Lock()
	if handle, ok := d.cancels[sessionID]; ok && handle.process == processID {
		delete(d.cancels, sessionID)
	}
	d.mu.Unlock()
	cancel()

	// No-op when this run was interrupted: Ctrl+C already cleared the state,
	// and a successor may own the session by now.
	session.FinishProcess(processID)

	if err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Debug("executor failed",
			zap.String("session_id", sessionID.String()),
			zap.String("command", command),
			zap.Error(err),
		)
		session.AddError(err.Error())
		if d.metrics != nil {
			d.metrics.ExecutorFailed()
		}
	}
}

// interrupt handles Ctrl+C. While a command runs it signals cancellation and
// drops the running state locally without waiting for the executor to
// acknowledge; late output is still appended by the session. When idle it
// just clears the input field.
func (d *Dispatcher) interrupt(session *term.Session) {
	sessionID := session.ID()

	if !session.Running() {
		d.SetInput(sessionID, "")
		return
	}

	d.executor.Cancel(sessionID)

	d.mu.Lock()
	handle, ok := d.cancels[sessionID]
	d.mu.Unlock()
	if ok {
		handle.cancel()
	}

	session.AddSystem(interruptMarker)
	session.SetRunning(false)
	session.SetActiveProcess(nil)
}

func (d *Dispatcher) countCommand(builtin bool) {
	if d.metrics != nil {
		d.metrics.CommandDispatched(builtin)
	}
}
