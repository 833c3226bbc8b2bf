package term

// EventType identifies a session mutation observed by watchers.
type EventType string

const (
	EventLineAdded   EventType = "line_added"
	EventLineUpdated EventType = "line_updated"
	EventCleared     EventType = "cleared"
	EventRunning     EventType = "running"
)

// Event describes one session mutation. Line is set for line events, Running
// for running-state changes.
type Event struct {
	Type    EventType `json:"type"`
	Line    *Line     `json:"line,omitempty"`
	Running bool      `json:"running,omitempty"`
}

// Watcher receives session events. Delivery is best-effort: if the channel
// backs up, events are dropped and the watcher is marked for resync so the
// consumer can refetch a full snapshot instead of blocking the session.
type Watcher struct {
	ch      chan Event
	session *Session
}

// Events returns the event stream.
func (w *Watcher) Events() <-chan Event {
	return w.ch
}

// NeedsResync reports whether events were dropped since the last check and
// clears the flag.
func (w *Watcher) NeedsResync() bool {
	w.session.mu.Lock()
	defer w.session.mu.Unlock()

	lost := w.session.lost[w]
	delete(w.session.lost, w)
	return lost
}

// Close detaches the watcher from its session.
func (w *Watcher) Close() {
	w.session.mu.Lock()
	defer w.session.mu.Unlock()

	for i, watcher := range w.session.watchers {
		if watcher == w {
			w.session.watchers = append(w.session.watchers[:i], w.session.watchers[i+1:]...)
			break
		}
	}
	delete(w.session.lost, w)
}
