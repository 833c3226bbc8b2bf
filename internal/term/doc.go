// Package term implements the per-tab terminal session model.
//
// A Session owns a bounded FIFO transcript of Lines, a de-duplicated command
// history with a navigation cursor, a working directory, and the running
// state of the current command. All mutation goes through the session's
// mutex, so concurrent executor callbacks and user keystrokes never race and
// lines are observed in exactly the order they were appended.
//
// Streaming output is coalesced: consecutive StreamOutput chunks extend the
// last line while it is marked streaming, so character-at-a-time process
// output does not allocate one Line per write. FinishStream seals streaming
// lines and is idempotent.
//
// Watchers receive mutation events for presentation-layer updates (new line,
// stream append, clear, running change). Publishing never blocks a session
// mutation: a slow watcher is flagged for resync instead.
package term
