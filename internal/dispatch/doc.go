// Package dispatch interprets terminal input for the active session.
//
// Built-in commands (clear/cls, cd) are resolved locally and never reach the
// executor; the executor has no knowledge of in-memory session state like the
// working directory. Everything else is opaque text handed to the Executor
// interface, which streams output back through the session and resolves
// exactly once.
//
// Key events:
//   - Enter submits the input field as a command
//   - ArrowUp/ArrowDown navigate command history without submitting
//   - Ctrl+C cancels a running command, or clears the input when idle
//   - Ctrl+L clears the transcript
//   - Ctrl+F toggles search-panel visibility
//
// Executor failures surface as error-kind transcript lines and are never
// propagated past the dispatcher.
package dispatch
