// Package ws streams one terminal session over a WebSocket connection.
//
// The browser frontend opens one connection per tab. Incoming messages drive
// the dispatcher; outgoing events mirror session mutations so the frontend
// renders without polling.
//
// Message types (client -> server):
//   - input: replace the input field text
//   - key: one key event (enter, arrow_up, arrow_down, ctrl_c, ctrl_l, ctrl_f)
//   - ping: keep-alive
//
// Message types (server -> client):
//   - welcome: session info plus a full transcript snapshot
//   - line: a new transcript line (with parsed segments)
//   - stream: an updated streaming line
//   - clear: transcript cleared
//   - running: running-state change
//   - resync: events were dropped; a fresh snapshot follows in the payload
//   - pong: keep-alive reply
//
// All writes happen on one goroutine; the reader goroutine only feeds the
// dispatcher. Event delivery is throttled with a token bucket so a flooding
// command cannot saturate the socket, and dropped events degrade to a resync
// snapshot instead of blocking the session.
package ws
