// Package ansi parses the SGR ("Select Graphic Rendition") subset of ANSI
// escape sequences into styled text segments.
//
// The parser recognizes only `ESC [ <params> m` where <params> is a
// semicolon-separated list of decimal codes. Everything else, including
// malformed or truncated sequences, passes through as literal text.
//
// Supported codes:
//   - 0: reset
//   - 1: bold
//   - 2: dim (rendered at a fixed opacity)
//   - 3: italic
//   - 4: underline
//   - 9: strikethrough
//   - 30-37, 90-97: foreground color (16-entry palette)
//   - 40-47, 100-107: background color
//
// Unrecognized codes are silently ignored so output from newer tools does not
// break rendering.
//
// Parsing is deterministic and stateless: a Parser carries only its palette,
// and Parse is a pure function of its input. Segment styles are value copies,
// so mutating the accumulator while scanning never alters emitted segments.
package ansi
