// Package search provides case-insensitive substring search over a session
// transcript. Results are a derived view: recomputed from the current lines
// on every query or content change, never persisted, never mutating the
// session.
package search

import (
	"strings"

	"github.com/shellpane/shellpane/internal/ansi"
	"github.com/shellpane/shellpane/internal/term"
)

// Match points at one matching line by its index in the session's current
// line sequence (0 = oldest retained).
type Match struct {
	LineIndex int `json:"line_index"`
}

// State holds the matches for one query plus the current-match cursor. The
// cursor is meaningful only while Matches is non-empty.
type State struct {
	Query   string  `json:"query"`
	Matches []Match `json:"matches"`
	Current int     `json:"current"`
}

// Find computes matches for query against the session's lines in display
// order. Matching is case-insensitive over ANSI-stripped content. An empty
// query yields no matches.
func Find(session *term.Session, query string) *State {
	return FindLines(session.Lines(), query)
}

// FindLines is Find over an explicit line snapshot.
func FindLines(lines []term.Line, query string) *State {
	state := &State{Query: query}
	if query == "" {
		return state
	}

	needle := strings.ToLower(query)
	for i, line := range lines {
		haystack := strings.ToLower(ansi.Strip(line.Content))
		if strings.Contains(haystack, needle) {
			state.Matches = append(state.Matches, Match{LineIndex: i})
		}
	}
	return state
}

// Next advances the cursor with wrap-around. No-op without matches.
func (s *State) Next() {
	if len(s.Matches) == 0 {
		return
	}
	s.Current = (s.Current + 1) % len(s.Matches)
}

// Prev moves the cursor backward with wrap-around. No-op without matches.
func (s *State) Prev() {
	if len(s.Matches) == 0 {
		return
	}
	if s.Current == 0 {
		s.Current = len(s.Matches) - 1
		return
	}
	s.Current--
}

// CurrentMatch returns the match under the cursor.
func (s *State) CurrentMatch() (Match, bool) {
	if len(s.Matches) == 0 {
		return Match{}, false
	}
	return s.Matches[s.Current], true
}

// Refresh recomputes matches from the session's current lines, keeping the
// selection on the same line when it still matches and otherwise clamping
// the cursor into range. Callers re-run this whenever new output arrives.
func (s *State) Refresh(session *term.Session) {
	selectedLine := -1
	if match, ok := s.CurrentMatch(); ok {
		selectedLine = match.LineIndex
	}

	fresh := Find(session, s.Query)
	s.Matches = fresh.Matches
	s.Current = 0

	if selectedLine >= 0 {
		for i, match := range s.Matches {
			if match.LineIndex == selectedLine {
				s.Current = i
				break
			}
		}
	}
	if s.Current >= len(s.Matches) {
		s.Current = 0
	}
}
