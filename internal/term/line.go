package term

import (
	"time"

	"github.com/shellpane/shellpane/internal/shared/id"
)

// Kind classifies a transcript line. The set is closed; the presentation
// layer maps each kind to styling, the engine itself only distinguishes
// command echo from output where behavior requires it.
type Kind string

const (
	KindCommand Kind = "command"
	KindStdout  Kind = "stdout"
	KindStderr  Kind = "stderr"
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindSystem  Kind = "system"
)

// Line is one entry in a session transcript. Content keeps raw escape
// sequences verbatim; they are parsed at render or search time. While
// Streaming is true the line is still accepting appended output.
type Line struct {
	ID        id.LineID `json:"id"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Streaming bool      `json:"streaming"`
}

// NewLine creates a sealed line with a fresh unique id.
func NewLine(kind Kind, content string) Line {
	return Line{
		ID:        id.NewLineID(),
		Kind:      kind,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewStreamingLine creates a line that accepts appended output until sealed.
func NewStreamingLine(kind Kind, content string) Line {
	line := NewLine(kind, content)
	line.Streaming = true
	return line
}
