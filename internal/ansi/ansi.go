package ansi

import (
	"strconv"
	"strings"
)

// DimOpacity is the fixed opacity applied to dim (SGR 2) text.
const DimOpacity = 0.7

const (
	esc = 0x1b
)

// Color is a hex color string such as "#cd3131". Empty means default.
type Color string

// Style is an immutable set of visual attributes. The zero value renders as
// plain text.
type Style struct {
	Foreground    Color `json:"fg,omitempty"`
	Background    Color `json:"bg,omitempty"`
	Bold          bool  `json:"bold,omitempty"`
	Dim           bool  `json:"dim,omitempty"`
	Italic        bool  `json:"italic,omitempty"`
	Underline     bool  `json:"underline,omitempty"`
	Strikethrough bool  `json:"strikethrough,omitempty"`
}

// IsZero reports whether the style carries no attributes.
func (s Style) IsZero() bool {
	return s == Style{}
}

// Opacity returns the rendering opacity for the style.
func (s Style) Opacity() float64 {
	if s.Dim {
		return DimOpacity
	}
	return 1.0
}

// Segment is a maximal run of text sharing one fully-resolved style.
type Segment struct {
	Text  string `json:"text"`
	Style Style  `json:"style"`
}

// Parser converts raw terminal output into styled segments using a fixed
// 16-color palette.
type Parser struct {
	palette Palette
}

// NewParser creates a parser with the given palette.
func NewParser(palette Palette) *Parser {
	return &Parser{palette: palette}
}

// Parse splits text into styled segments. Concatenating the segment texts in
// order reproduces Strip(text) exactly. When the input contains no visible
// text outside escape sequences the result is a single segment holding the
// entire original input with an empty style, so callers never see an empty
// segment list.
func (p *Parser) Parse(text string) []Segment {
	var (
		segments []Segment
		current  Style
		buf      strings.Builder
	)

	i := 0
	for i < len(text) {
		if end, ok := sgrEnd(text, i); ok {
			if buf.Len() > 0 {
				segments = append(segments, Segment{Text: buf.String(), Style: current})
				buf.Reset()
			}
			current = p.apply(current, text[i+2:end])
			i = end + 1
			continue
		}
		// Literal byte. UTF-8 continuation bytes never collide with ESC, so
		// byte-wise copying preserves multi-byte runes intact.
		buf.WriteByte(text[i])
		i++
	}

	if buf.Len() > 0 {
		segments = append(segments, Segment{Text: buf.String(), Style: current})
	}
	if len(segments) == 0 {
		return []Segment{{Text: text}}
	}
	return segments
}

// Strip removes recognized escape sequences and returns the visible text.
func (p *Parser) Strip(text string) string {
	if !strings.ContainsRune(text, esc) {
		return text
	}

	var buf strings.Builder
	buf.Grow(len(text))

	i := 0
	for i < len(text) {
		if end, ok := sgrEnd(text, i); ok {
			i = end + 1
			continue
		}
		buf.WriteByte(text[i])
		i++
	}
	return buf.String()
}

// sgrEnd reports whether an SGR sequence starts at i, returning the index of
// its terminating 'm'. Sequences without a valid terminator are not matched
// and fall through as literal text.
func sgrEnd(text string, i int) (int, bool) {
	if text[i] != esc || i+1 >= len(text) || text[i+1] != '[' {
		return 0, false
	}
	j := i + 2
	for j < len(text) && (text[j] == ';' || (text[j] >= '0' && text[j] <= '9')) {
		j++
	}
	if j < len(text) && text[j] == 'm' {
		return j, true
	}
	return 0, false
}

// apply folds a parameter list into the accumulated style and returns the
// updated value. Style is a value type, so earlier segments keep their copy.
func (p *Parser) apply(style Style, params string) Style {
	for _, raw := range strings.Split(params, ";") {
		code := atoiCode(raw)
		switch {
		case code == 0:
			style = Style{}
		case code == 1:
			style.Bold = true
		case code == 2:
			style.Dim = true
		case code == 3:
			style.Italic = true
		case code == 4:
			style.Underline = true
		case code == 9:
			style.Strikethrough = true
		case code >= 30 && code <= 37:
			style.Foreground = p.palette[code-30]
		case code >= 90 && code <= 97:
			style.Foreground = p.palette[code-90+8]
		case code >= 40 && code <= 47:
			style.Background = p.palette[code-40]
		case code >= 100 && code <= 107:
			style.Background = p.palette[code-100+8]
		}
		// Anything else is ignored for forward compatibility.
	}
	return style
}

// atoiCode converts one SGR parameter. An empty parameter means reset per the
// terminal convention (ESC[m == ESC[0m). Parameters too large for an int
// return -1, which no case in apply recognizes, so they are ignored like any
// other unknown code.
func atoiCode(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

var defaultParser = NewParser(DefaultPalette())

// Parse parses text with the default palette.
func Parse(text string) []Segment {
	return defaultParser.Parse(text)
}

// Strip strips recognized escape sequences with the default palette.
func Strip(text string) string {
	return defaultParser.Strip(text)
}
