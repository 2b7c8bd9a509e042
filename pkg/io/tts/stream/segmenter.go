package stream

import (
	"strings"
	"unicode"
)

// Segmenter turns text deltas into sentence sized pieces for synthesis.
type Segmenter struct {
	// Segmentation knobs:
	MaxChars   int    // cut at a word boundary when no sentence end shows up (default 240)
	MinChars   int    // don't flush tiny fragments unless forced (default 12)
	FlushPunct string // sentence enders (default ".!?;:" plus the devanagari danda)

	buf strings.Builder
}

func New() *Segmenter {
	return &Segmenter{}
}

func (s *Segmenter) defaults() {
	if s.MaxChars == 0 {
		s.MaxChars = 240
	}
	if s.MinChars == 0 {
		s.MinChars = 12
	}
	if s.FlushPunct == "" {
		s.FlushPunct = ".!?;:।"
	}
}

// Push adds a delta and returns every sentence it completed.
func (s *Segmenter) Push(delta string) []string {
	s.defaults()
	if delta == "" {
		return nil
	}
	s.buf.WriteString(delta)

	var out []string
	for {
		text := s.buf.String()
		cut := s.sentenceEnd(text)
		if cut < 0 && len(text) >= s.MaxChars {
			cut = wordBoundary(text, s.MaxChars)
		}
		if cut <= 0 {
			return out
		}
		sentence := strings.TrimSpace(text[:cut])
		s.buf.Reset()
		s.buf.WriteString(strings.TrimLeftFunc(text[cut:], unicode.IsSpace))
		if sentence != "" {
			out = append(out, sentence)
		}
	}
}

// Flush returns whatever is buffered and empties the segmenter.
func (s *Segmenter) Flush() string {
	text := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	return text
}

func (s *Segmenter) Reset() {
	s.buf.Reset()
}

// sentenceEnd finds the first sentence ender followed by whitespace, past
// MinChars. Enders at the very end wait for more text so "3." + "14" survives.
func (s *Segmenter) sentenceEnd(text string) int {
	for i, r := range text {
		if !strings.ContainsRune(s.FlushPunct, r) {
			continue
		}
		next := i + len(string(r))
		if next >= len(text) {
			return -1
		}
		if !unicode.IsSpace(rune(text[next])) {
			continue
		}
		if len(strings.TrimSpace(text[:next])) < s.MinChars {
			continue
		}
		return next
	}
	return -1
}

func wordBoundary(text string, max int) int {
	if max > len(text) {
		max = len(text)
	}
	if i := strings.LastIndexFunc(text[:max], unicode.IsSpace); i > 0 {
		return i
	}
	return max
}
