// Package segment cuts text into chunks that a speech engine can render one
// at a time. Cuts fall on sentence or clause boundaries and never inside a
// word.
package segment

import (
	"fmt"
	"strings"
	"unicode"
)

type Mode string

const (
	ModeSentence Mode = "sentence"
	ModeClause   Mode = "clause"
)

// DefaultMaxRunes bounds a chunk when no limit is configured
const DefaultMaxRunes = 240

type Options struct {
	Mode     Mode
	MaxRunes int
}

// ParseMode accepts "sentence" or "clause"
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeSentence, "":
		return ModeSentence, nil
	case ModeClause:
		return ModeClause, nil
	}
	return "", fmt.Errorf("unknown chunk mode %q", s)
}

// Split returns the non-empty chunks of text in reading order
func Split(text string, opts Options) []string {
	if opts.MaxRunes <= 0 {
		opts.MaxRunes = DefaultMaxRunes
	}

	var chunks []string
	for _, piece := range pieces([]rune(text), opts.Mode) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		chunks = append(chunks, wrap([]rune(piece), opts.MaxRunes)...)
	}
	return chunks
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	}
	return false
}

func isClauseEnd(r rune) bool {
	switch r {
	case ',', ';', ':', '，', '；', '：':
		return true
	}
	return false
}

func isDash(r rune) bool {
	return r == '—' || r == '–'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '»', '”', '’', '」', '』':
		return true
	}
	return false
}

// pieces splits at boundaries. A blank line always ends a piece.
func pieces(rs []rune, mode Mode) []string {
	var out []string
	start := 0
	cut := func(end int) {
		out = append(out, string(rs[start:end]))
		start = end
	}

	for i := 0; i < len(rs); i++ {
		r := rs[i]

		if r == '\n' {
			j := i + 1
			for j < len(rs) && (rs[j] == ' ' || rs[j] == '\t' || rs[j] == '\r') {
				j++
			}
			if j < len(rs) && rs[j] == '\n' {
				cut(i)
			}
			continue
		}

		if mode == ModeClause && isDash(r) {
			cut(i + 1)
			continue
		}

		sentence := isSentenceEnd(r)
		if !sentence && !(mode == ModeClause && isClauseEnd(r)) {
			continue
		}

		// swallow "?!", "..." and closing quotes or brackets
		end := i + 1
		for end < len(rs) && (isSentenceEnd(rs[end]) || isCloser(rs[end])) {
			end++
		}
		if end < len(rs) && !unicode.IsSpace(rs[end]) && !isFullWidth(r) {
			i = end - 1
			continue
		}
		if r == '.' && continuesSentence(rs, end) {
			i = end - 1
			continue
		}
		cut(end)
		i = end - 1
	}
	if start < len(rs) {
		out = append(out, string(rs[start:]))
	}
	return out
}

// continuesSentence reports whether the word after a period starts in lower
// case, as after "e.g." or "approx."
func continuesSentence(rs []rune, from int) bool {
	for i := from; i < len(rs); i++ {
		if unicode.IsSpace(rs[i]) {
			continue
		}
		return unicode.IsLower(rs[i])
	}
	return false
}

func isFullWidth(r rune) bool {
	return r == '。' || r == '！' || r == '？' || r == '，' || r == '；' || r == '：'
}

// wrap cuts rs into pieces of at most max runes at whitespace. A single word
// longer than max stays whole.
func wrap(rs []rune, max int) []string {
	var out []string
	for len(rs) > max {
		cut := -1
		for i := max; i > 0; i-- {
			if unicode.IsSpace(rs[i]) {
				cut = i
				break
			}
		}
		if cut < 0 {
			for i := max; i < len(rs); i++ {
				if unicode.IsSpace(rs[i]) {
					cut = i
					break
				}
			}
			if cut < 0 {
				break
			}
		}
		if head := strings.TrimSpace(string(rs[:cut])); head != "" {
			out = append(out, head)
		}
		rs = []rune(strings.TrimLeftFunc(string(rs[cut:]), unicode.IsSpace))
	}
	if tail := strings.TrimSpace(string(rs)); tail != "" {
		out = append(out, tail)
	}
	return out
}
