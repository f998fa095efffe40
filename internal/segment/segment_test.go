package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"plain", "Hello world. How are you? Fine!", []string{"Hello world.", "How are you?", "Fine!"}},
		{"abbreviation", "Use e.g. this one. Next.", []string{"Use e.g. this one.", "Next."}},
		{"decimal", "Pi is 3.14 today.", []string{"Pi is 3.14 today."}},
		{"closing quote", `He said "Stop." Then left.`, []string{`He said "Stop."`, "Then left."}},
		{"punctuation run", "Wait?! Really...", []string{"Wait?!", "Really..."}},
		{"paragraph", "Line one\nline two\n\nNext para", []string{"Line one\nline two", "Next para"}},
		{"no terminator", "just some words", []string{"just some words"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.text, Options{Mode: ModeSentence}))
		})
	}
}

func TestSplitClauses(t *testing.T) {
	got := Split("First, second; third: fourth. Fifth", Options{Mode: ModeClause})
	assert.Equal(t, []string{"First,", "second;", "third:", "fourth.", "Fifth"}, got)
}

func TestSplitEmpty(t *testing.T) {
	assert.Empty(t, Split("", Options{}))
	assert.Empty(t, Split(" \n\n\t ", Options{}))
}

func TestWrapLongPieces(t *testing.T) {
	assert.Equal(t, []string{"aaaa bbbb", "cccc dddd"}, Split("aaaa bbbb cccc dddd", Options{MaxRunes: 10}))
	// a word longer than the limit is never broken
	assert.Equal(t, []string{"abcdefghij", "xy"}, Split("abcdefghij xy", Options{MaxRunes: 5}))
}

func TestSplitNeverBreaksWords(t *testing.T) {
	text := strings.Repeat("Zażółć gęślą jaźń, pchnąć w tę łódź jeża. ", 20) +
		"Tail without punctuation and quite a few words to wrap around"

	for _, mode := range []Mode{ModeSentence, ModeClause} {
		for _, max := range []int{8, 30, 240} {
			chunks := Split(text, Options{Mode: mode, MaxRunes: max})
			require.NotEmpty(t, chunks)
			assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(chunks, " ")), "mode=%s max=%d", mode, max)
			for _, c := range chunks {
				if len([]rune(c)) > max {
					assert.Len(t, strings.Fields(c), 1, "oversized chunk must be a single word: %q", c)
				}
			}
		}
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Clause")
	require.NoError(t, err)
	assert.Equal(t, ModeClause, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSentence, m)

	_, err = ParseMode("word")
	assert.Error(t, err)
}
