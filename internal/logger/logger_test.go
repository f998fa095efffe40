package logger

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelsAndOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetLevel("warn")
	defer SetLevel("info")

	Info("hidden")
	Warnf("visible %d", 1)
	Error("failed", errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible 1")
	assert.Contains(t, out, "boom")
}

func TestSessionTagsID(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetLevel("debug")
	defer SetLevel("info")

	Session(42, "chunk %d done", 3)
	assert.Contains(t, buf.String(), "session=42")
	assert.Contains(t, buf.String(), "chunk 3 done")
}
