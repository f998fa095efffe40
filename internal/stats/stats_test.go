package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dooshek/readaloud/internal/fileops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsArePersisted(t *testing.T) {
	ops := fileops.NewFileOps(filepath.Join(t.TempDir(), "readaloud"))

	sm := NewStatsManager(ops)
	sm.AddCapture()
	sm.AddSession("espeak", 12)
	sm.EndSession("espeak", Completed)
	sm.AddSession("espeak", 30)
	sm.EndSession("espeak", Cancelled)
	sm.AddSession("openai", 5)
	sm.EndSession("openai", Failed)

	reloaded := NewStatsManager(ops).GetStats()
	assert.Equal(t, 1, reloaded.Captures)
	assert.Equal(t, BackendStats{Sessions: 2, Completed: 1, Cancelled: 1, Characters: 42}, *reloaded.Backends["espeak"])
	assert.Equal(t, BackendStats{Sessions: 1, Failed: 1, Characters: 5}, *reloaded.Backends["openai"])
}

func TestGetStatsReturnsCopy(t *testing.T) {
	sm := NewStatsManager(fileops.NewFileOps(t.TempDir()))
	sm.AddSession("say", 3)

	cp := sm.GetStats()
	cp.Backends["say"].Sessions = 99
	assert.Equal(t, 1, sm.GetStats().Backends["say"].Sessions)
}

func TestGetStatsJSON(t *testing.T) {
	sm := NewStatsManager(fileops.NewFileOps(t.TempDir()))
	sm.AddSession("say", 3)

	out, err := sm.GetStatsJSON()
	require.NoError(t, err)

	var decoded Stats
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, 3, decoded.Backends["say"].Characters)
}

func TestCorruptFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, statsFile), []byte("{not json"), 0o644))

	sm := NewStatsManager(fileops.NewFileOps(dir))
	assert.Empty(t, sm.GetStats().Backends)
}

func TestReset(t *testing.T) {
	ops := fileops.NewFileOps(t.TempDir())
	sm := NewStatsManager(ops)
	sm.AddSession("espeak", 10)

	require.NoError(t, sm.Reset())
	assert.Empty(t, NewStatsManager(ops).GetStats().Backends)
}
