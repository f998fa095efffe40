package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dooshek/readaloud/internal/fileops"
	"github.com/dooshek/readaloud/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFrom(fileops.NewFileOps(t.TempDir()))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 240, cfg.GetPlaybackConfig().MaxChunkRunes)
}

func TestLoadFromParsesYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	yml := `
capture:
  restore_clipboard: false
  max_attempts: 8
playback:
  chunk_mode: clause
tts:
  backend: command
  voice: en_US-amy
  rate: 1.2
  command:
    template: "piper --model {voice} --output-raw"
shortcuts:
  read:
    key: f9
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readaloud.yaml"), []byte(yml), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("READALOUD_TEST_SECRET=abc\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("READALOUD_TEST_SECRET") })

	cfg, err := LoadFrom(fileops.NewFileOps(dir))
	require.NoError(t, err)

	assert.False(t, cfg.GetCaptureConfig().Restore())
	assert.Equal(t, 8, cfg.GetCaptureConfig().MaxAttempts)
	assert.Equal(t, "clause", cfg.GetPlaybackConfig().ChunkMode)
	assert.Equal(t, "en_US-amy", cfg.TTS.Voice)
	assert.InDelta(t, 1.2, cfg.TTS.Rate, 1e-9)
	assert.Equal(t, "f9", cfg.GetShortcutsConfig().Read.Key)
	assert.Equal(t, "abc", os.Getenv("READALOUD_TEST_SECRET"))
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("tts: [unterminated"))
	assert.Error(t, err)
}

func TestOpenAIKeyFallsBackToEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")
	assert.Equal(t, "from-env", OpenAIKey(types.TTSConfig{}))
	assert.Equal(t, "from-file", OpenAIKey(types.TTSConfig{OpenAI: types.TTSOpenAIConfig{APIKey: "from-file"}}))
}
