package tts

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/dooshek/readaloud/internal/types"
	"github.com/dooshek/readaloud/internal/voices"
)

// espeak rates are words per minute
const (
	espeakMinRate     = 80
	espeakMaxRate     = 450
	espeakDefaultRate = 175
)

// EspeakBackend speaks through espeak-ng or espeak
type EspeakBackend struct {
	binary string
	volume int
	run    runFunc
	output outputFunc
}

// NewEspeakBackend finds the binary (espeak-ng first unless configured)
func NewEspeakBackend(cfg types.TTSEspeakConfig, volume int, grace time.Duration) (*EspeakBackend, error) {
	candidates := []string{"espeak-ng", "espeak"}
	if cfg.Binary != "" {
		candidates = []string{cfg.Binary}
	}

	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return &EspeakBackend{
				binary: path,
				volume: volume,
				run:    processRunner(grace),
				output: commandOutput,
			}, nil
		}
	}
	return nil, fmt.Errorf("espeak is not installed (tried: %s)", strings.Join(candidates, ", "))
}

func (e *EspeakBackend) Name() string { return "espeak" }

func (e *EspeakBackend) Synthesize(ctx context.Context, u Utterance) error {
	return e.run(ctx, e.binary, e.args(u), u.Text)
}

// args builds the command line; text goes through stdin
func (e *EspeakBackend) args(u Utterance) []string {
	var args []string
	if u.Voice != "" {
		args = append(args, "-v", u.Voice)
	}
	rate := u.Rate
	if rate == 0 {
		rate = espeakDefaultRate
	}
	args = append(args, "-s", strconv.Itoa(int(rate+0.5)))
	if e.volume > 0 && e.volume < 100 {
		args = append(args, "-a", strconv.Itoa(e.volume))
	}
	return args
}

func (e *EspeakBackend) Voices(ctx context.Context) ([]voices.Descriptor, error) {
	out, err := e.output(ctx, e.binary, "--voices")
	if err != nil {
		return nil, fmt.Errorf("%s --voices: %w", e.binary, err)
	}
	return parseEspeakVoices(out, defaultLanguage()), nil
}

// parseEspeakVoices reads the table printed by --voices:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-gb           --/M      English_(Great_Britain) gmw/en         (en 2)
func parseEspeakVoices(out []byte, preferred string) []voices.Descriptor {
	var list []voices.Descriptor
	defaultIdx := -1

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		lang := fields[1]
		d := voices.Descriptor{
			ID:          lang,
			Name:        strings.ReplaceAll(fields[3], "_", " "),
			Language:    lang,
			Gender:      espeakGender(fields[2]),
			MinRate:     espeakMinRate,
			MaxRate:     espeakMaxRate,
			DefaultRate: espeakDefaultRate,
		}
		switch {
		case lang == preferred:
			defaultIdx = len(list)
		case defaultIdx < 0 && strings.HasPrefix(lang, preferred+"-"):
			defaultIdx = len(list)
		}
		list = append(list, d)
	}

	if defaultIdx < 0 {
		for i, d := range list {
			if d.ID == "en" || d.ID == "en-us" {
				defaultIdx = i
				break
			}
		}
	}
	if defaultIdx >= 0 {
		list[defaultIdx].Default = true
	}
	return list
}

func espeakGender(field string) string {
	_, g, _ := strings.Cut(field, "/")
	switch g {
	case "M":
		return "male"
	case "F":
		return "female"
	}
	return ""
}

// defaultLanguage derives a language code such as "pl" from $LANG
func defaultLanguage() string {
	lang := os.Getenv("LANG")
	lang, _, _ = strings.Cut(lang, ".")
	lang, _, _ = strings.Cut(lang, "_")
	if lang == "" || lang == "C" || lang == "POSIX" {
		return "en"
	}
	return strings.ToLower(lang)
}
