package tts

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dooshek/readaloud/internal/voices"
)

// say rates are words per minute
const (
	sayMinRate     = 90
	sayMaxRate     = 720
	sayDefaultRate = 175
)

// SayBackend speaks through the macOS say command
type SayBackend struct {
	volume int
	run    runFunc
	output outputFunc
}

func NewSayBackend(volume int, grace time.Duration) (*SayBackend, error) {
	if _, err := exec.LookPath("say"); err != nil {
		return nil, errors.New("say is not available (macOS only)")
	}
	return &SayBackend{volume: volume, run: processRunner(grace), output: commandOutput}, nil
}

func (s *SayBackend) Name() string { return "say" }

func (s *SayBackend) Synthesize(ctx context.Context, u Utterance) error {
	text := u.Text
	if s.volume > 0 && s.volume < 100 {
		// embedded speech command, honoured by all system voices
		text = fmt.Sprintf("[[volm %.2f]] %s", float64(s.volume)/100, text)
	}
	return s.run(ctx, "say", sayArgs(u), text)
}

func sayArgs(u Utterance) []string {
	var args []string
	if u.Voice != "" {
		args = append(args, "-v", u.Voice)
	}
	if u.Rate != 0 {
		args = append(args, "-r", strconv.Itoa(int(u.Rate+0.5)))
	}
	return append(args, "-f", "-")
}

func (s *SayBackend) Voices(ctx context.Context) ([]voices.Descriptor, error) {
	out, err := s.output(ctx, "say", "-v", "?")
	if err != nil {
		return nil, fmt.Errorf("say -v ?: %w", err)
	}
	return parseSayVoices(out), nil
}

// Alex                en_US    # Most people recognize me by my voice.
// Bad News            en_US    # The light you see at the end of the tunnel is the headlamp of a fast approaching train.
var sayVoiceLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

func parseSayVoices(out []byte) []voices.Descriptor {
	var list []voices.Descriptor
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := sayVoiceLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		list = append(list, voices.Descriptor{
			ID:          name,
			Name:        name,
			Language:    strings.ReplaceAll(m[2], "_", "-"),
			MinRate:     sayMinRate,
			MaxRate:     sayMaxRate,
			DefaultRate: sayDefaultRate,
		})
	}
	return list
}
