package tts

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dooshek/readaloud/internal/types"
	"github.com/dooshek/readaloud/internal/voices"
	"github.com/mattn/go-shellwords"
)

// CommandBackend runs any command line engine from a template such as
//
//	piper --model {voice} --length_scale {rate} --output-raw | aplay -r 22050 -f S16_LE
//
// Placeholders are substituted per argument after shell splitting, so text
// with spaces stays one argument. Without {text} the text goes to stdin.
// Templates containing a pipe run through sh -c.
type CommandBackend struct {
	argv        []string
	shell       bool
	voices      []string
	minRate     float64
	maxRate     float64
	defaultRate float64
	run         runFunc
}

func NewCommandBackend(cfg types.TTSCommandConfig, grace time.Duration) (*CommandBackend, error) {
	if strings.TrimSpace(cfg.Template) == "" {
		return nil, fmt.Errorf("tts command template empty")
	}

	parser := shellwords.NewParser()
	argv, err := parser.Parse(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	shell := false
	if parser.Position >= 0 {
		// the parser stopped at a shell operator
		shell = true
		argv = []string{cfg.Template}
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}

	var ids []string
	for _, v := range strings.Split(cfg.Voices, ",") {
		if v = strings.TrimSpace(v); v != "" {
			ids = append(ids, v)
		}
	}

	return &CommandBackend{
		argv:        argv,
		shell:       shell,
		voices:      ids,
		minRate:     cfg.MinRate,
		maxRate:     cfg.MaxRate,
		defaultRate: cfg.DefaultRate,
		run:         processRunner(grace),
	}, nil
}

func (c *CommandBackend) Name() string { return "command" }

func (c *CommandBackend) Synthesize(ctx context.Context, u Utterance) error {
	name, args, stdin := c.command(u)
	return c.run(ctx, name, args, stdin)
}

func (c *CommandBackend) command(u Utterance) (name string, args []string, stdin string) {
	rate := u.Rate
	if rate == 0 {
		rate = c.defaultRate
	}
	rateStr := ""
	if rate != 0 {
		rateStr = strconv.FormatFloat(rate, 'f', -1, 64)
	}

	if c.shell {
		// values travel as positional parameters, never spliced into the script
		script := strings.NewReplacer(`{text}`, `"$1"`, `{voice}`, `"$2"`, `{rate}`, `"$3"`).Replace(c.argv[0])
		stdin = ""
		if !strings.Contains(c.argv[0], "{text}") {
			stdin = u.Text
		}
		return "sh", []string{"-c", script, "readaloud", u.Text, u.Voice, rateStr}, stdin
	}

	usesText := false
	r := strings.NewReplacer("{text}", u.Text, "{voice}", u.Voice, "{rate}", rateStr)
	for _, a := range c.argv[1:] {
		if strings.Contains(a, "{text}") {
			usesText = true
		}
		args = append(args, r.Replace(a))
	}
	if !usesText {
		stdin = u.Text
	}
	return c.argv[0], args, stdin
}

func (c *CommandBackend) Voices(context.Context) ([]voices.Descriptor, error) {
	list := make([]voices.Descriptor, 0, len(c.voices))
	for i, id := range c.voices {
		list = append(list, voices.Descriptor{
			ID:          id,
			Name:        id,
			MinRate:     c.minRate,
			MaxRate:     c.maxRate,
			DefaultRate: c.defaultRate,
			Default:     i == 0,
		})
	}
	return list, nil
}
