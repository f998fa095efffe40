package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dooshek/readaloud/internal/config"
	"github.com/dooshek/readaloud/internal/logger"
	"github.com/dooshek/readaloud/internal/playback"
	"github.com/dooshek/readaloud/internal/reader"
	"github.com/dooshek/readaloud/internal/types"
)

func init() {
	// Set custom usage message to show -- prefix
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(out, "  %s [flags]                 run the daemon (shortcuts, D-Bus, NATS)\n", os.Args[0])
		fmt.Fprintf(out, "  %s ctl <command> [args]    control a running daemon\n\n", os.Args[0])
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(out, "  --%s", f.Name)
			name, usage := flag.UnquoteUsage(f)
			if len(name) > 0 {
				fmt.Fprintf(out, " %s", name)
			}
			fmt.Fprintf(out, "\n    \t%s", usage)
			if f.DefValue != "" && f.DefValue != "false" {
				fmt.Fprintf(out, " (default %q)", f.DefValue)
			}
			fmt.Fprintf(out, "\n")
		})
	}
}

func setupLogging(level, filename string) func() {
	logger.SetLevel(level)
	if filename == "" {
		return func() {}
	}
	if err := logger.SetOutputFile(filename); err != nil {
		fmt.Printf("Error setting log file: %v\n", err)
		os.Exit(1)
	}
	return logger.CloseLogFile
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "ctl" {
		os.Exit(runCtl(os.Args[2:]))
	}
	os.Exit(run())
}

func run() int {
	logLevel := flag.String("log-level", "info", "Set log level (debug|info|warn|error)")
	logFilename := flag.String("log-filename", "", "Log to file instead of stdout")
	sayText := flag.String("say", "", "Speak the given text and exit")
	readOnce := flag.Bool("read-once", false, "Read the current selection aloud and exit")
	listVoices := flag.Bool("list-voices", false, "List the voices of the configured backend")
	voice := flag.String("voice", "", "Voice for --say and --read-once (default from config)")
	rate := flag.Float64("rate", 0, "Rate for --say and --read-once in the voice's units (default from config)")
	flag.Parse()

	closeLog := setupLogging(*logLevel, *logFilename)
	defer closeLog()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Error loading config", err)
		return 1
	}
	if *voice != "" {
		cfg.TTS.Voice = *voice
	}
	if *rate != 0 {
		cfg.TTS.Rate = *rate
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *listVoices:
		return runListVoices(ctx, cfg)
	case *sayText != "":
		return runSay(ctx, cfg, *sayText)
	case *readOnce:
		return runReadOnce(ctx, cfg)
	}
	return runDaemon(ctx, cfg)
}

func newSpeaker(cfg *types.Config) (*reader.Reader, error) {
	backend, err := reader.NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	return reader.New(cfg, reader.Deps{Backend: backend})
}

func runListVoices(ctx context.Context, cfg *types.Config) int {
	r, err := newSpeaker(cfg)
	if err != nil {
		logger.Error("Failed to initialize TTS backend", err)
		return 1
	}
	defer r.Close()

	list, err := r.ListVoices(ctx)
	if err != nil {
		logger.Error("Failed to list voices", err)
		return 1
	}
	printVoices(r.BackendName(), list)
	return 0
}

func runSay(ctx context.Context, cfg *types.Config, text string) int {
	r, err := newSpeaker(cfg)
	if err != nil {
		logger.Error("Failed to initialize TTS backend", err)
		return 1
	}
	defer r.Close()

	ttsCfg := cfg.GetTTSConfig()
	return speakAndWait(ctx, r, func() (uint64, error) {
		return r.Play(text, ttsCfg.Rate, ttsCfg.Voice)
	})
}

func runReadOnce(ctx context.Context, cfg *types.Config) int {
	r, err := reader.NewFromConfig(cfg, nil)
	if err != nil {
		logger.Error("Failed to initialize reader", err)
		return 1
	}
	defer r.Close()

	return speakAndWait(ctx, r, func() (uint64, error) {
		return r.ReadSelection(ctx)
	})
}

// speakAndWait starts a session and blocks until it is idle. SIGINT stops
// playback.
func speakAndWait(ctx context.Context, r *reader.Reader, start func() (uint64, error)) int {
	events := make(chan playback.Event, 128)
	unsubscribe := r.Subscribe(func(ev playback.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	id, err := start()
	if err != nil {
		printError(err)
		return 1
	}

	failed := false
	done := ctx.Done()
	for {
		select {
		case <-done:
			logger.Info("Interrupted, stopping playback")
			if err := r.Stop(id); err != nil {
				logger.Error("Failed to stop playback", err)
				return 1
			}
			done = nil
		case ev := <-events:
			if ev.SessionID != id {
				continue
			}
			if ev.Type == playback.Error {
				printEventError(ev)
				if !ev.Kind.Advisory() {
					failed = true
				}
				continue
			}
			logger.Debugf("Session %d: %s", id, ev.State)
			if ev.State == playback.Idle {
				if failed {
					return 1
				}
				return 0
			}
		}
	}
}
