package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/dooshek/readaloud/internal/bus"
	"github.com/dooshek/readaloud/internal/config"
	"github.com/dooshek/readaloud/internal/dbus"
	"github.com/dooshek/readaloud/internal/logger"
	"github.com/dooshek/readaloud/internal/playback"
	"github.com/dooshek/readaloud/internal/voices"
	"github.com/nats-io/nats.go"
)

// controller is what ctl needs from a running daemon
type controller interface {
	ReadSelection() (uint64, error)
	Play(text string, rate float64, voice string) (uint64, error)
	Pause(id uint64) error
	Resume(id uint64) error
	Stop(id uint64) error
	TogglePause() error
	Status() (playback.Status, error)
	ListVoices() ([]voices.Descriptor, error)
	RefreshVoices() ([]voices.Descriptor, error)
	Close() error
}

const ctlUsage = `Usage: readaloud ctl [--nats] <command> [args]

Commands:
  read            capture the selection and speak it
  play <text>     speak text
  pause [id]      pause the current (or given) session
  resume [id]     resume it
  toggle          pause or resume
  stop [id]       stop playback
  status          show playback status
  voices          list voices
  refresh         re-enumerate voices
  stats [--reset] show (or clear) usage statistics (D-Bus only)
`

func runCtl(args []string) int {
	fs := flag.NewFlagSet("ctl", flag.ExitOnError)
	useNATS := fs.Bool("nats", false, "Talk to the daemon over NATS instead of D-Bus")
	logLevel := fs.String("log-level", "warn", "Set log level (debug|info|warn|error)")
	rate := fs.Float64("rate", 0, "Rate for play")
	voice := fs.String("voice", "", "Voice for play")
	fs.Usage = func() { fmt.Fprint(fs.Output(), ctlUsage) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	logger.SetLevel(*logLevel)

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	var (
		c   controller
		err error
	)
	if *useNATS {
		c, err = newNATSController()
	} else {
		c, err = dbus.NewClient()
	}
	if err != nil {
		printError(err)
		return 1
	}
	defer c.Close()

	if err := execCtl(c, cmd, rest, *rate, *voice); err != nil {
		printError(err)
		return 1
	}
	return 0
}

func execCtl(c controller, cmd string, args []string, rate float64, voice string) error {
	var id uint64
	switch cmd {
	case "pause", "resume", "stop":
		var err error
		if id, err = sessionArg(args); err != nil {
			return err
		}
	}

	switch cmd {
	case "read":
		sid, err := c.ReadSelection()
		if err != nil {
			return err
		}
		printSession(sid)
	case "play":
		if len(args) == 0 {
			return fmt.Errorf("play needs text")
		}
		sid, err := c.Play(strings.Join(args, " "), rate, voice)
		if err != nil {
			return err
		}
		printSession(sid)
	case "pause":
		return c.Pause(id)
	case "resume":
		return c.Resume(id)
	case "toggle":
		return c.TogglePause()
	case "stop":
		return c.Stop(id)
	case "status":
		st, err := c.Status()
		if err != nil {
			return err
		}
		printStatus(st)
	case "voices", "refresh":
		list, err := c.ListVoices()
		if cmd == "refresh" {
			list, err = c.RefreshVoices()
		}
		if err != nil {
			return err
		}
		printVoices("", list)
	case "stats":
		sc, ok := c.(*dbus.Client)
		if !ok {
			return fmt.Errorf("stats are only available over D-Bus")
		}
		switch {
		case len(args) == 1 && args[0] == "--reset":
			return sc.ResetStats()
		case len(args) > 0:
			return fmt.Errorf("stats takes only --reset")
		}
		out, err := sc.GetStats()
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, ctlUsage)
	}
	return nil
}

// sessionArg parses an optional session id; none means the current session
func sessionArg(args []string) (uint64, error) {
	switch len(args) {
	case 0:
		return 0, nil
	case 1:
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid session id %q", args[0])
		}
		return id, nil
	}
	return 0, fmt.Errorf("expected at most one session id, got %d arguments", len(args))
}

type natsController struct {
	conn   *nats.Conn
	prefix string
}

func newNATSController() (*natsController, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	natsCfg := cfg.GetNATSConfig()
	conn, err := bus.Connect(natsCfg)
	if err != nil {
		return nil, err
	}
	return &natsController{conn: conn, prefix: natsCfg.SubjectPrefix}, nil
}

func (n *natsController) do(cmd bus.Command) (bus.Reply, error) {
	return bus.Request(n.conn, n.prefix, cmd)
}

func (n *natsController) ReadSelection() (uint64, error) {
	r, err := n.do(bus.Command{Action: "read"})
	return r.SessionID, err
}

func (n *natsController) Play(text string, rate float64, voice string) (uint64, error) {
	r, err := n.do(bus.Command{Action: "play", Text: text, Rate: rate, Voice: voice})
	return r.SessionID, err
}

func (n *natsController) Pause(id uint64) error {
	_, err := n.do(bus.Command{Action: "pause", SessionID: id})
	return err
}

func (n *natsController) Resume(id uint64) error {
	_, err := n.do(bus.Command{Action: "resume", SessionID: id})
	return err
}

func (n *natsController) Stop(id uint64) error {
	_, err := n.do(bus.Command{Action: "stop", SessionID: id})
	return err
}

func (n *natsController) TogglePause() error {
	_, err := n.do(bus.Command{Action: "toggle"})
	return err
}

func (n *natsController) Status() (playback.Status, error) {
	r, err := n.do(bus.Command{Action: "status"})
	if err != nil || r.Status == nil {
		return playback.Status{}, err
	}
	st := *r.Status
	st.State, _ = playback.ParseState(st.StateName)
	return st, nil
}

func (n *natsController) ListVoices() ([]voices.Descriptor, error) {
	r, err := n.do(bus.Command{Action: "voices"})
	return r.Voices, err
}

func (n *natsController) RefreshVoices() ([]voices.Descriptor, error) {
	r, err := n.do(bus.Command{Action: "refresh"})
	return r.Voices, err
}

func (n *natsController) Close() error {
	n.conn.Close()
	return nil
}
