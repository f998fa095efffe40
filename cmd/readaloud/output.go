package main

import (
	"fmt"
	"os"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/playback"
	"github.com/dooshek/readaloud/internal/voices"
	"github.com/fatih/color"
)

var (
	bold   = color.New(color.Bold)
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

func printVoices(backend string, list []voices.Descriptor) {
	if backend != "" {
		bold.Printf("Voices of %s\n", backend)
	}
	for _, v := range list {
		marker := "  "
		if v.Default {
			marker = green.Sprint("* ")
		}
		fmt.Printf("%s%s", marker, cyan.Sprint(v.ID))
		if v.Name != "" && v.Name != v.ID {
			fmt.Printf("  %s", v.Name)
		}
		if v.Language != "" {
			fmt.Printf("  [%s]", v.Language)
		}
		if v.MaxRate > 0 {
			fmt.Printf("  rate %g-%g (default %g)", v.MinRate, v.MaxRate, v.DefaultRate)
		}
		fmt.Println()
	}
}

func printStatus(st playback.Status) {
	stateColor := yellow
	switch st.State {
	case playback.Speaking:
		stateColor = green
	case playback.Idle:
		stateColor = cyan
	}
	fmt.Printf("%s %s\n", bold.Sprint("state:"), stateColor.Sprint(st.StateName))
	fmt.Printf("%s %s\n", bold.Sprint("backend:"), st.Backend)
	if st.State == playback.Idle {
		return
	}
	fmt.Printf("%s %d\n", bold.Sprint("session:"), st.SessionID)
	fmt.Printf("%s %d/%d\n", bold.Sprint("chunk:"), st.Chunk+1, st.Chunks)
	fmt.Printf("%s %s at %g\n", bold.Sprint("voice:"), st.Voice, st.Rate)
}

func printSession(id uint64) {
	fmt.Printf("%s %d\n", green.Sprint("session"), id)
}

func printError(err error) {
	if apperr.KindOf(err).Advisory() {
		yellow.Fprintf(os.Stderr, "warning: %v\n", err)
		return
	}
	red.Fprintf(os.Stderr, "error: %v\n", err)
}

func printEventError(ev playback.Event) {
	if ev.Err == nil {
		printError(apperr.New(ev.Kind, ev.SessionID, nil))
		return
	}
	printError(ev.Err)
}
