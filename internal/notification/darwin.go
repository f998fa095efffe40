package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/dooshek/readaloud/internal/logger"
)

type darwinNotifier struct {
	run runFunc
}

func newDarwinNotifier(run runFunc) platformNotifier {
	return &darwinNotifier{run: run}
}

func (n *darwinNotifier) send(title, message string) error {
	logger.Debugf("Sending macOS notification: %s - %s", title, message)
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := n.run(ctx, "osascript", "-e", notificationScript(title, message)); err != nil {
		logger.Error("Failed to send macOS notification", err)
		return err
	}
	return nil
}

func notificationScript(title, message string) string {
	return fmt.Sprintf(`display notification %s with title %s`, appleString(message), appleString(title))
}

// appleString quotes s as an AppleScript string literal
func appleString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
