package notification

import (
	"context"

	"github.com/dooshek/readaloud/internal/logger"
)

type linuxNotifier struct {
	run runFunc
}

func newLinuxNotifier(run runFunc) platformNotifier {
	return &linuxNotifier{run: run}
}

func (n *linuxNotifier) send(title, message string) error {
	logger.Debugf("Sending notification: %s - %s", title, message)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := n.run(ctx, "notify-send", "--app-name=readaloud", title, message); err != nil {
			logger.Error("Failed to send notification", err)
		}
	}()
	return nil
}
