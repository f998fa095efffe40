package windowdetect

import (
	"context"
	"strings"
)

const frontWindowScript = `
tell application "System Events"
	set frontApp to first application process whose frontmost is true
	set appName to name of frontApp
	set windowTitle to ""
	try
		set windowTitle to name of first window of frontApp
	end try
	return appName & "|" & windowTitle
end tell
`

type darwinDetector struct {
	output outputFunc
}

func (d *darwinDetector) GetFocusedWindow(ctx context.Context) (*WindowInfo, error) {
	out, err := d.output(ctx, "osascript", "-e", frontWindowScript)
	if err != nil {
		return nil, err
	}

	appName, title, _ := strings.Cut(strings.TrimSpace(string(out)), "|")
	return &WindowInfo{AppName: appName, Title: title}, nil
}
