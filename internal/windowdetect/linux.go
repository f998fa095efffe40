package windowdetect

import (
	"context"
	"strings"
)

// linuxDetector asks xdotool; it only sees X11 and XWayland windows
type linuxDetector struct {
	output outputFunc
}

func (d *linuxDetector) GetFocusedWindow(ctx context.Context) (*WindowInfo, error) {
	windowID, err := d.output(ctx, "xdotool", "getactivewindow")
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(string(windowID))

	windowName, err := d.output(ctx, "xdotool", "getwindowname", id)
	if err != nil {
		return nil, err
	}

	// class name is missing for some override-redirect windows
	windowClass, _ := d.output(ctx, "xdotool", "getwindowclassname", id)

	return &WindowInfo{
		ID:      id,
		Title:   strings.TrimSpace(string(windowName)),
		AppName: strings.TrimSpace(string(windowClass)),
	}, nil
}
