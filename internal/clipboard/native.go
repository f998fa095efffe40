package clipboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dooshek/readaloud/internal/apperr"
	"golang.design/x/clipboard"
)

var (
	initOnce sync.Once
	initErr  error
)

// NativeBridge uses golang.design/x/clipboard. Calls are serialized since the
// underlying package keeps global state.
type NativeBridge struct {
	mu      sync.Mutex
	timeout time.Duration
}

// NewNativeBridge initializes the native clipboard once per process
func NewNativeBridge(timeout time.Duration) (*NativeBridge, error) {
	initOnce.Do(func() {
		initErr = clipboard.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("failed to initialize clipboard: %w", initErr)
	}
	return &NativeBridge{timeout: timeout}, nil
}

func (b *NativeBridge) Read(ctx context.Context) (string, bool, error) {
	var data []byte
	err := b.withTimeout(ctx, func() {
		data = clipboard.Read(clipboard.FmtText)
	})
	if err != nil {
		return "", false, err
	}
	if data == nil {
		return "", false, nil
	}
	return string(data), true, nil
}

func (b *NativeBridge) Write(ctx context.Context, text string) error {
	return b.withTimeout(ctx, func() {
		clipboard.Write(clipboard.FmtText, []byte(text))
	})
}

// withTimeout runs fn under the bridge mutex. A call that outlives the
// timeout keeps running in the background while the caller gets an error.
func (b *NativeBridge) withTimeout(ctx context.Context, fn func()) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		fn()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("native clipboard: %w", apperr.ErrClipboardTimeout)
	}
}
