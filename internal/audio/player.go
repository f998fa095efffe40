// Package audio plays raw PCM through the default output device.
package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/dooshek/readaloud/internal/logger"
	"github.com/gen2brain/malgo"
)

// Format describes signed 16-bit PCM
type Format struct {
	SampleRate uint32
	Channels   uint32
}

// Player streams one utterance worth of PCM to the speakers. Create one per
// utterance: Write as data arrives, CloseInput, then Wait.
type Player struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	stream *stream
	paused bool
	closed bool
}

// NewPlayer opens the default playback device. volume is 1-100.
func NewPlayer(format Format, volume int) (*Player, error) {
	if volume <= 0 || volume > 100 {
		volume = 100
	}
	s := newStream(float64(volume) / 100)

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = format.Channels
	deviceConfig.SampleRate = format.SampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(outputBuffer, _ []byte, _ uint32) {
			s.fill(outputBuffer)
		},
	})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	return &Player{ctx: ctx, device: device, stream: s}, nil
}

// Write queues PCM for playback
func (p *Player) Write(pcm []byte) {
	p.stream.write(pcm)
}

// CloseInput signals that no more PCM follows
func (p *Player) CloseInput() {
	p.stream.closeInput()
}

// Wait blocks until queued audio has played or ctx ends. On cancellation the
// queue is dropped and the device stops at once.
func (p *Player) Wait(ctx context.Context) error {
	select {
	case <-p.stream.drained:
		return nil
	case <-ctx.Done():
		p.stream.flush()
		p.mu.Lock()
		if !p.closed && !p.paused {
			if err := p.device.Stop(); err != nil {
				logger.Debugf("audio: stop after cancel: %v", err)
			}
		}
		p.mu.Unlock()
		return ctx.Err()
	}
}

// Suspend holds playback in place
func (p *Player) Suspend() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.paused {
		return nil
	}
	if err := p.device.Stop(); err != nil {
		return fmt.Errorf("failed to suspend playback: %w", err)
	}
	p.paused = true
	return nil
}

// Resume continues a suspended player
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.paused {
		return nil
	}
	if err := p.device.Start(); err != nil {
		return fmt.Errorf("failed to resume playback: %w", err)
	}
	p.paused = false
	return nil
}

// Close releases the device
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.stream.flush()
	p.device.Uninit()
	if err := p.ctx.Uninit(); err != nil {
		logger.Debugf("audio: context uninit: %v", err)
	}
	p.ctx.Free()
}
