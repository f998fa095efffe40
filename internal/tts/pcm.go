package tts

import (
	"context"
	"sync"

	"github.com/dooshek/readaloud/internal/audio"
)

// pcmSink is the part of audio.Player the network backends use
type pcmSink interface {
	Write(pcm []byte)
	CloseInput()
	Wait(ctx context.Context) error
	Suspend() error
	Resume() error
	Close()
}

type sinkFactory func(format audio.Format, volume int) (pcmSink, error)

func newAudioPlayer(format audio.Format, volume int) (pcmSink, error) {
	return audio.NewPlayer(format, volume)
}

// OpenAI returns 24kHz mono signed 16-bit PCM
var openAIFormat = audio.Format{SampleRate: 24000, Channels: 1}

// playerSlot tracks the sink of the utterance in flight so that Suspend and
// Resume can reach it from another goroutine. A suspend that arrives before
// the sink exists is applied when it is attached.
type playerSlot struct {
	mu        sync.Mutex
	sink      pcmSink
	suspended bool
}

func (s *playerSlot) attach(p pcmSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = p
	if s.suspended {
		return p.Suspend()
	}
	return nil
}

func (s *playerSlot) detach(p pcmSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink == p {
		s.sink = nil
	}
}

func (s *playerSlot) Suspend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = true
	if s.sink != nil {
		return s.sink.Suspend()
	}
	return nil
}

func (s *playerSlot) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = false
	if s.sink != nil {
		return s.sink.Resume()
	}
	return nil
}
