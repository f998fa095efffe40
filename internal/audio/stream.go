package audio

import (
	"encoding/binary"
	"sync"
)

// stream is the PCM queue between producers and the device callback
type stream struct {
	mu      sync.Mutex
	buf     []byte
	gain    float64
	closed  bool
	drained chan struct{}
	once    sync.Once
}

func newStream(gain float64) *stream {
	return &stream{gain: gain, drained: make(chan struct{})}
}

func (s *stream) write(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.buf = append(s.buf, pcm...)
}

// closeInput marks the end of input; drained closes once the queue empties
func (s *stream) closeInput() {
	s.mu.Lock()
	s.closed = true
	empty := len(s.buf) == 0
	s.mu.Unlock()
	if empty {
		s.once.Do(func() { close(s.drained) })
	}
}

// flush discards queued audio and ends the stream
func (s *stream) flush() {
	s.mu.Lock()
	s.buf = nil
	s.closed = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.drained) })
}

// fill copies queued samples into out, scaled by gain, and pads with silence
func (s *stream) fill(out []byte) {
	s.mu.Lock()
	n := copy(out, s.buf)
	s.buf = s.buf[n:]
	done := s.closed && len(s.buf) == 0
	gain := s.gain
	s.mu.Unlock()

	if gain != 1 {
		applyGain(out[:n&^1], gain)
	}
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	if done {
		s.once.Do(func() { close(s.drained) })
	}
}

// applyGain scales signed 16-bit little endian samples in place
func applyGain(pcm []byte, gain float64) {
	for i := 0; i+1 < len(pcm); i += 2 {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) * gain
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(v)))
	}
}
