package audio

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func samples(vals ...int16) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func TestFillPadsWithSilence(t *testing.T) {
	s := newStream(1)
	s.write(samples(100, -100))

	out := make([]byte, 8)
	for i := range out {
		out[i] = 0xff
	}
	s.fill(out)
	assert.Equal(t, append(samples(100, -100), 0, 0, 0, 0), out)
}

func TestGainScalesAndClips(t *testing.T) {
	pcm := samples(1000, -1000, 30000)
	applyGain(pcm, 0.5)
	assert.Equal(t, samples(500, -500, 15000), pcm)

	pcm = samples(30000, -30000)
	applyGain(pcm, 2)
	assert.Equal(t, samples(32767, -32768), pcm)
}

func TestDrainedAfterCloseAndEmpty(t *testing.T) {
	s := newStream(1)
	s.write(samples(1, 2, 3))
	s.closeInput()

	select {
	case <-s.drained:
		t.Fatal("drained with audio still queued")
	default:
	}

	s.fill(make([]byte, 6))
	select {
	case <-s.drained:
	case <-time.After(time.Second):
		t.Fatal("not drained")
	}

	// writes after close are dropped
	s.write(samples(9))
	s.fill(make([]byte, 2))
}

func TestFlush(t *testing.T) {
	s := newStream(1)
	s.write(samples(1, 2, 3))
	s.flush()
	<-s.drained

	out := make([]byte, 4)
	s.fill(out)
	assert.Equal(t, make([]byte, 4), out)
}
