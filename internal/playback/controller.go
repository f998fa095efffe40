// Package playback drives a blocking speech backend as a pausable,
// cancellable background activity.
//
// One loop goroutine owns the session. Commands, preparation results and
// worker completions reach it as messages; the worker goroutine makes the
// blocking backend call, one at a time. State changes are reported as Events
// on a single channel, which callers must drain.
package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/logger"
	"github.com/dooshek/readaloud/internal/segment"
	"github.com/dooshek/readaloud/internal/tts"
	"github.com/dooshek/readaloud/internal/voices"
)

// ErrClosed is returned by calls on a closed controller
var ErrClosed = errors.New("playback controller closed")

type Options struct {
	ChunkMode     segment.Mode
	MaxChunkRunes int
}

type cmdKind int

const (
	cmdPlay cmdKind = iota
	cmdPause
	cmdResume
	cmdStop
	cmdRate
	cmdVoice
)

type command struct {
	kind  cmdKind
	id    uint64
	play  playRequest
	rate  float64
	voice voices.Descriptor
	reply chan uint64
}

type playRequest struct {
	id    uint64
	text  string
	rate  float64
	voice string
	pause bool
}

type preparation struct {
	id      uint64
	chunks  []string
	voice   voices.Descriptor
	rate    float64
	clamped bool
	err     error
}

type job struct {
	ctx     context.Context
	session uint64
	index   int
	utt     tts.Utterance
}

type result struct {
	session uint64
	index   int
	err     error
}

type session struct {
	id            uint64
	state         State
	req           playRequest
	chunks        []string
	voice         voices.Descriptor
	requestedRate float64
	rate          float64
	next          int // next chunk to submit
	inflight      int // chunk at the worker, -1 if none
	aborting      bool
	suspended     bool
	pausePending  bool
	rateOverride  *float64
	voiceOverride *voices.Descriptor
}

// Controller is the speech playback state machine
type Controller struct {
	backend   tts.Backend
	suspender tts.Suspender
	voices    *voices.Cache
	opts      Options

	cmds     chan command
	prepared chan preparation
	jobs     chan job
	results  chan result
	events   chan Event
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once

	status atomic.Pointer[Status]

	// owned by the loop goroutine
	nextID     uint64
	cur        *session
	pending    *playRequest
	busy       bool
	jobCancel  context.CancelFunc
	prepCancel context.CancelFunc
}

// New starts a controller for backend. Backends implementing tts.Suspender
// are paused in place; others are paused by cancelling the current chunk.
func New(backend tts.Backend, cache *voices.Cache, opts Options) *Controller {
	if opts.MaxChunkRunes <= 0 {
		opts.MaxChunkRunes = segment.DefaultMaxRunes
	}
	c := &Controller{
		backend:  backend,
		voices:   cache,
		opts:     opts,
		cmds:     make(chan command, 16),
		prepared: make(chan preparation, 1),
		jobs:     make(chan job, 1),
		results:  make(chan result, 1),
		events:   make(chan Event, 128),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if s, ok := backend.(tts.Suspender); ok {
		c.suspender = s
	}
	c.publish(nil)

	go c.worker()
	go c.loop()
	return c
}

// Events returns the event channel. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Status returns the latest snapshot
func (c *Controller) Status() Status {
	return *c.status.Load()
}

// Play starts a new session, superseding the current one. Empty text fails
// with apperr.ErrEmptySelection before anything reaches the backend; voice
// and rate problems are reported as events.
func (c *Controller) Play(text string, rate float64, voice string) (uint64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, apperr.New(apperr.KindEmptySelection, 0, nil)
	}

	reply := make(chan uint64, 1)
	if err := c.send(command{kind: cmdPlay, play: playRequest{text: text, rate: rate, voice: voice}, reply: reply}); err != nil {
		return 0, err
	}
	select {
	case id := <-reply:
		return id, nil
	case <-c.done:
		select {
		case id := <-reply:
			return id, nil
		default:
			return 0, ErrClosed
		}
	}
}

// Pause holds session id; 0 means the current session
func (c *Controller) Pause(id uint64) error {
	return c.send(command{kind: cmdPause, id: id})
}

func (c *Controller) Resume(id uint64) error {
	return c.send(command{kind: cmdResume, id: id})
}

func (c *Controller) Stop(id uint64) error {
	return c.send(command{kind: cmdStop, id: id})
}

// SetRate changes the rate for chunks not yet submitted
func (c *Controller) SetRate(id uint64, rate float64) error {
	return c.send(command{kind: cmdRate, id: id, rate: rate})
}

// SetVoice changes the voice for chunks not yet submitted. Unknown voices
// are rejected here and the session keeps its voice.
func (c *Controller) SetVoice(ctx context.Context, id uint64, voice string) error {
	d, err := c.voices.Lookup(ctx, voice)
	if err != nil {
		if errors.Is(err, apperr.ErrUnknownVoice) {
			return apperr.New(apperr.KindUnknownVoice, id, err)
		}
		return err
	}
	return c.send(command{kind: cmdVoice, id: id, voice: d})
}

// Close stops the current session, waits for the backend call to return
// and closes the event channel
func (c *Controller) Close() {
	c.once.Do(func() { close(c.quit) })
	<-c.done
}

func (c *Controller) send(cmd command) error {
	select {
	case <-c.quit:
		return ErrClosed
	default:
	}
	select {
	case c.cmds <- cmd:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) worker() {
	for j := range c.jobs {
		err := c.backend.Synthesize(j.ctx, j.utt)
		c.results <- result{session: j.session, index: j.index, err: err}
	}
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case cmd := <-c.cmds:
			c.handle(cmd)
		case p := <-c.prepared:
			c.onPrepared(p)
		case r := <-c.results:
			c.onResult(r)
		case <-c.quit:
			c.shutdown()
			return
		}
	}
}

func (c *Controller) handle(cmd command) {
	switch cmd.kind {
	case cmdPlay:
		c.nextID++
		req := cmd.play
		req.id = c.nextID
		cmd.reply <- req.id
		c.requestPlay(req)
	case cmdStop:
		c.stop(cmd.id)
	default:
		if p := c.pendingFor(cmd.id); p != nil {
			c.amendPending(p, cmd)
			return
		}
		s := c.resolve(cmd.id)
		if s == nil {
			return
		}
		switch cmd.kind {
		case cmdPause:
			c.pause(s)
		case cmdResume:
			c.resume(s)
		case cmdRate:
			c.retuneRate(s, cmd.rate)
		case cmdVoice:
			c.retuneVoice(s, cmd.voice)
		}
	}
}

// pendingFor returns the play waiting for the current session to wind down
// when id addresses it. 0 means the newest session, which is the pending one.
func (c *Controller) pendingFor(id uint64) *playRequest {
	if c.pending == nil || (id != 0 && id != c.pending.id) {
		return nil
	}
	return c.pending
}

// amendPending records a command for a session that has not started yet.
// start carries it into Preparing, where it is applied once ready.
func (c *Controller) amendPending(p *playRequest, cmd command) {
	switch cmd.kind {
	case cmdPause:
		p.pause = true
	case cmdResume:
		p.pause = false
	case cmdRate:
		p.rate = cmd.rate
	case cmdVoice:
		p.voice = cmd.voice.ID
	}
	logger.Session(p.id, "command recorded before start")
}

// resolve maps id to the current session; 0 addresses whatever is current
func (c *Controller) resolve(id uint64) *session {
	if c.cur == nil {
		return nil
	}
	if id == 0 || id == c.cur.id {
		return c.cur
	}
	logger.Debugf("playback: %v", apperr.New(apperr.KindStaleSession, id, nil))
	return nil
}

func (c *Controller) requestPlay(req playRequest) {
	if c.pending != nil {
		// never started, so it has no events to close out
		logger.Session(c.pending.id, "superseded before start")
		c.pending = nil
	}
	if c.cur == nil {
		c.start(req)
		return
	}
	c.pending = &req
	c.cancel(c.cur)
}

func (c *Controller) start(req playRequest) {
	s := &session{
		id:            req.id,
		state:         Preparing,
		req:           req,
		requestedRate: req.rate,
		inflight:      -1,
		pausePending:  req.pause,
	}
	c.cur = s
	c.emitState(s, Preparing)

	ctx, cancel := context.WithCancel(context.Background())
	c.prepCancel = cancel
	go c.prepare(ctx, req)
}

// prepare runs off the loop: the first voice lookup may enumerate voices
func (c *Controller) prepare(ctx context.Context, req playRequest) {
	p := preparation{id: req.id}

	d, err := c.voices.Lookup(ctx, req.voice)
	switch {
	case errors.Is(err, apperr.ErrUnknownVoice):
		p.err = apperr.New(apperr.KindUnknownVoice, req.id, err)
	case err != nil:
		p.err = apperr.New(apperr.KindBackendFailure, req.id, err)
	default:
		p.voice = d
		p.rate, p.clamped = d.ClampRate(req.rate)
		p.chunks = segment.Split(req.text, segment.Options{Mode: c.opts.ChunkMode, MaxRunes: c.opts.MaxChunkRunes})
		if len(p.chunks) == 0 {
			p.err = apperr.New(apperr.KindEmptySelection, req.id, nil)
		}
	}

	select {
	case c.prepared <- p:
	case <-c.done:
	}
}

func (c *Controller) onPrepared(p preparation) {
	s := c.cur
	if s == nil || s.id != p.id || s.state != Preparing {
		logger.Session(p.id, "dropping stale preparation")
		return
	}
	c.prepCancel()
	c.prepCancel = nil

	if p.err != nil {
		c.fail(s, p.err)
		return
	}

	s.chunks = p.chunks
	s.voice = p.voice
	s.rate = p.rate
	if p.clamped {
		c.emitClamped(s)
	}
	if s.voiceOverride != nil {
		c.retuneVoice(s, *s.voiceOverride)
		s.voiceOverride = nil
	}
	if s.rateOverride != nil {
		c.retuneRate(s, *s.rateOverride)
		s.rateOverride = nil
	}

	logger.Session(s.id, "%d chunks, voice %q, rate %.2f", len(s.chunks), s.voice.ID, s.rate)
	s.state = Speaking
	c.emitState(s, Speaking)
	c.submit(s)

	if s.pausePending && c.cur == s {
		s.pausePending = false
		c.pause(s)
	}
}

// submit hands the next chunk to the worker, or ends the session when there
// is none left
func (c *Controller) submit(s *session) {
	if s.next >= len(s.chunks) {
		logger.Session(s.id, "completed")
		c.finish(s)
		return
	}
	if c.busy {
		logger.Warnf("playback: worker busy, chunk %d of session %d deferred", s.next, s.id)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.jobCancel = cancel
	c.busy = true
	s.inflight = s.next
	s.next++
	c.jobs <- job{
		ctx:     ctx,
		session: s.id,
		index:   s.inflight,
		utt:     tts.Utterance{Text: s.chunks[s.inflight], Rate: s.rate, Voice: s.voice.ID},
	}
	c.publish(s)
}

func (c *Controller) onResult(r result) {
	c.busy = false
	if c.jobCancel != nil {
		c.jobCancel()
		c.jobCancel = nil
	}

	s := c.cur
	if s == nil || s.id != r.session {
		logger.Session(r.session, "dropping stale result for chunk %d", r.index)
		return
	}

	idx := s.inflight
	s.inflight = -1
	completed := r.err == nil
	cancelled := errors.Is(r.err, context.Canceled)

	if s.state == Cancelling {
		c.finish(s)
		return
	}
	if r.err != nil && !cancelled {
		c.fail(s, apperr.New(apperr.KindBackendFailure, s.id, r.err))
		return
	}

	if !completed {
		// cancelled by pause; restart this chunk from its beginning
		s.next = idx
	}
	s.aborting = false

	switch s.state {
	case Speaking:
		c.submit(s)
	case Paused:
		c.publish(s)
	}
}

func (c *Controller) pause(s *session) {
	switch s.state {
	case Preparing:
		s.pausePending = true
		return
	case Speaking:
	default:
		return
	}

	if s.inflight >= 0 && c.suspender != nil && !s.aborting {
		err := c.suspender.Suspend()
		if err == nil {
			s.suspended = true
			s.state = Paused
			c.emitState(s, Paused)
			return
		}
		logger.Warnf("playback: %s cannot suspend (%v), stopping chunk instead", c.backend.Name(), err)
	}

	if s.inflight >= 0 {
		s.aborting = true
		c.jobCancel()
	}
	s.state = Paused
	c.emitState(s, Paused)
}

func (c *Controller) resume(s *session) {
	switch s.state {
	case Preparing:
		s.pausePending = false
		return
	case Paused:
	default:
		return
	}

	if s.suspended {
		s.suspended = false
		if err := c.suspender.Resume(); err != nil {
			logger.Warnf("playback: %s cannot resume (%v), restarting chunk", c.backend.Name(), err)
			if s.inflight >= 0 {
				s.aborting = true
				c.jobCancel()
			}
		}
	}

	s.state = Speaking
	c.emitState(s, Speaking)
	if s.inflight < 0 {
		c.submit(s)
	}
	// otherwise the aborted chunk's result resubmits it
}

func (c *Controller) stop(id uint64) {
	if c.pending != nil && (id == 0 || id == c.pending.id) {
		logger.Session(c.pending.id, "dropped before start")
		c.pending = nil
		if id != 0 {
			return
		}
	}
	if s := c.resolve(id); s != nil {
		c.cancel(s)
	}
}

// cancel moves s to Cancelling. Idle follows once the worker has returned.
func (c *Controller) cancel(s *session) {
	if s.state == Cancelling {
		return
	}
	if s.state == Preparing && c.prepCancel != nil {
		c.prepCancel()
		c.prepCancel = nil
	}
	s.state = Cancelling
	c.emitState(s, Cancelling)

	if s.inflight >= 0 {
		c.jobCancel()
		return
	}
	c.finish(s)
}

func (c *Controller) fail(s *session, err error) {
	logger.Errorf("playback: session %d failed", err, s.id)
	c.emitError(s, err)
	c.finish(s)
}

// finish ends s and starts a pending play, if any
func (c *Controller) finish(s *session) {
	if s.suspended {
		s.suspended = false
		if err := c.suspender.Resume(); err != nil {
			logger.Debugf("playback: clearing suspend: %v", err)
		}
	}
	c.cur = nil
	s.state = Idle
	c.emitState(s, Idle)

	if p := c.pending; p != nil {
		c.pending = nil
		c.start(*p)
	}
}

func (c *Controller) retuneRate(s *session, rate float64) {
	switch s.state {
	case Preparing:
		s.rateOverride = &rate
		return
	case Cancelling, Idle:
		return
	}
	s.requestedRate = rate
	var clamped bool
	s.rate, clamped = s.voice.ClampRate(rate)
	if clamped {
		c.emitClamped(s)
	}
	c.publish(s)
}

func (c *Controller) retuneVoice(s *session, d voices.Descriptor) {
	switch s.state {
	case Preparing:
		s.voiceOverride = &d
		return
	case Cancelling, Idle:
		return
	}
	s.voice = d
	var clamped bool
	s.rate, clamped = d.ClampRate(s.requestedRate)
	if clamped {
		c.emitClamped(s)
	}
	c.publish(s)
}

func (c *Controller) shutdown() {
	if s := c.cur; s != nil {
		if c.prepCancel != nil {
			c.prepCancel()
			c.prepCancel = nil
		}
		if c.busy {
			c.jobCancel()
			<-c.results
			c.busy = false
		}
		if s.suspended {
			_ = c.suspender.Resume()
		}
		c.cur = nil
	}
	c.pending = nil
	close(c.jobs)
	c.publish(nil)
	close(c.events)
}

func (c *Controller) emitClamped(s *session) {
	err := fmt.Errorf("%w: %.2f outside %.2f-%.2f for voice %q, using %.2f",
		apperr.ErrRateClamped, s.requestedRate, s.voice.MinRate, s.voice.MaxRate, s.voice.ID, s.rate)
	c.emitError(s, apperr.New(apperr.KindRateClamped, s.id, err))
}

func (c *Controller) emitState(s *session, st State) {
	logger.Session(s.id, "state %s", st)
	c.publish(s)
	ev := Event{Type: StateChanged, SessionID: s.id, State: st}
	if st == Preparing {
		ev.Runes = utf8.RuneCountInString(s.req.text)
	}
	c.emit(ev)
}

func (c *Controller) emitError(s *session, err error) {
	c.emit(Event{Type: Error, SessionID: s.id, State: s.state, Kind: apperr.KindOf(err), Err: err})
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.quit:
	}
}

func (c *Controller) publish(s *session) {
	st := Status{State: Idle, StateName: Idle.String(), Backend: c.backend.Name()}
	if s != nil && s.state != Idle {
		st.SessionID = s.id
		st.State = s.state
		st.StateName = s.state.String()
		st.Chunks = len(s.chunks)
		st.Chunk = s.next
		if s.inflight >= 0 {
			st.Chunk = s.inflight
		}
		st.Voice = s.voice.ID
		st.Rate = s.rate
	}
	c.status.Store(&st)
}
