// Package lifecycle drives one client session for a listening party through
// PENDING_CREATION, SCHEDULED, LIVE and FINISHED.
//
// Every input (countdown ticks, poll results, media signals, user intents and
// the finish notification) is handled on the single goroutine running Run, one
// event at a time. Run owns every timer and the media handle and releases them
// on all exit paths.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/listenparty/go/internal/countdown"
	"github.com/mcdev12/listenparty/go/internal/models"
	"github.com/mcdev12/listenparty/go/internal/playback"
	"github.com/mcdev12/listenparty/go/internal/refresher"
)

var (
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("controller already running")
	// ErrNoFetcher is returned for a pending party without a way to refresh it.
	ErrNoFetcher = errors.New("pending party requires a fetcher")
)

const (
	signalBuffer = 64
	intentBuffer = 16
)

type intentKind int

const (
	intentJoin intentKind = iota
	intentRetry
)

// Options configures a Controller. Zero values pick the defaults.
type Options struct {
	Clock             clockwork.Clock
	CountdownInterval time.Duration
	PollInterval      time.Duration
	Observers         []Observer
}

// Controller is the lifecycle state machine for one party session.
type Controller struct {
	clock     clockwork.Clock
	engine    playback.Engine
	countdown *countdown.Clock
	refresher *refresher.Refresher
	observers []Observer

	signals  chan playback.Signal
	intents  chan intentKind
	finished chan struct{}
	done     chan struct{}
	doneOnce sync.Once
	running  atomic.Bool

	// loop-only
	joinPending bool

	mu      sync.RWMutex
	party   models.Party
	state   State
	reading countdown.Reading
	player  *playback.Synchronizer
	lastErr error
}

// New validates the record and picks the initial state. Nothing is started
// until Run.
func New(party models.Party, engine playback.Engine, fetcher refresher.Fetcher, opts Options) (*Controller, error) {
	if err := party.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	initial := InitialState(party, opts.Clock.Now())
	if initial == StatePendingCreation && fetcher == nil {
		return nil, ErrNoFetcher
	}

	c := &Controller{
		clock:     opts.Clock,
		engine:    engine,
		countdown: countdown.NewClock(opts.Clock, party.StartTime, opts.CountdownInterval),
		observers: opts.Observers,
		signals:   make(chan playback.Signal, signalBuffer),
		intents:   make(chan intentKind, intentBuffer),
		finished:  make(chan struct{}, 1),
		done:      make(chan struct{}),
		party:     party,
		state:     initial,
	}
	if fetcher != nil {
		c.refresher = refresher.New(fetcher, opts.Clock, party.ID, opts.PollInterval)
		if err := c.refresher.Seed(party); err != nil {
			return nil, err
		}
	}
	c.reading = countdown.NewDetector(party.StartTime).Observe(opts.Clock.Now())

	log.Info().
		Str("party_id", party.ID.String()).
		Str("state", initial.String()).
		Msg("party session created")

	return c, nil
}

// Run executes the event loop until the party finishes or ctx is cancelled.
// It returns nil on FINISHED and ctx.Err() on cancellation.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.teardown()

	switch c.State() {
	case StateFinished:
		log.Info().Str("party_id", c.partyID()).Msg("party already finished - nothing to schedule")
		c.emitSnapshot()
		return nil
	case StatePendingCreation:
		c.refresher.Start(ctx)
		c.emitSnapshot()
	case StateScheduled:
		c.dispatch(func() { c.enterScheduled(ctx) })
	}

	for c.State() != StateFinished {
		select {
		case <-ctx.Done():
			log.Info().Str("party_id", c.partyID()).Str("state", c.State().String()).Msg("party session cancelled")
			return ctx.Err()

		case <-c.countdown.Ticks():
			c.dispatch(func() { c.applyReading(ctx, c.countdown.Tick()) })

		case <-c.pollTicks():
			c.refresher.Poll()

		case res := <-c.pollResults():
			c.dispatch(func() { c.handlePollResult(ctx, res) })

		case sig := <-c.signals:
			c.dispatch(func() { c.handleSignal(ctx, sig) })

		case in := <-c.intents:
			c.dispatch(func() { c.handleIntent(ctx, in) })

		case <-c.finished:
			c.handleFinished()
		}
	}
	return nil
}

func (c *Controller) pollTicks() <-chan time.Time {
	if c.refresher == nil {
		return nil
	}
	return c.refresher.Ticks()
}

func (c *Controller) pollResults() <-chan refresher.Result {
	if c.refresher == nil || !c.refresher.Running() {
		return nil
	}
	return c.refresher.Results()
}

// dispatch runs one handler and reports what changed.
func (c *Controller) dispatch(handle func()) {
	before := c.playbackState()
	handle()
	c.reportPlayback(before, c.playbackState())
	c.emitSnapshot()
}

func (c *Controller) transition(to State) bool {
	c.mu.Lock()
	from := c.state
	if from == StateFinished {
		c.mu.Unlock()
		return false
	}
	if !CanTransition(from, to) {
		c.mu.Unlock()
		log.Warn().
			Str("party_id", c.party.ID.String()).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("illegal lifecycle transition - ignoring")
		return false
	}
	c.state = to
	t := Transition{From: from, To: to, At: c.clock.Now(), Party: c.party}
	c.mu.Unlock()

	log.Info().
		Str("party_id", t.Party.ID.String()).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("lifecycle transition")

	for _, o := range c.observers {
		o.OnTransition(t.Party.ID, t)
	}
	return true
}

// enterScheduled binds the media handle and starts the countdown. The first
// reading is taken immediately, so a party whose start has already passed
// goes live in the same step.
func (c *Controller) enterScheduled(ctx context.Context) {
	c.mu.Lock()
	party := c.party
	c.mu.Unlock()

	s := playback.NewSynchronizer(c.engine, c.clock, party.ID,
		playback.Schedule{Start: party.StartTime, End: party.EndTime},
		c.notifyFinished)

	c.mu.Lock()
	c.player = s
	c.mu.Unlock()

	if err := s.Initialize(ctx, party.MediaURL, c.sink); err != nil {
		c.setErr(err)
	}
	if c.joinPending {
		c.joinPending = false
		s.MarkJoined(ctx)
	}

	c.applyReading(ctx, c.countdown.Start())
}

func (c *Controller) applyReading(ctx context.Context, r countdown.Reading) {
	c.mu.Lock()
	c.reading = r
	c.mu.Unlock()

	if r.Edge && c.transition(StateLive) {
		c.synchronizer().OnLiveEdge(ctx)
	}
}

func (c *Controller) handlePollResult(ctx context.Context, res refresher.Result) {
	if c.State() != StatePendingCreation {
		return
	}
	if res.Err != nil {
		if errors.Is(res.Err, refresher.ErrEndTimeChanged) {
			log.Error().Err(res.Err).Str("party_id", c.partyID()).Msg("rejected party update")
		} else {
			log.Warn().Err(res.Err).Str("party_id", c.partyID()).Msg("party poll failed, retrying on next tick")
		}
		return
	}
	if !res.Party.IsCreated() {
		log.Debug().Str("party_id", c.partyID()).Msg("party still being created")
		return
	}
	if err := res.Party.Validate(); err != nil {
		log.Warn().Err(err).Str("party_id", c.partyID()).Msg("ignoring invalid party record")
		return
	}

	c.refresher.Stop()

	c.mu.Lock()
	start := c.party.StartTime
	c.party = res.Party
	c.party.StartTime = start
	c.mu.Unlock()

	// Same rule as InitialState: a record that is already over never binds
	// media, and a join made while pending is dropped.
	if res.Party.Finished || res.Party.HasEnded(c.clock.Now()) {
		log.Info().
			Str("party_id", c.partyID()).
			Bool("finished", res.Party.Finished).
			Msg("party was over by the time creation completed")
		c.joinPending = false
		if c.transition(StateFinished) {
			c.countdown.Stop()
		}
		return
	}

	if c.transition(StateScheduled) {
		c.enterScheduled(ctx)
	}
}

func (c *Controller) handleSignal(ctx context.Context, sig playback.Signal) {
	s := c.synchronizer()
	if s == nil {
		return
	}
	s.HandleSignal(ctx, sig)
	if err := s.State().LastError; err != nil {
		c.setErr(err)
	}
}

func (c *Controller) handleIntent(ctx context.Context, in intentKind) {
	switch c.State() {
	case StatePendingCreation:
		c.joinPending = true
		log.Info().Str("party_id", c.partyID()).Msg("join recorded while party is pending creation")
	case StateScheduled, StateLive:
		s := c.synchronizer()
		if in == intentRetry {
			s.Retry(ctx)
		} else {
			s.MarkJoined(ctx)
		}
		c.setErr(s.State().LastError)
	}
}

func (c *Controller) handleFinished() {
	if !c.transition(StateFinished) {
		return
	}
	c.countdown.Stop()
	if c.refresher != nil {
		c.refresher.Stop()
	}
	c.emitSnapshot()
}

// notifyFinished is the synchronizer's finish callback. It only posts; the
// transition happens on the loop.
func (c *Controller) notifyFinished() {
	select {
	case c.finished <- struct{}{}:
	default:
	}
}

// sink forwards engine signals into the loop.
func (c *Controller) sink(sig playback.Signal) {
	select {
	case c.signals <- sig:
	case <-c.done:
	}
}

func (c *Controller) teardown() {
	c.doneOnce.Do(func() { close(c.done) })

	c.countdown.Stop()
	if c.refresher != nil {
		c.refresher.Stop()
	}
	if s := c.synchronizer(); s != nil {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Str("party_id", c.partyID()).Msg("failed to release media")
		}
	}

	log.Debug().Str("party_id", c.partyID()).Msg("party session released")
}

// MarkJoined records the user's intent to listen.
func (c *Controller) MarkJoined() {
	c.post(intentJoin)
}

// Retry re-attempts playback after it was denied.
func (c *Controller) Retry() {
	c.post(intentRetry)
}

func (c *Controller) post(in intentKind) {
	select {
	case c.intents <- in:
	case <-c.done:
	}
}

// Done is closed once Run has returned and released its resources.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Party returns the latest record.
func (c *Controller) Party() models.Party {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.party
}

// Snapshot returns a copy of the session state for display.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	party := c.party
	state := c.state
	reading := c.reading
	s := c.player
	lastErr := c.lastErr
	c.mu.RUnlock()

	snap := Snapshot{
		PartyID:   party.ID,
		Name:      party.Name,
		State:     state,
		StartTime: party.StartTime,
		EndTime:   party.EndTime,
		Countdown: reading.Text(),
		Breakdown: reading.Breakdown,
		Length:    countdown.FormatPosition(party.Duration()),
		Episode:   party.Episode,
		At:        c.clock.Now(),
	}
	if state == StateLive || state == StateFinished {
		snap.Countdown = countdown.LiveText
	}
	if s != nil {
		snap.Playback = s.State()
	}
	snap.Position = countdown.FormatPosition(snap.Playback.Position)
	if lastErr != nil {
		snap.LastError = lastErr.Error()
	}
	return snap
}

func (c *Controller) emitSnapshot() {
	if len(c.observers) == 0 {
		return
	}
	snap := c.Snapshot()
	for _, o := range c.observers {
		o.OnSnapshot(snap)
	}
}

func (c *Controller) reportPlayback(before, after playback.State) {
	var ev *PlaybackEvent
	switch {
	case after.Playing && !before.Playing:
		ev = &PlaybackEvent{Outcome: PlaybackStarted, Position: after.Position}
	case after.LastError != nil && after.LastError != before.LastError:
		ev = &PlaybackEvent{Outcome: PlaybackFailed, Position: after.Position, Err: after.LastError}
	default:
		return
	}
	ev.At = c.clock.Now()

	id := c.Party().ID
	for _, o := range c.observers {
		o.OnPlayback(id, *ev)
	}
}

func (c *Controller) playbackState() playback.State {
	if s := c.synchronizer(); s != nil {
		return s.State()
	}
	return playback.State{}
}

func (c *Controller) synchronizer() *playback.Synchronizer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.player
}

func (c *Controller) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Controller) partyID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.party.ID.String()
}

// String implements fmt.Stringer for log lines.
func (c *Controller) String() string {
	return fmt.Sprintf("party %s (%s)", c.partyID(), c.State())
}
