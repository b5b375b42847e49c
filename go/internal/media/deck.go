// Package media is a headless playback engine. It probes an MP3 resource for
// its duration and then advances a virtual play head against the clock,
// emitting the same signals a real audio element would.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/listenparty/go/internal/playback"
)

// DefaultUpdateInterval is how often position updates are emitted while
// playing.
const DefaultUpdateInterval = 250 * time.Millisecond

var (
	ErrClosed    = errors.New("deck closed")
	ErrNotLoaded = errors.New("no media loaded")
)

// Config configures a Deck.
type Config struct {
	Clock          clockwork.Clock
	HTTPClient     *http.Client
	UpdateInterval time.Duration
	// RequireGesture refuses Play until Unlock, like a browser autoplay policy.
	RequireGesture bool
}

// Deck implements playback.Engine and playback.GestureUnlocker.
type Deck struct {
	cfg Config

	mu        sync.Mutex
	sink      playback.Sink
	info      Info
	ready     bool
	closed    bool
	unlocked  bool
	playing   bool
	base      time.Duration // position at startedAt
	startedAt time.Time
	stop      chan struct{}
	cancel    context.CancelFunc

	wg sync.WaitGroup
}

// NewDeck creates an empty deck.
func NewDeck(cfg Config) *Deck {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}
	return &Deck{cfg: cfg}
}

// Load starts probing mediaRef in the background. Metadata or an error is
// reported through sink once the probe completes.
func (d *Deck) Load(ctx context.Context, mediaRef string, sink playback.Sink) error {
	if mediaRef == "" {
		return ErrNotLoaded
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.cancel != nil {
		d.cancel()
	}
	probeCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.sink = sink
	d.ready = false
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.probe(probeCtx, mediaRef)
	}()
	return nil
}

func (d *Deck) probe(ctx context.Context, mediaRef string) {
	src, err := Open(ctx, d.cfg.HTTPClient, mediaRef)
	if err != nil {
		d.fail(ctx, fmt.Errorf("open %s: %w", mediaRef, err))
		return
	}
	defer src.Close()

	info, err := Probe(src, src.Size())
	if err != nil {
		d.fail(ctx, fmt.Errorf("probe %s: %w", mediaRef, err))
		return
	}

	d.mu.Lock()
	d.info = info
	d.ready = true
	d.mu.Unlock()

	log.Debug().
		Str("media_ref", mediaRef).
		Int("bitrate", info.Bitrate).
		Dur("duration", info.Duration).
		Msg("media probed")

	d.emit(playback.Signal{Kind: playback.SignalMetadataReady, Duration: info.Duration})
}

func (d *Deck) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	d.emit(playback.Signal{Kind: playback.SignalError, Err: err})
}

// Seek moves the play head.
func (d *Deck) Seek(offset time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if offset < 0 {
		offset = 0
	}
	d.base = offset
	d.startedAt = d.cfg.Clock.Now()
	return nil
}

// Play starts advancing the play head.
func (d *Deck) Play(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.closed:
		return ErrClosed
	case !d.ready:
		return ErrNotLoaded
	case d.cfg.RequireGesture && !d.unlocked:
		return playback.ErrPlaybackStartDenied
	case d.playing:
		return nil
	}

	d.playing = true
	d.startedAt = d.cfg.Clock.Now()
	stop := make(chan struct{})
	d.stop = stop
	ticker := d.cfg.Clock.NewTicker(d.cfg.UpdateInterval)

	d.wg.Add(1)
	go d.run(stop, ticker)
	return nil
}

func (d *Deck) run(stop chan struct{}, ticker clockwork.Ticker) {
	defer d.wg.Done()
	defer ticker.Stop()

	d.emit(playback.Signal{Kind: playback.SignalPlayStateChanged, Playing: true})

	for {
		select {
		case <-stop:
			d.emit(playback.Signal{Kind: playback.SignalPlayStateChanged, Playing: false})
			return

		case <-ticker.Chan():
			pos, ended := d.advance(stop)
			d.emit(playback.Signal{Kind: playback.SignalPositionUpdate, Position: pos})
			if ended {
				d.emit(playback.Signal{Kind: playback.SignalPlayStateChanged, Playing: false})
				d.emit(playback.Signal{Kind: playback.SignalEnded})
				return
			}
		}
	}
}

// advance reads the play head and stops playback at the end of the media.
func (d *Deck) advance(stop chan struct{}) (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pos := d.positionLocked()
	if d.info.Duration <= 0 || pos < d.info.Duration {
		return pos, false
	}

	pos = d.info.Duration
	d.base = pos
	d.playing = false
	if d.stop == stop {
		d.stop = nil
	}
	return pos, true
}

func (d *Deck) positionLocked() time.Duration {
	if !d.playing {
		return d.base
	}
	return d.base + d.cfg.Clock.Since(d.startedAt)
}

// Position returns the current play head.
func (d *Deck) Position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.positionLocked()
}

// Pause freezes the play head.
func (d *Deck) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.pauseLocked()
	return nil
}

func (d *Deck) pauseLocked() {
	if !d.playing {
		return
	}
	d.base = d.positionLocked()
	d.playing = false
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
}

// Unlock records a user gesture.
func (d *Deck) Unlock() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unlocked = true
}

// Close stops playback, cancels any probe and drops the subscription.
func (d *Deck) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.pauseLocked()
	if d.cancel != nil {
		d.cancel()
	}
	d.sink = nil
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}

func (d *Deck) emit(sig playback.Signal) {
	d.mu.Lock()
	sink := d.sink
	d.mu.Unlock()
	if sink != nil {
		sink(sig)
	}
}
