// Package refresher polls the coordinator for a party record while the party
// is still being created.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/listenparty/go/internal/models"
)

// DefaultInterval is the creation-poll period.
const DefaultInterval = 5 * time.Second

// ErrEndTimeChanged is returned when the coordinator reports an end time
// that differs from one already observed in this session.
var ErrEndTimeChanged = errors.New("party end time changed after it was set")

// Fetcher loads a party record from the coordinator.
type Fetcher interface {
	Get(ctx context.Context, id uuid.UUID) (models.Party, error)
}

// Result is the outcome of one poll.
type Result struct {
	Party models.Party
	Err   error
}

// Stats counts poll outcomes.
type Stats struct {
	Polls    uint64
	Skipped  uint64
	Failures uint64
}

// Refresher owns the poll ticker for a single party. Results are delivered
// on Results; the owner selects on Ticks and calls Poll from its loop.
type Refresher struct {
	fetcher  Fetcher
	clock    clockwork.Clock
	partyID  uuid.UUID
	interval time.Duration
	timeout  time.Duration

	ticker  clockwork.Ticker
	results chan Result
	cancel  context.CancelFunc
	ctx     context.Context
	wg      sync.WaitGroup

	inFlight atomic.Bool
	polls    atomic.Uint64
	skipped  atomic.Uint64
	failures atomic.Uint64

	mu      sync.Mutex
	seenEnd *time.Time
}

// New creates a stopped refresher.
func New(fetcher Fetcher, clock clockwork.Clock, partyID uuid.UUID, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresher{
		fetcher:  fetcher,
		clock:    clock,
		partyID:  partyID,
		interval: interval,
		timeout:  interval,
		results:  make(chan Result, 1),
	}
}

// Start acquires the ticker. Fetches started by Poll are bound to ctx.
func (r *Refresher) Start(ctx context.Context) {
	if r.ticker != nil {
		return
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.ticker = r.clock.NewTicker(r.interval)

	log.Debug().
		Str("party_id", r.partyID.String()).
		Dur("interval", r.interval).
		Msg("creation poll started")
}

// Ticks returns the poll tick channel, or nil when stopped.
func (r *Refresher) Ticks() <-chan time.Time {
	if r.ticker == nil {
		return nil
	}
	return r.ticker.Chan()
}

// Results returns the channel poll outcomes are delivered on.
func (r *Refresher) Results() <-chan Result {
	return r.results
}

// Running reports whether the ticker is held.
func (r *Refresher) Running() bool {
	return r.ticker != nil
}

// Poll starts a fetch unless one is already in flight, in which case the
// tick is skipped rather than queued. It reports whether a fetch started.
func (r *Refresher) Poll() bool {
	if r.ticker == nil {
		return false
	}
	if !r.inFlight.CompareAndSwap(false, true) {
		r.skipped.Add(1)
		log.Debug().Str("party_id", r.partyID.String()).Msg("previous poll still in flight - skipping tick")
		return false
	}
	r.polls.Add(1)

	ctx := r.ctx
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
		party, err := r.fetcher.Get(fetchCtx, r.partyID)
		cancel()

		if err == nil {
			err = r.observe(party)
		}
		if err != nil {
			r.failures.Add(1)
		}
		r.inFlight.Store(false)

		select {
		case r.results <- Result{Party: party, Err: err}:
		case <-ctx.Done():
		}
	}()
	return true
}

// observe enforces that a non-nil end time never changes once seen.
func (r *Refresher) observe(p models.Party) error {
	if p.EndTime == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seenEnd == nil {
		end := *p.EndTime
		r.seenEnd = &end
		return nil
	}
	if !r.seenEnd.Equal(*p.EndTime) {
		return fmt.Errorf("%w: was %d, now %d", ErrEndTimeChanged, r.seenEnd.Unix(), p.EndTime.Unix())
	}
	return nil
}

// Seed records an end time observed outside the poll, e.g. the initial load.
func (r *Refresher) Seed(p models.Party) error {
	return r.observe(p)
}

// Stats returns poll counters.
func (r *Refresher) Stats() Stats {
	return Stats{
		Polls:    r.polls.Load(),
		Skipped:  r.skipped.Load(),
		Failures: r.failures.Load(),
	}
}

// Stop releases the ticker, cancels any in-flight fetch and waits for it to
// return. It is safe to call more than once.
func (r *Refresher) Stop() {
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	r.ticker = nil
	r.cancel()
	r.wg.Wait()

	log.Debug().Str("party_id", r.partyID.String()).Msg("creation poll stopped")
}
