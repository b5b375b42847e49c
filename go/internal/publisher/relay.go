package publisher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/listenparty/go/internal/events"
	"github.com/mcdev12/listenparty/go/internal/lifecycle"
)

const (
	DefaultQueueSize = 64
	flushTimeout     = 2 * time.Second
)

// Relay turns controller notifications into events and publishes them off
// the controller loop.
type Relay struct {
	lifecycle.NopObserver

	publisher EventPublisher
	queue     chan events.Event
	dropped   atomic.Uint64
	published atomic.Uint64
	failed    atomic.Uint64
}

func NewRelay(publisher EventPublisher, queueSize int) *Relay {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Relay{
		publisher: publisher,
		queue:     make(chan events.Event, queueSize),
	}
}

// OnTransition implements lifecycle.Observer.
func (r *Relay) OnTransition(partyID uuid.UUID, t lifecycle.Transition) {
	var (
		eventType events.EventType
		payload   any
	)

	switch t.To {
	case lifecycle.StateScheduled:
		eventType = events.PartyScheduled
		p := events.PartyScheduledPayload{
			PartyID:     partyID.String(),
			Name:        t.Party.Name,
			StartTime:   t.Party.StartTime,
			MediaURL:    t.Party.MediaURL,
			DurationSec: int64(t.Party.Duration() / time.Second),
		}
		if t.Party.EndTime != nil {
			p.EndTime = *t.Party.EndTime
		}
		payload = p
	case lifecycle.StateLive:
		eventType = events.PartyLive
		payload = events.PartyLivePayload{PartyID: partyID.String(), StartTime: t.Party.StartTime, LiveAt: t.At}
	case lifecycle.StateFinished:
		eventType = events.PartyFinished
		payload = events.PartyFinishedPayload{PartyID: partyID.String(), FinishedAt: t.At, Duration: t.Party.Duration().String()}
	default:
		return
	}

	r.enqueue(eventType, partyID, t.At, payload)
}

// OnPlayback implements lifecycle.Observer.
func (r *Relay) OnPlayback(partyID uuid.UUID, e lifecycle.PlaybackEvent) {
	switch e.Outcome {
	case lifecycle.PlaybackStarted:
		r.enqueue(events.PlaybackStarted, partyID, e.At, events.PlaybackStartedPayload{
			PartyID:   partyID.String(),
			OffsetSec: int64(e.Position / time.Second),
			StartedAt: e.At,
		})
	case lifecycle.PlaybackFailed:
		reason := ""
		if e.Err != nil {
			reason = e.Err.Error()
		}
		r.enqueue(events.PlaybackFailed, partyID, e.At, events.PlaybackFailedPayload{
			PartyID:  partyID.String(),
			Reason:   reason,
			FailedAt: e.At,
		})
	}
}

func (r *Relay) enqueue(eventType events.EventType, partyID uuid.UUID, at time.Time, payload any) {
	ev, err := events.New(eventType, partyID, at, payload)
	if err != nil {
		log.Error().Err(err).Str("party_id", partyID.String()).Msg("failed to build event")
		return
	}

	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(1)
		log.Warn().
			Str("party_id", partyID.String()).
			Str("event_type", string(eventType)).
			Msg("event queue full - dropping event")
	}
}

// Run publishes queued events until ctx is cancelled, then flushes what is
// left with a short deadline.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-r.queue:
			r.publish(ctx, ev)
		case <-ctx.Done():
			r.flush()
			return nil
		}
	}
}

func (r *Relay) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		select {
		case ev := <-r.queue:
			r.publish(ctx, ev)
		default:
			return
		}
	}
}

func (r *Relay) publish(ctx context.Context, ev events.Event) {
	if err := r.publisher.Publish(ctx, ev); err != nil {
		r.failed.Add(1)
		log.Error().
			Err(err).
			Str("event_id", ev.EventID.String()).
			Str("event_type", string(ev.EventType)).
			Msg("failed to publish event")
		return
	}
	r.published.Add(1)
}

// Stats returns published, failed and dropped counts.
func (r *Relay) Stats() (published, failed, dropped uint64) {
	return r.published.Load(), r.failed.Load(), r.dropped.Load()
}
