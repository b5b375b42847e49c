// Package playback keeps a local media handle in step with a party schedule.
// It seeks to the elapsed offset on the live edge or on a late join, and
// detects the end of the party from the playback position or from natural
// completion.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Schedule is the part of a party record the synchronizer needs.
type Schedule struct {
	Start time.Time
	End   *time.Time
}

// Length returns end - start in whole seconds, or zero when end is unknown.
func (s Schedule) Length() time.Duration {
	if s.End == nil {
		return 0
	}
	return time.Duration(s.End.Unix()-s.Start.Unix()) * time.Second
}

// Offset returns the elapsed time since start at now, clamped at zero and
// truncated to whole seconds.
func (s Schedule) Offset(now time.Time) time.Duration {
	elapsed := now.Unix() - s.Start.Unix()
	if elapsed < 0 {
		elapsed = 0
	}
	return time.Duration(elapsed) * time.Second
}

// State is the process-local playback state.
type State struct {
	Ready      bool          `json:"ready"`
	Playing    bool          `json:"playing"`
	UserJoined bool          `json:"user_joined"`
	Finished   bool          `json:"finished"`
	Position   time.Duration `json:"position"`
	Duration   time.Duration `json:"duration"`
	LastError  error         `json:"-"`
}

// Synchronizer owns the media engine for one session.
//
// All methods except State are expected to run on the owner's event loop.
// Finish is additionally safe to call from any goroutine.
type Synchronizer struct {
	engine   Engine
	clock    clockwork.Clock
	partyID  uuid.UUID
	schedule Schedule
	onFinish func()

	mu      sync.Mutex
	state   State
	bound   bool
	live    bool
	pending bool // playback requested before metadata was ready

	finishOnce sync.Once
}

// NewSynchronizer creates an unbound synchronizer. onFinish is called once,
// the first time the party is detected as finished.
func NewSynchronizer(engine Engine, clock clockwork.Clock, partyID uuid.UUID, schedule Schedule, onFinish func()) *Synchronizer {
	if onFinish == nil {
		onFinish = func() {}
	}
	return &Synchronizer{
		engine:   engine,
		clock:    clock,
		partyID:  partyID,
		schedule: schedule,
		onFinish: onFinish,
	}
}

// Initialize binds the media resource. It never starts playback.
func (s *Synchronizer) Initialize(ctx context.Context, mediaRef string, sink Sink) error {
	s.mu.Lock()
	if s.bound {
		s.mu.Unlock()
		return nil
	}
	s.bound = true
	s.mu.Unlock()

	if err := s.engine.Load(ctx, mediaRef, sink); err != nil {
		err = fmt.Errorf("%w: %v", ErrMediaLoadFailure, err)
		s.mu.Lock()
		s.state.LastError = err
		s.mu.Unlock()
		log.Error().
			Err(err).
			Str("party_id", s.partyID.String()).
			Str("media_ref", mediaRef).
			Msg("failed to bind media")
		return err
	}

	log.Debug().
		Str("party_id", s.partyID.String()).
		Str("media_ref", mediaRef).
		Msg("media bound")
	return nil
}

// MarkJoined records the user's intent to listen. If the party is already
// live this starts playback at the current offset (late join).
func (s *Synchronizer) MarkJoined(ctx context.Context) {
	s.mu.Lock()
	s.state.UserJoined = true
	shouldPlay := s.live && !s.state.Finished
	s.mu.Unlock()

	s.unlockGesture()

	log.Info().
		Str("party_id", s.partyID.String()).
		Bool("live", shouldPlay).
		Msg("user joined")

	if shouldPlay {
		s.trigger(ctx)
	}
}

// OnLiveEdge is called once when the scheduled start is reached.
func (s *Synchronizer) OnLiveEdge(ctx context.Context) {
	s.mu.Lock()
	s.live = true
	shouldPlay := s.state.UserJoined && !s.state.Finished
	s.mu.Unlock()

	if shouldPlay {
		s.trigger(ctx)
	}
}

// Retry re-attempts playback after a denied start. It is an explicit user
// gesture and therefore also counts as joining.
func (s *Synchronizer) Retry(ctx context.Context) {
	s.mu.Lock()
	s.state.UserJoined = true
	shouldPlay := s.live && !s.state.Finished && !s.state.Playing
	s.mu.Unlock()

	s.unlockGesture()

	if shouldPlay {
		s.trigger(ctx)
	}
}

func (s *Synchronizer) unlockGesture() {
	if u, ok := s.engine.(GestureUnlocker); ok {
		u.Unlock()
	}
}

// trigger seeks to the live offset and starts playback.
func (s *Synchronizer) trigger(ctx context.Context) {
	s.mu.Lock()
	if !s.bound || s.state.Finished {
		s.mu.Unlock()
		return
	}
	if !s.state.Ready {
		s.pending = true
		s.mu.Unlock()
		log.Debug().Str("party_id", s.partyID.String()).Msg("playback deferred until metadata is ready")
		return
	}
	s.pending = false
	s.mu.Unlock()

	offset := s.schedule.Offset(s.clock.Now())

	err := s.engine.Seek(offset)
	if err == nil {
		err = s.engine.Play(ctx)
	}

	s.mu.Lock()
	if err != nil {
		if !errors.Is(err, ErrPlaybackStartDenied) && !errors.Is(err, ErrMediaLoadFailure) {
			err = fmt.Errorf("%w: %v", ErrPlaybackStartDenied, err)
		}
		s.state.Playing = false
		s.state.LastError = err
	} else {
		s.state.Playing = true
		s.state.Position = offset
		s.state.LastError = nil
	}
	s.mu.Unlock()

	if err != nil {
		log.Warn().
			Err(err).
			Str("party_id", s.partyID.String()).
			Dur("offset", offset).
			Msg("playback failed, waiting for user retry")
		return
	}

	log.Info().
		Str("party_id", s.partyID.String()).
		Dur("offset", offset).
		Msg("playback started at live offset")
}

// HandleSignal processes one inbound media engine signal.
func (s *Synchronizer) HandleSignal(ctx context.Context, sig Signal) {
	switch sig.Kind {
	case SignalMetadataReady:
		s.mu.Lock()
		s.state.Ready = true
		if sig.Duration > 0 {
			s.state.Duration = sig.Duration
		}
		resume := s.pending && s.live && !s.state.Finished
		s.mu.Unlock()

		log.Debug().
			Str("party_id", s.partyID.String()).
			Dur("duration", sig.Duration).
			Msg("media metadata ready")

		if resume {
			s.trigger(ctx)
		}

	case SignalPositionUpdate:
		s.mu.Lock()
		s.state.Position = sig.Position
		length := s.schedule.Length()
		reached := s.live && s.schedule.End != nil && sig.Position >= length
		s.mu.Unlock()

		if reached {
			log.Info().
				Str("party_id", s.partyID.String()).
				Dur("position", sig.Position).
				Dur("length", length).
				Msg("party end reached by position")
			s.Finish()
		}

	case SignalPlayStateChanged:
		s.mu.Lock()
		s.state.Playing = sig.Playing && !s.state.Finished
		s.mu.Unlock()

	case SignalEnded:
		s.mu.Lock()
		live := s.live
		s.mu.Unlock()

		if live {
			log.Info().Str("party_id", s.partyID.String()).Msg("media ended")
			s.Finish()
		}

	case SignalError:
		err := sig.Err
		if err == nil {
			err = ErrMediaLoadFailure
		} else if !errors.Is(err, ErrMediaLoadFailure) {
			err = fmt.Errorf("%w: %v", ErrMediaLoadFailure, err)
		}

		s.mu.Lock()
		s.state.Playing = false
		s.state.LastError = err
		s.mu.Unlock()

		log.Error().
			Err(err).
			Str("party_id", s.partyID.String()).
			Msg("media engine reported an error")

	default:
		log.Warn().
			Str("party_id", s.partyID.String()).
			Int("kind", int(sig.Kind)).
			Msg("unknown media signal - ignoring")
	}
}

// Finish marks the party finished, pauses playback and notifies the owner.
// Only the first call has any effect.
func (s *Synchronizer) Finish() {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		s.state.Finished = true
		s.state.Playing = false
		s.pending = false
		bound := s.bound
		s.mu.Unlock()

		if bound {
			if err := s.engine.Pause(); err != nil {
				log.Warn().Err(err).Str("party_id", s.partyID.String()).Msg("failed to pause media on finish")
			}
		}

		log.Info().Str("party_id", s.partyID.String()).Msg("party finished")
		s.onFinish()
	})
}

// State returns a copy of the current playback state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Bound reports whether a media resource has been bound.
func (s *Synchronizer) Bound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// Close releases the media handle.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	bound := s.bound
	s.mu.Unlock()

	if !bound {
		return nil
	}
	if err := s.engine.Close(); err != nil {
		return fmt.Errorf("failed to release media engine: %w", err)
	}
	return nil
}
