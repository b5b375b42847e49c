package playback

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPlaybackStartDenied is returned when the platform refuses a
	// programmatic play. The user can retry with an explicit gesture.
	ErrPlaybackStartDenied = errors.New("playback start denied")

	// ErrMediaLoadFailure is reported when the media engine cannot load the
	// resource. The session stalls but stays alive.
	ErrMediaLoadFailure = errors.New("media load failure")
)

// SignalKind identifies an inbound media engine signal.
type SignalKind int

const (
	SignalMetadataReady SignalKind = iota
	SignalPositionUpdate
	SignalPlayStateChanged
	SignalEnded
	SignalError
)

func (k SignalKind) String() string {
	switch k {
	case SignalMetadataReady:
		return "metadata-ready"
	case SignalPositionUpdate:
		return "position-update"
	case SignalPlayStateChanged:
		return "play-state-changed"
	case SignalEnded:
		return "ended"
	case SignalError:
		return "error"
	default:
		return "unknown"
	}
}

// Signal is an event emitted by a media engine.
type Signal struct {
	Kind     SignalKind
	Position time.Duration // SignalPositionUpdate
	Duration time.Duration // SignalMetadataReady, zero when unknown
	Playing  bool          // SignalPlayStateChanged
	Err      error         // SignalError
}

// Sink receives engine signals. Engines may call it from any goroutine.
type Sink func(Signal)

// Engine is the media playback handle the synchronizer drives.
type Engine interface {
	// Load binds the media resource and subscribes sink to its signals.
	// It must not start playback.
	Load(ctx context.Context, mediaRef string, sink Sink) error
	Seek(offset time.Duration) error
	Play(ctx context.Context) error
	Pause() error
	// Close releases the handle and every subscription made by Load.
	Close() error
}

// GestureUnlocker is implemented by engines that gate playback on a user
// gesture, the way browsers gate autoplay.
type GestureUnlocker interface {
	Unlock()
}
