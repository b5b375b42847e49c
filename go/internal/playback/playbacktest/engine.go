// Package playbacktest provides a recording media engine for tests.
package playbacktest

import (
	"context"
	"sync"
	"time"

	"github.com/mcdev12/listenparty/go/internal/playback"
)

// Engine records every command it receives and lets tests emit signals.
type Engine struct {
	mu sync.Mutex

	// PlayErr, when set, is returned by Play until cleared or the engine is
	// unlocked with RequireGesture set.
	PlayErr error
	// RequireGesture makes Play fail with ErrPlaybackStartDenied until Unlock.
	RequireGesture bool
	// LoadErr is returned by Load.
	LoadErr error

	mediaRef string
	sink     playback.Sink
	unlocked bool
	closed   bool

	Seeks  []time.Duration
	Plays  int
	Pauses int
	Loads  int
	Closes int
}

// Load implements playback.Engine.
func (e *Engine) Load(_ context.Context, mediaRef string, sink playback.Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Loads++
	if e.LoadErr != nil {
		return e.LoadErr
	}
	e.mediaRef = mediaRef
	e.sink = sink
	return nil
}

// Seek implements playback.Engine.
func (e *Engine) Seek(offset time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Seeks = append(e.Seeks, offset)
	return nil
}

// Play implements playback.Engine.
func (e *Engine) Play(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Plays++
	if e.RequireGesture && !e.unlocked {
		return playback.ErrPlaybackStartDenied
	}
	return e.PlayErr
}

// Pause implements playback.Engine.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Pauses++
	return nil
}

// Close implements playback.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Closes++
	e.closed = true
	e.sink = nil
	return nil
}

// Unlock implements playback.GestureUnlocker.
func (e *Engine) Unlock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unlocked = true
}

// SetPlayErr replaces the error returned by Play.
func (e *Engine) SetPlayErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.PlayErr = err
}

// Emit delivers a signal to the subscribed sink, if any. It reports whether
// a sink was subscribed.
func (e *Engine) Emit(sig playback.Signal) bool {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if sink == nil {
		return false
	}
	sink(sig)
	return true
}

// MediaRef returns the last bound media reference.
func (e *Engine) MediaRef() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mediaRef
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// SeekLog returns a copy of every seek offset received.
func (e *Engine) SeekLog() []time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]time.Duration(nil), e.Seeks...)
}

// Counts returns loads, plays, pauses and closes.
func (e *Engine) Counts() (loads, plays, pauses, closes int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Loads, e.Plays, e.Pauses, e.Closes
}
