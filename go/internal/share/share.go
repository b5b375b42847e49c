// Package share copies a session locator to the user's clipboard and keeps a
// short-lived "copied" confirmation.
package share

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ConfirmationWindow is how long the copied confirmation stays visible.
const ConfirmationWindow = 3 * time.Second

// Clipboard receives text to copy.
type Clipboard interface {
	Copy(text string) error
}

// OSC52 writes the OSC 52 escape sequence most terminal emulators interpret
// as a clipboard write, including over SSH.
type OSC52 struct {
	W io.Writer
}

func (o OSC52) Copy(text string) error {
	seq := "\x1b]52;c;" + base64.StdEncoding.EncodeToString([]byte(text)) + "\a"
	if _, err := io.WriteString(o.W, seq); err != nil {
		return fmt.Errorf("failed to write clipboard sequence: %w", err)
	}
	return nil
}

// Locator returns the shareable address of a party.
func Locator(baseURL, partyID string) string {
	return strings.TrimRight(baseURL, "/") + "/parties/" + partyID
}

// Sharer copies one locator and owns the confirmation timer. It has no
// effect on the party lifecycle.
type Sharer struct {
	clipboard Clipboard
	clock     clockwork.Clock
	locator   string
	onChange  func(copied bool)

	mu     sync.Mutex
	timer  clockwork.Timer
	gen    int
	copied bool
	closed bool
}

// NewSharer creates a sharer for locator. onChange, if set, is called when
// the confirmation appears and when it expires.
func NewSharer(clipboard Clipboard, clock clockwork.Clock, locator string, onChange func(copied bool)) *Sharer {
	if onChange == nil {
		onChange = func(bool) {}
	}
	return &Sharer{
		clipboard: clipboard,
		clock:     clock,
		locator:   locator,
		onChange:  onChange,
	}
}

// Share copies the locator and (re)starts the confirmation window.
func (s *Sharer) Share() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.clipboard.Copy(s.locator); err != nil {
		log.Warn().Err(err).Str("locator", s.locator).Msg("failed to copy party link")
		return err
	}

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.copied = true
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(ConfirmationWindow, func() { s.expire(gen) })
	s.mu.Unlock()

	log.Debug().Str("locator", s.locator).Msg("party link copied")
	s.onChange(true)
	return nil
}

func (s *Sharer) expire(gen int) {
	s.mu.Lock()
	if gen != s.gen || !s.copied || s.closed {
		s.mu.Unlock()
		return
	}
	s.copied = false
	s.timer = nil
	s.mu.Unlock()

	s.onChange(false)
}

// Copied reports whether the confirmation is showing.
func (s *Sharer) Copied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copied
}

// Close stops the confirmation timer.
func (s *Sharer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.copied = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
