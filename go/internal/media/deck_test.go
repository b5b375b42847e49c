package media

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/listenparty/go/internal/playback"
)

const waitFor = 2 * time.Second

type collector struct {
	ch chan playback.Signal
}

func newCollector() *collector {
	return &collector{ch: make(chan playback.Signal, 256)}
}

func (c *collector) sink(sig playback.Signal) {
	c.ch <- sig
}

// next returns the first signal of the given kind, discarding others.
func (c *collector) next(t *testing.T, kind playback.SignalKind) playback.Signal {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case sig := <-c.ch:
			if sig.Kind == kind {
				return sig
			}
		case <-deadline:
			t.Fatalf("no %s signal", kind)
			return playback.Signal{}
		}
	}
}

func mediaServer(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/episode.mp3" {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "episode.mp3", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)
	return server
}

func loadedDeck(t *testing.T, cfg Config) (*Deck, *collector) {
	t.Helper()
	server := mediaServer(t, mp3Bytes(160_000, 0))
	cfg.HTTPClient = server.Client()

	d := NewDeck(cfg)
	t.Cleanup(func() { d.Close() })

	c := newCollector()
	require.NoError(t, d.Load(context.Background(), server.URL+"/episode.mp3", c.sink))
	meta := c.next(t, playback.SignalMetadataReady)
	assert.Equal(t, 10*time.Second, meta.Duration)
	return d, c
}

func TestDeckPlaysToTheEnd(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d, c := loadedDeck(t, Config{Clock: fc})

	require.NoError(t, d.Seek(2*time.Second))
	require.NoError(t, d.Play(context.Background()))
	assert.True(t, c.next(t, playback.SignalPlayStateChanged).Playing)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	fc.Advance(DefaultUpdateInterval)
	pos := c.next(t, playback.SignalPositionUpdate)
	assert.Equal(t, 2*time.Second+DefaultUpdateInterval, pos.Position)

	fc.Advance(10 * time.Second)
	c.next(t, playback.SignalEnded)
	assert.Equal(t, 10*time.Second, d.Position())
}

func TestDeckPauseFreezesPosition(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d, c := loadedDeck(t, Config{Clock: fc})

	require.NoError(t, d.Play(context.Background()))
	c.next(t, playback.SignalPlayStateChanged)

	fc.Advance(3 * time.Second)
	require.NoError(t, d.Pause())
	assert.False(t, c.next(t, playback.SignalPlayStateChanged).Playing)

	fc.Advance(5 * time.Second)
	assert.Equal(t, 3*time.Second, d.Position())

	require.NoError(t, d.Seek(7*time.Second))
	assert.Equal(t, 7*time.Second, d.Position())
}

func TestDeckGestureGate(t *testing.T) {
	d, _ := loadedDeck(t, Config{Clock: clockwork.NewFakeClock(), RequireGesture: true})

	assert.ErrorIs(t, d.Play(context.Background()), playback.ErrPlaybackStartDenied)
	d.Unlock()
	assert.NoError(t, d.Play(context.Background()))
	assert.NoError(t, d.Play(context.Background()), "play while playing is a no-op")
}

func TestDeckPlayBeforeMetadata(t *testing.T) {
	d := NewDeck(Config{Clock: clockwork.NewFakeClock()})
	assert.ErrorIs(t, d.Play(context.Background()), ErrNotLoaded)
	assert.ErrorIs(t, d.Load(context.Background(), "", func(playback.Signal) {}), ErrNotLoaded)
}

func TestDeckReportsLoadFailure(t *testing.T) {
	server := mediaServer(t, mp3Bytes(1000, 0))
	d := NewDeck(Config{Clock: clockwork.NewFakeClock(), HTTPClient: server.Client()})
	defer d.Close()

	c := newCollector()
	require.NoError(t, d.Load(context.Background(), server.URL+"/missing.mp3", c.sink))
	sig := c.next(t, playback.SignalError)
	assert.Error(t, sig.Err)
}

func TestDeckLoadsLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episode.mp3")
	require.NoError(t, os.WriteFile(path, mp3Bytes(80_000, 0), 0o644))

	d := NewDeck(Config{Clock: clockwork.NewFakeClock()})
	defer d.Close()

	c := newCollector()
	require.NoError(t, d.Load(context.Background(), "file://"+path, c.sink))
	assert.Equal(t, 5*time.Second, c.next(t, playback.SignalMetadataReady).Duration)
}

func TestDeckClose(t *testing.T) {
	d, _ := loadedDeck(t, Config{Clock: clockwork.NewFakeClock()})
	require.NoError(t, d.Play(context.Background()))

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Play(context.Background()), ErrClosed)
	assert.ErrorIs(t, d.Seek(time.Second), ErrClosed)
	assert.ErrorIs(t, d.Load(context.Background(), "x.mp3", nil), ErrClosed)
}

func TestRemoteSourceReadAt(t *testing.T) {
	data := mp3Bytes(5000, 0)
	server := mediaServer(t, data)

	src, err := Open(context.Background(), server.Client(), server.URL+"/episode.mp3")
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, int64(5000), src.Size())

	buf := make([]byte, 4)
	n, err := src.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, data[:4], buf)

	tail := make([]byte, 100)
	n, err = src.ReadAt(tail, 4950)
	assert.Equal(t, 50, n)
	assert.ErrorIs(t, err, io.EOF)
}
