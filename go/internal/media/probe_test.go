package media

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mp3Bytes builds size bytes of MPEG-1 Layer III at 128 kbps / 44.1 kHz,
// optionally prefixed with an ID3v2 tag of tagSize bytes.
func mp3Bytes(size int, tagSize int) []byte {
	data := make([]byte, 0, size)
	if tagSize > 0 {
		data = append(data, 'I', 'D', '3', 4, 0, 0,
			byte(tagSize>>21&0x7F), byte(tagSize>>14&0x7F), byte(tagSize>>7&0x7F), byte(tagSize&0x7F))
		data = append(data, make([]byte, tagSize)...)
	}
	data = append(data, 0xFF, 0xFB, 0x90, 0x00)
	return append(data, make([]byte, size-len(data))...)
}

func TestProbe(t *testing.T) {
	// 160000 bytes at 128 kbps is ten seconds.
	data := mp3Bytes(160_000, 0)
	info, err := Probe(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	assert.Equal(t, 128_000, info.Bitrate)
	assert.Equal(t, 44100, info.SampleRate)
	assert.Equal(t, int64(0), info.Offset)
	assert.Equal(t, 10*time.Second, info.Duration)
}

func TestProbeSkipsID3Tag(t *testing.T) {
	data := mp3Bytes(160_000+1010, 1000)
	info, err := Probe(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	assert.Equal(t, int64(1010), info.Offset)
	assert.Equal(t, 10*time.Second, info.Duration)
}

func TestProbeRejectsNonAudio(t *testing.T) {
	data := bytes.Repeat([]byte("not audio "), 100)
	_, err := Probe(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrNoFrame)

	_, err = Probe(bytes.NewReader([]byte("ID3")), 3)
	assert.Error(t, err)
}

func TestParseFrameHeader(t *testing.T) {
	tests := []struct {
		name       string
		hdr        uint32
		bitrate    int
		sampleRate int
		ok         bool
	}{
		{name: "mpeg1 layer3 128k", hdr: 0xFFFB9000, bitrate: 128_000, sampleRate: 44100, ok: true},
		{name: "mpeg2 layer3 64k 22k", hdr: 0xFFF38000, bitrate: 64_000, sampleRate: 22050, ok: true},
		{name: "free bitrate", hdr: 0xFFFB0000},
		{name: "bad bitrate", hdr: 0xFFFBF000},
		{name: "reserved sample rate", hdr: 0xFFFB9C00},
		{name: "reserved version", hdr: 0xFFEB9000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bitrate, sampleRate, ok := parseFrameHeader(tt.hdr)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.bitrate, bitrate)
			assert.Equal(t, tt.sampleRate, sampleRate)
		})
	}
}

func TestParseContentRangeTotal(t *testing.T) {
	total, err := parseContentRangeTotal("bytes 0-0/160000")
	require.NoError(t, err)
	assert.Equal(t, int64(160000), total)

	_, err = parseContentRangeTotal("bytes 0-0/*")
	assert.Error(t, err)
	_, err = parseContentRangeTotal("garbage")
	assert.Error(t, err)
}
