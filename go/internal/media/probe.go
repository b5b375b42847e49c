package media

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNoFrame is returned when no MPEG audio frame header can be found.
var ErrNoFrame = errors.New("no valid MPEG frame found")

// probeWindow is how much audio is scanned for the first frame header.
const probeWindow = 8192

// Info is what the probe learns from the first frame of an MP3 resource.
type Info struct {
	Bitrate    int // bits per second
	SampleRate int
	Offset     int64 // start of audio data after any ID3v2 tag
	Size       int64
	Duration   time.Duration
}

// Bitrates in kbps, indexed [mpeg-1 | mpeg-2/2.5][layer I..III][index].
var bitrateTable = [2][3][16]int{
	{
		{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0},
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0},
		{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},
	},
	{
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
	},
}

var sampleRateTable = [3][4]int{
	{44100, 48000, 32000, 0}, // MPEG-1
	{22050, 24000, 16000, 0}, // MPEG-2
	{11025, 12000, 8000, 0},  // MPEG-2.5
}

// Probe estimates bitrate and duration from the first frame header and the
// total size of the resource. Only a few KB are read.
func Probe(r io.ReaderAt, size int64) (Info, error) {
	var header [10]byte
	if _, err := r.ReadAt(header[:], 0); err != nil {
		return Info{}, fmt.Errorf("read header: %w", err)
	}

	offset := int64(0)
	if string(header[:3]) == "ID3" {
		// Synchsafe integer, 7 bits per byte
		tagSize := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
		offset = 10 + tagSize
	}
	if offset >= size {
		return Info{}, ErrNoFrame
	}

	window := int64(probeWindow)
	if size-offset < window {
		window = size - offset
	}
	buf := make([]byte, window)
	n, err := r.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return Info{}, fmt.Errorf("read frames: %w", err)
	}
	buf = buf[:n]

	for i := 0; i+4 <= len(buf); i++ {
		if buf[i] != 0xFF || buf[i+1]&0xE0 != 0xE0 {
			continue
		}
		bitrate, sampleRate, ok := parseFrameHeader(binary.BigEndian.Uint32(buf[i : i+4]))
		if !ok {
			continue
		}

		audioBits := (size - offset) * 8
		return Info{
			Bitrate:    bitrate,
			SampleRate: sampleRate,
			Offset:     offset,
			Size:       size,
			Duration:   time.Duration(float64(audioBits) / float64(bitrate) * float64(time.Second)),
		}, nil
	}

	return Info{}, ErrNoFrame
}

func parseFrameHeader(hdr uint32) (bitrate, sampleRate int, ok bool) {
	versionBits := (hdr >> 19) & 0x03
	layerBits := (hdr >> 17) & 0x03
	bitrateIdx := (hdr >> 12) & 0x0F
	sampleIdx := (hdr >> 10) & 0x03

	if bitrateIdx == 0 || bitrateIdx == 15 || sampleIdx == 3 || layerBits == 0 {
		return 0, 0, false
	}

	// version bits: 0=2.5, 1=reserved, 2=2, 3=1
	var versionIdx, sampleVersion int
	switch versionBits {
	case 3:
		versionIdx, sampleVersion = 0, 0
	case 2:
		versionIdx, sampleVersion = 1, 1
	case 0:
		versionIdx, sampleVersion = 1, 2
	default:
		return 0, 0, false
	}

	// layer bits: 1=III, 2=II, 3=I
	layerIdx := 3 - int(layerBits)

	bitrate = bitrateTable[versionIdx][layerIdx][bitrateIdx] * 1000
	sampleRate = sampleRateTable[sampleVersion][sampleIdx]
	if bitrate == 0 || sampleRate == 0 {
		return 0, 0, false
	}
	return bitrate, sampleRate, true
}
