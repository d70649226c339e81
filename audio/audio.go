// Package audio turns raw MP3 bytes into the mono PCM windows the
// embedding model expects. Decoding happens per row inside the pipeline
// workers, so audio is only ever materialized for rows being embedded.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
)

var ErrEmptyAudio = errors.New("empty audio")

// Clip is a decoded, resampled waveform.
type Clip struct {
	Samples    []float32
	SampleRate int
}

// Duration is the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Decode decodes MP3 bytes to mono float32 PCM at the decoder's native
// rate. go-mp3 always emits 16-bit stereo frames; the two channels are
// averaged.
func Decode(data []byte) (Clip, error) {
	if len(data) == 0 {
		return Clip{}, ErrEmptyAudio
	}
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Clip{}, fmt.Errorf("mp3 decode: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return Clip{}, fmt.Errorf("mp3 read: %w", err)
	}
	// 4 bytes per frame: left int16, right int16.
	n := len(raw) / 4
	if n == 0 {
		return Clip{}, ErrEmptyAudio
	}
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		l := int16(raw[4*i]) | int16(raw[4*i+1])<<8
		r := int16(raw[4*i+2]) | int16(raw[4*i+3])<<8
		samples[i] = (float32(l) + float32(r)) / 2 / 32768
	}
	return Clip{Samples: samples, SampleRate: dec.SampleRate()}, nil
}

// Resample converts a clip to the target rate with linear
// interpolation. Clips already at the target rate are returned as-is.
func Resample(c Clip, rate int) Clip {
	if c.SampleRate == rate || c.SampleRate == 0 || len(c.Samples) == 0 {
		return c
	}
	ratio := float64(c.SampleRate) / float64(rate)
	n := int(float64(len(c.Samples)) / ratio)
	if n == 0 {
		n = 1
	}
	out := make([]float32, n)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(c.Samples)-1 {
			out[i] = c.Samples[len(c.Samples)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = c.Samples[j]*(1-frac) + c.Samples[j+1]*frac
	}
	return Clip{Samples: out, SampleRate: rate}
}
