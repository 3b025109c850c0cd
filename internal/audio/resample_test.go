package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownmix(t *testing.T) {
	t.Run("stereo to mono", func(t *testing.T) {
		samples := []int16{100, 200, -100, -200}
		mono := Downmix(samples, 2)
		assert.Equal(t, []int16{150, -150}, mono)
	})

	t.Run("mono passthrough", func(t *testing.T) {
		samples := []int16{1, 2, 3}
		assert.Equal(t, samples, Downmix(samples, 1))
	})
}

func TestResample(t *testing.T) {
	t.Run("same rate passthrough", func(t *testing.T) {
		samples := []int16{1, 2, 3, 4}
		assert.Equal(t, samples, Resample(samples, 16000, 16000))
	})

	t.Run("two to one decimation averages pairs", func(t *testing.T) {
		samples := []int16{0, 100, 200, 300}
		out := Resample(samples, 32000, 16000)
		assert.Equal(t, []int16{50, 250}, out)
	})

	t.Run("output length scales with rate ratio", func(t *testing.T) {
		samples := make([]int16, 48000)
		out := Resample(samples, 48000, 16000)
		assert.Len(t, out, 16000)
	})

	t.Run("constant signal survives decimation", func(t *testing.T) {
		samples := make([]int16, 441)
		for i := range samples {
			samples[i] = 1000
		}

		out := Resample(samples, 44100, 16000)
		for _, s := range out {
			assert.Equal(t, int16(1000), s)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Resample(nil, 44100, 16000))
	})
}
