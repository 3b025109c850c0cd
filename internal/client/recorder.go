package client

import (
	"errors"

	"github.com/npezzotti/go-multilingo/internal/audio"
)

var ErrEmptyRecording = errors.New("recording has no samples")

// Recorder accumulates raw PCM frames from a capture device and packages
// them into a single canonical unit on Finalize. It is not safe for
// concurrent use; a capture loop owns it.
type Recorder struct {
	srcRate  int
	channels int
	samples  []int16
}

func NewRecorder(srcRate, channels int) *Recorder {
	return &Recorder{
		srcRate:  srcRate,
		channels: channels,
	}
}

// AppendFrame adds one interleaved PCM frame to the current recording.
func (r *Recorder) AppendFrame(frame []int16) {
	r.samples = append(r.samples, frame...)
}

// Len reports the number of samples buffered so far, across all channels.
func (r *Recorder) Len() int {
	return len(r.samples)
}

// Finalize converts the buffered recording to a 16 kHz mono WAV unit and
// resets the recorder for the next utterance.
func (r *Recorder) Finalize() ([]byte, error) {
	if len(r.samples) == 0 {
		return nil, ErrEmptyRecording
	}

	samples := r.samples
	r.samples = nil

	samples = audio.Downmix(samples, r.channels)
	samples = audio.Resample(samples, r.srcRate, audio.CanonicalSampleRate)

	return audio.EncodeWav(samples, audio.CanonicalFormat()), nil
}

// Reset discards any buffered samples.
func (r *Recorder) Reset() {
	r.samples = nil
}
