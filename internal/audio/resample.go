package audio

// Downmix collapses interleaved multi-channel PCM to mono by averaging the
// channels of each frame.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}

	frames := len(samples) / channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		mono[i] = int16(sum / channels)
	}

	return mono
}

// Resample converts mono PCM from srcRate to dstRate by linear-average
// decimation: each output sample is the average of the source samples whose
// time window it covers. Exact and deterministic; no filtering beyond the
// average.
func Resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	outLen := len(samples) * dstRate / srcRate
	if outLen == 0 {
		return nil
	}

	out := make([]int16, outLen)
	for i := 0; i < outLen; i++ {
		start := i * len(samples) / outLen
		end := (i + 1) * len(samples) / outLen
		if end <= start {
			end = start + 1
		}

		var sum int
		for j := start; j < end && j < len(samples); j++ {
			sum += int(samples[j])
		}
		out[i] = int16(sum / (end - start))
	}

	return out
}
