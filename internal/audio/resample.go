package audio

// downmixInterleaved averages interleaved channels into mono.
func downmixInterleaved(x []float32, channels int) []float32 {
	if channels <= 1 {
		return x
	}
	frames := len(x) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += x[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// resampleLinear does simple linear interpolation between sample rates.
// Good enough for speech fed to a recognizer; not for playback quality.
func resampleLinear(x []float32, from, to int) []float32 {
	if from == to || len(x) == 0 {
		return x
	}
	n := int(float64(len(x)) * float64(to) / float64(from))
	if n <= 0 {
		return nil
	}
	out := make([]float32, n)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(x)-1 {
			out[i] = x[len(x)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = x[j]*(1-frac) + x[j+1]*frac
	}
	return out
}
