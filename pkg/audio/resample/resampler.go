// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Interpolates across chunk boundaries by carrying the last input frame
package resample

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
	lastSample []int32 // one sample per channel
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastSample: make([]int32, channels),
	}
}

// frame returns sample ch of frame i, where frame 0 is the carried frame when primed
func (r *Resampler) frame(input []int32, i, ch int) int32 {
	if r.primed {
		if i == 0 {
			return r.lastSample[ch]
		}
		i--
	}
	return input[i*r.channels+ch]
}

// Resample converts interleaved input at inputRate into output at outputRate
// and returns the number of samples written.
func (r *Resampler) Resample(input []int32, output []int32) int {
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return 0
	}

	frames := inputFrames
	if r.primed {
		frames++
	}
	outputFrames := len(output) / r.channels

	outIdx := 0
	for outIdx < outputFrames {
		idx := int(r.position)
		if idx+1 >= frames {
			break
		}

		frac := r.position - float64(idx)
		for ch := 0; ch < r.channels; ch++ {
			s1 := float64(r.frame(input, idx, ch))
			s2 := float64(r.frame(input, idx+1, ch))
			output[outIdx*r.channels+ch] = int32(s1*(1.0-frac) + s2*frac)
		}

		outIdx++
		r.position += r.ratio
	}

	// The last input frame becomes frame 0 of the next call
	r.position -= float64(frames - 1)
	if r.position < 0 {
		r.position = 0
	}
	copy(r.lastSample, input[(inputFrames-1)*r.channels:])
	r.primed = true

	return outIdx * r.channels
}

// Reset forgets carried state, for example after a seek
func (r *Resampler) Reset() {
	r.position = 0.0
	r.primed = false
	for i := range r.lastSample {
		r.lastSample[i] = 0
	}
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}

// InputSamplesNeeded calculates how many input samples are needed to produce output samples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(float64(outputFrames) * r.ratio)
	return inputFrames * r.channels
}
