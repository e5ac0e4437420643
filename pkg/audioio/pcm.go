package audioio

import "math"

// Resample converts audio from one sample rate to another using linear
// interpolation. Good enough for speech.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)
	if newLen == 0 {
		return []int16{}
	}

	result := make([]int16, newLen)
	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
			continue
		}
		s1 := float64(samples[srcIdx])
		s2 := float64(samples[srcIdx+1])
		result[i] = int16(s1 + frac*(s2-s1))
	}
	return result
}

// BytesToSamples converts little-endian PCM16 bytes to samples.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes converts samples to little-endian PCM16 bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}

// Float32ToSamples converts [-1,1] float samples to PCM16, clipping.
func Float32ToSamples(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, f := range in {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		out[i] = int16(f * 32767)
	}
	return out
}

// SamplesToFloat32 converts PCM16 to [-1,1] float samples.
func SamplesToFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / 32768
	}
	return out
}

// RMS returns the root mean square amplitude in PCM16 units (0..32767).
// Speech energy thresholds are expressed on this scale.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Level returns RMS normalized to 0..1 for meters.
func Level(samples []int16) float64 {
	return RMS(samples) / 32767
}

// prepare converts chunk to the channel layout and rate of cfg.
func prepare(chunk AudioChunk, cfg Config) []int16 {
	if chunk.Channels > 1 && cfg.Channels == 1 {
		chunk = chunk.Mono()
	}
	samples := chunk.Samples
	if chunk.SampleRate > 0 && chunk.SampleRate != cfg.SampleRate {
		samples = Resample(samples, chunk.SampleRate, cfg.SampleRate)
	}
	if cfg.Channels == 2 && chunk.Channels <= 1 {
		stereo := make([]int16, len(samples)*2)
		for i, s := range samples {
			stereo[i*2] = s
			stereo[i*2+1] = s
		}
		samples = stereo
	}
	return samples
}
