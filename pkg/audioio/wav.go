package audioio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// ErrInvalidWAV is returned when DecodeWAV is given something else.
var ErrInvalidWAV = errors.New("audioio: invalid WAV data")

// EncodeWAV wraps PCM16 samples in a RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate, channels int) ([]byte, error) {
	// Emulate a file in RAM; the encoder seeks back to patch the header.
	file := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(file, sampleRate, 16, channels, 1)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: channels},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}
	return io.ReadAll(file.Reader())
}

// DecodeWAV reads a PCM16 WAV file and returns its samples, rate and
// channel count.
func DecodeWAV(data []byte) ([]int16, int, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, 0, ErrInvalidWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if dec.BitDepth != 16 {
		return nil, 0, 0, fmt.Errorf("%w: %d-bit samples", ErrInvalidWAV, dec.BitDepth)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return samples, int(dec.SampleRate), int(dec.NumChans), nil
}
