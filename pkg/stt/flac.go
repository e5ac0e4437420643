package stt

import (
	"crypto/md5"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
	"github.com/orcaman/writerseeker"

	"github.com/teslashibe/suradas/pkg/audioio"
)

const flacBlockSize = 4096

// EncodeFLAC encodes mono PCM16 as a verbatim FLAC stream.
func EncodeFLAC(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}

	info := &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     1,
		BitsPerSample: 16,
		NSamples:      uint64(len(samples)),
		MD5sum:        md5.Sum(audioio.SamplesToBytes(samples)),
	}

	out := &writerseeker.WriterSeeker{}
	enc, err := flac.NewEncoder(out, info)
	if err != nil {
		return nil, fmt.Errorf("creating FLAC encoder: %w", err)
	}

	for i, num := 0, uint64(0); i < len(samples); i, num = i+flacBlockSize, num+1 {
		end := min(i+flacBlockSize, len(samples))
		block := make([]int32, end-i)
		for j, s := range samples[i:end] {
			block[j] = int32(s)
		}

		f := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(len(block)),
				SampleRate:        uint32(sampleRate),
				Channels:          frame.ChannelsMono,
				BitsPerSample:     16,
				Num:               num,
			},
			Subframes: []*frame.Subframe{{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   block,
				NSamples:  len(block),
			}},
		}
		if err := enc.WriteFrame(f); err != nil {
			return nil, fmt.Errorf("writing FLAC frame: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing FLAC encoder: %w", err)
	}
	return io.ReadAll(out.Reader())
}
