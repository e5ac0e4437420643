package video

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media/samplebuilder"

	"github.com/teslashibe/suradas/pkg/audioio"
	"github.com/teslashibe/suradas/pkg/camera"
	"github.com/teslashibe/suradas/pkg/debug"
)

// samplebuilder keeps this many packets before giving up on a gap.
const maxLate = 256

// rtpReader yields the next RTP packet of a track.
type rtpReader func() (*rtp.Packet, error)

// media routes remote tracks into the grabber and the audio stream.
type media struct {
	cfg     Config
	decoder *Decoder
	grabber *camera.Grabber
	audio   *audioio.StreamSource
	logger  *slog.Logger
}

// onTrack is installed as the PeerConnection OnTrack handler.
func (m *media) onTrack(ctx context.Context, pc *webrtc.PeerConnection, track *webrtc.TrackRemote) {
	mime := strings.ToLower(track.Codec().MimeType)
	m.logger.Info("remote track", "kind", track.Kind().String(), "codec", mime, "ssrc", uint32(track.SSRC()))

	read := func() (*rtp.Packet, error) {
		p, _, err := track.ReadRTP()
		return p, err
	}

	switch {
	case track.Kind() == webrtc.RTPCodecTypeVideo && mime == strings.ToLower(webrtc.MimeTypeH264):
		if m.grabber == nil || m.decoder == nil {
			return
		}
		pli := func() {
			err := pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}})
			if err != nil && !errors.Is(err, io.ErrClosedPipe) {
				m.logger.Debug("pli failed", "error", err)
			}
		}
		go m.runVideo(ctx, read, pli)

	case track.Kind() == webrtc.RTPCodecTypeAudio && mime == strings.ToLower(webrtc.MimeTypeOpus):
		if m.audio == nil {
			return
		}
		channels := int(track.Codec().Channels)
		if channels < 1 {
			channels = 1
		}
		dec, err := NewOpusDecoder(int(track.Codec().ClockRate), channels)
		if err != nil {
			m.logger.Warn("audio track ignored", "error", err)
			return
		}
		go func() {
			if err := runAudio(ctx, read, dec, int(track.Codec().ClockRate), channels, m.audio); err != nil && !isEOF(err) {
				m.logger.Warn("audio track ended", "error", err)
			}
		}()

	default:
		m.logger.Warn("unsupported track", "kind", track.Kind().String(), "codec", mime)
	}
}

// runVideo depacketizes H264, decodes keyframes and asks for a new one
// every KeyframeInterval.
func (m *media) runVideo(ctx context.Context, read rtpReader, requestKeyframe func()) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keyframes := make(chan []byte, 1)
	go m.decodeLoop(ctx, keyframes)

	if requestKeyframe != nil && m.cfg.KeyframeInterval > 0 {
		requestKeyframe()
		go func() {
			ticker := time.NewTicker(m.cfg.KeyframeInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					requestKeyframe()
				}
			}
		}()
	}

	if err := assemble(ctx, read, keyframes); err != nil && !isEOF(err) {
		m.logger.Warn("video track ended", "error", err)
	}
}

// assemble reads packets until EOF and sends each complete keyframe on
// out, replacing one that has not been picked up yet.
func assemble(ctx context.Context, read rtpReader, out chan []byte) error {
	builder := samplebuilder.New(maxLate, &codecs.H264Packet{}, 90000)
	var kf keyframer

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkt, err := read()
		if err != nil {
			return err
		}
		builder.Push(pkt)

		for s := builder.Pop(); s != nil; s = builder.Pop() {
			au, ok := kf.accessUnit(s.Data)
			if !ok {
				continue
			}
			debug.MediaLog("🎞️  keyframe %d bytes\n", len(au))
			select {
			case out <- au:
			default:
				select {
				case <-out:
				default:
				}
				out <- au
			}
		}
	}
}

func (m *media) decodeLoop(ctx context.Context, keyframes <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case au := <-keyframes:
			jpeg, err := m.decoder.Decode(ctx, au)
			switch {
			case err == nil:
				m.grabber.Put(jpeg)
			case errors.Is(err, ErrThrottled), errors.Is(err, ErrGrayFrame):
			default:
				m.logger.Debug("decode failed", "error", err)
			}
		}
	}
}

// OpusDecoder matches the decode method of the libopus binding.
type OpusDecoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// runAudio decodes Opus packets and pushes PCM into out.
func runAudio(ctx context.Context, read rtpReader, dec OpusDecoder, rate, channels int, out *audioio.StreamSource) error {
	// 120ms is the longest Opus frame.
	pcm := make([]int16, rate*120/1000*channels)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkt, err := read()
		if err != nil {
			return err
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		n, err := dec.Decode(pkt.Payload, pcm)
		if err != nil {
			debug.MediaLog("🔇 opus decode: %v\n", err)
			continue
		}
		samples := make([]int16, n*channels)
		copy(samples, pcm[:n*channels])
		out.Push(audioio.AudioChunk{Samples: samples, SampleRate: rate, Channels: channels})
	}
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, context.Canceled)
}
