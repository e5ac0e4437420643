package video

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/suradas/pkg/audioio"
	"github.com/teslashibe/suradas/pkg/camera"
)

// Ingest answers browser WebRTC offers. The browser sends its camera as
// H264 and its microphone as Opus; frames land in the grabber and audio in
// the stream source. One peer is active at a time; a new offer replaces
// the previous connection.
type Ingest struct {
	api    *webrtc.API
	cfg    Config
	media  *media
	logger *slog.Logger

	mu     sync.Mutex
	pc     *webrtc.PeerConnection
	cancel context.CancelFunc
	closed bool
}

// NewIngest creates a browser ingest. grabber or audio may be nil to
// ignore that kind of track. A missing ffmpeg disables video decoding
// but not audio.
func NewIngest(cfg Config, grabber *camera.Grabber, audio *audioio.StreamSource, logger *slog.Logger) (*Ingest, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "video.ingest")

	api, err := newAPI()
	if err != nil {
		return nil, err
	}

	var dec *Decoder
	if grabber != nil {
		dec, err = NewDecoder(cfg.Decoder)
		if err != nil {
			logger.Warn("video decoding disabled", "error", err)
		}
	}

	return &Ingest{
		api:    api,
		cfg:    cfg,
		logger: logger,
		media:  &media{cfg: cfg, decoder: dec, grabber: grabber, audio: audio, logger: logger},
	}, nil
}

// newAPI builds a pion API with the default codecs (H264, VP8, Opus, ...)
// and the default interceptors (NACK, RTCP reports).
func newAPI() (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("video: register codecs: %w", err)
	}
	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("video: register interceptors: %w", err)
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i)), nil
}

func peerConfig(cfg Config) webrtc.Configuration {
	var pc webrtc.Configuration
	if len(cfg.ICEServers) > 0 {
		pc.ICEServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}
	return pc
}

// Offer applies the browser's offer and returns the complete answer with
// gathered ICE candidates, so no trickle channel is needed.
func (in *Ingest) Offer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return nil, ErrClosed
	}
	in.closeLocked()
	in.mu.Unlock()

	pc, err := in.api.NewPeerConnection(peerConfig(in.cfg))
	if err != nil {
		return nil, fmt.Errorf("video: new peer connection: %w", err)
	}

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, fmt.Errorf("video: add %s transceiver: %w", kind, err)
		}
	}

	trackCtx, cancel := context.WithCancel(context.Background())
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		in.media.onTrack(trackCtx, pc, track)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		in.logger.Info("peer connection state", "state", state.String())
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			cancel()
		}
	})

	fail := func(step string, err error) (*webrtc.SessionDescription, error) {
		cancel()
		pc.Close()
		return nil, fmt.Errorf("video: %s: %w", step, err)
	}

	if err := pc.SetRemoteDescription(offer); err != nil {
		return fail("set remote description", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail("create answer", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail("set local description", err)
	}

	gatherCtx := ctx
	if in.cfg.GatherTimeout > 0 {
		var gcancel context.CancelFunc
		gatherCtx, gcancel = context.WithTimeout(ctx, in.cfg.GatherTimeout)
		defer gcancel()
	}
	select {
	case <-gathered:
	case <-gatherCtx.Done():
		in.logger.Warn("ice gathering incomplete, answering with partial candidates")
	}

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return fail("answer", ErrClosed)
	}
	in.pc = pc
	in.cancel = cancel
	in.mu.Unlock()

	return pc.LocalDescription(), nil
}

// Connected reports whether a browser peer is currently connected.
func (in *Ingest) Connected() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.pc != nil && in.pc.ConnectionState() == webrtc.PeerConnectionStateConnected
}

func (in *Ingest) closeLocked() {
	if in.cancel != nil {
		in.cancel()
		in.cancel = nil
	}
	if in.pc != nil {
		if err := in.pc.Close(); err != nil {
			in.logger.Debug("close peer connection", "error", err)
		}
		in.pc = nil
	}
}

// Close tears down the active peer.
func (in *Ingest) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.closed = true
	in.closeLocked()
	return nil
}
