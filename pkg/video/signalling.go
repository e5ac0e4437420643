package video

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/suradas/pkg/audioio"
	"github.com/teslashibe/suradas/pkg/camera"
)

// SignallingConfig points at a GStreamer webrtcsink signalling server.
type SignallingConfig struct {
	// URL is the signalling websocket, e.g. ws://camera.local:8443.
	URL string
	// Producer is the meta "name" of the stream to consume. Empty picks
	// the only producer when exactly one is listed.
	Producer         string
	HandshakeTimeout time.Duration
	TrackTimeout     time.Duration
}

// DefaultSignallingConfig returns default timeouts.
func DefaultSignallingConfig() SignallingConfig {
	return SignallingConfig{
		HandshakeTimeout: 10 * time.Second,
		TrackTimeout:     15 * time.Second,
	}
}

// signalMsg is the union of gst-plugins-rs signalling messages we use.
type signalMsg struct {
	Type      string     `json:"type"`
	PeerID    string     `json:"peerId,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	Producers []producer `json:"producers,omitempty"`
	SDP       *sdpMsg    `json:"sdp,omitempty"`
	ICE       *iceMsg    `json:"ice,omitempty"`
}

type producer struct {
	ID   string            `json:"id"`
	Meta map[string]string `json:"meta"`
}

type sdpMsg struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type iceMsg struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

// SignallingClient consumes a network camera's stream via webrtcsink
// signalling and feeds decoded frames to a grabber.
type SignallingClient struct {
	cfg    SignallingConfig
	api    *webrtc.API
	media  *media
	logger *slog.Logger

	ws   *websocket.Conn
	wsMu sync.Mutex
	pc   *webrtc.PeerConnection

	peerID     string
	producerID string

	sessMu    sync.Mutex
	sessionID string

	trackReady chan struct{}
	trackOnce  sync.Once
	cancel     context.CancelFunc
}

// NewSignallingClient prepares a client; Connect starts it.
func NewSignallingClient(cfg Config, grabber *camera.Grabber, audio *audioio.StreamSource, logger *slog.Logger) (*SignallingClient, error) {
	if cfg.Signalling.URL == "" {
		return nil, fmt.Errorf("video: signalling url is required")
	}
	def := DefaultSignallingConfig()
	if cfg.Signalling.HandshakeTimeout <= 0 {
		cfg.Signalling.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.Signalling.TrackTimeout <= 0 {
		cfg.Signalling.TrackTimeout = def.TrackTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "video.signalling", "url", cfg.Signalling.URL)

	api, err := newAPI()
	if err != nil {
		return nil, err
	}
	dec, err := NewDecoder(cfg.Decoder)
	if err != nil {
		return nil, err
	}

	return &SignallingClient{
		cfg:        cfg.Signalling,
		api:        api,
		media:      &media{cfg: cfg, decoder: dec, grabber: grabber, audio: audio, logger: logger},
		logger:     logger,
		trackReady: make(chan struct{}),
	}, nil
}

// Connect performs the handshake, starts the session and waits for the
// video track to arrive.
func (c *SignallingClient) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return fmt.Errorf("video: signalling connect: %w", err)
	}
	if err := c.waitForWelcome(); err != nil {
		return fmt.Errorf("video: welcome: %w", err)
	}
	if err := c.findProducer(); err != nil {
		return err
	}
	c.logger.Info("found producer", "producer", c.producerID, "peer", c.peerID)

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	if err := c.createPeerConnection(runCtx); err != nil {
		return fmt.Errorf("video: peer connection: %w", err)
	}
	if err := c.send(signalMsg{Type: "startSession", PeerID: c.producerID}); err != nil {
		return fmt.Errorf("video: start session: %w", err)
	}

	go c.handleSignalling(runCtx)

	timer := time.NewTimer(c.cfg.TrackTimeout)
	defer timer.Stop()
	select {
	case <-c.trackReady:
		fmt.Println("  ✅ Video connected!")
		return nil
	case <-timer.C:
		return ErrTrackTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *SignallingClient) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}
	c.ws = ws
	return nil
}

func (c *SignallingClient) read(timeout time.Duration) (signalMsg, error) {
	var msg signalMsg
	if timeout > 0 {
		c.ws.SetReadDeadline(time.Now().Add(timeout))
		defer c.ws.SetReadDeadline(time.Time{})
	}
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("decode %q: %w", data, err)
	}
	return msg, nil
}

func (c *SignallingClient) send(msg signalMsg) error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (c *SignallingClient) waitForWelcome() error {
	msg, err := c.read(c.cfg.HandshakeTimeout)
	if err != nil {
		return err
	}
	if msg.Type != "welcome" {
		return fmt.Errorf("%w: expected welcome, got %q", ErrUnexpectedSignal, msg.Type)
	}
	c.peerID = msg.PeerID
	return nil
}

func (c *SignallingClient) findProducer() error {
	if err := c.send(signalMsg{Type: "list"}); err != nil {
		return err
	}
	msg, err := c.read(c.cfg.HandshakeTimeout)
	if err != nil {
		return err
	}
	if msg.Type != "list" {
		return fmt.Errorf("%w: expected list, got %q", ErrUnexpectedSignal, msg.Type)
	}

	if c.cfg.Producer == "" && len(msg.Producers) == 1 {
		c.producerID = msg.Producers[0].ID
		return nil
	}
	for _, p := range msg.Producers {
		if p.Meta["name"] == c.cfg.Producer {
			c.producerID = p.ID
			return nil
		}
	}
	return fmt.Errorf("%w: %q not among %d producers", ErrNoProducer, c.cfg.Producer, len(msg.Producers))
}

func (c *SignallingClient) createPeerConnection(ctx context.Context) error {
	pc, err := c.api.NewPeerConnection(peerConfig(c.media.cfg))
	if err != nil {
		return err
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			c.trackOnce.Do(func() { close(c.trackReady) })
		}
		c.media.onTrack(ctx, pc, track)
	})
	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			c.sendICECandidate(candidate)
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.logger.Info("peer connection state", "state", state.String())
	})

	c.pc = pc
	return nil
}

func (c *SignallingClient) handleSignalling(ctx context.Context) {
	for {
		msg, err := c.read(0)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("signalling closed", "error", err)
			}
			return
		}

		switch msg.Type {
		case "sessionStarted":
			c.sessMu.Lock()
			c.sessionID = msg.SessionID
			c.sessMu.Unlock()
		case "peer":
			if err := c.handlePeerMessage(msg); err != nil {
				c.logger.Warn("peer message", "error", err)
			}
		case "endSession":
			c.logger.Info("session ended by producer")
			return
		}
	}
}

func (c *SignallingClient) handlePeerMessage(msg signalMsg) error {
	if msg.SDP != nil && msg.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP.SDP}
		if err := c.pc.SetRemoteDescription(offer); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}
		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := c.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set local description: %w", err)
		}
		return c.send(signalMsg{
			Type:      "peer",
			SessionID: c.session(),
			SDP:       &sdpMsg{Type: answer.Type.String(), SDP: answer.SDP},
		})
	}

	if msg.ICE != nil {
		return c.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     msg.ICE.Candidate,
			SDPMid:        msg.ICE.SDPMid,
			SDPMLineIndex: msg.ICE.SDPMLineIndex,
		})
	}
	return nil
}

func (c *SignallingClient) session() string {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	return c.sessionID
}

func (c *SignallingClient) sendICECandidate(candidate *webrtc.ICECandidate) {
	session := c.session()
	if session == "" {
		return
	}
	init := candidate.ToJSON()
	err := c.send(signalMsg{
		Type:      "peer",
		SessionID: session,
		ICE:       &iceMsg{Candidate: init.Candidate, SDPMid: init.SDPMid, SDPMLineIndex: init.SDPMLineIndex},
	})
	if err != nil {
		c.logger.Debug("send ice candidate", "error", err)
	}
}

// Close ends the session and closes both connections.
func (c *SignallingClient) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.pc != nil {
		c.pc.Close()
	}
	if c.ws != nil {
		c.send(signalMsg{Type: "endSession", SessionID: c.session()})
		return c.ws.Close()
	}
	return nil
}
