package web

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/suradas/pkg/assistant"
	"github.com/teslashibe/suradas/pkg/audioio"
	"github.com/teslashibe/suradas/pkg/camera"
	"github.com/teslashibe/suradas/pkg/command"
	"github.com/teslashibe/suradas/pkg/history"
	"github.com/teslashibe/suradas/pkg/hub"
	"github.com/teslashibe/suradas/pkg/video"
)

// EventType tags messages on /ws/events.
type EventType string

const (
	EventReply   EventType = "reply"
	EventHistory EventType = "history"
)

// Event is a message pushed to /ws/events clients.
type Event struct {
	Type    EventType        `json:"type"`
	Reply   *assistant.Reply `json:"reply,omitempty"`
	History []history.Entry  `json:"history,omitempty"`
}

// CommandRequest is the body of POST /api/command
type CommandRequest struct {
	Text string `json:"text"`
}

// CaptureRequest is the body of POST /api/capture
type CaptureRequest struct {
	Kind string `json:"kind"`
}

// TranslateRequest is the body of POST /api/translate
type TranslateRequest struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// SearchRequest is the body of POST /api/search
type SearchRequest struct {
	Query string `json:"query"`
}

// OfferRequest carries a browser SDP offer.
type OfferRequest struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// ListenResponse is returned by POST /api/listen.
type ListenResponse struct {
	Heard string           `json:"heard,omitempty"`
	Reply *assistant.Reply `json:"reply,omitempty"`
	Error string           `json:"error,omitempty"`
}

// ctx carries the request's session to the assistant.
func (s *Server) ctx(c *fiber.Ctx) context.Context {
	return assistant.WithSession(c.UserContext(), sessionOf(c))
}

// handleCommand dispatches typed text.
func (s *Server) handleCommand(c *fiber.Ctx) error {
	var req CommandRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	ctx := s.ctx(c)
	r := s.assistant.Submit(ctx, sessionOf(c), req.Text, history.SourceText)
	s.pushHistory(ctx, sessionOf(c))
	return c.JSON(r)
}

// handleListen records one utterance and dispatches it as a voice command.
func (s *Server) handleListen(c *fiber.Ctx) error {
	ctx := s.ctx(c)
	heard, err := s.assistant.Listen(ctx)
	if err != nil {
		return c.JSON(ListenResponse{Error: err.Error()})
	}
	r := s.assistant.Submit(ctx, sessionOf(c), heard, history.SourceVoice)
	s.pushHistory(ctx, sessionOf(c))
	return c.JSON(ListenResponse{Heard: heard, Reply: &r})
}

// handleCapture describes the latest frame for a vision command.
func (s *Server) handleCapture(c *fiber.Ctx) error {
	var req CaptureRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	kind := command.ParseKind(req.Kind)
	if !kind.NeedsFrame() {
		return fiber.NewError(fiber.StatusBadRequest, "kind must be object or currency")
	}
	return c.JSON(s.assistant.Capture(s.ctx(c), kind))
}

// handleTranslate translates text into the requested language.
func (s *Server) handleTranslate(c *fiber.Ctx) error {
	var req TranslateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Lang) == "" {
		return fiber.NewError(fiber.StatusBadRequest, command.MsgMissingLanguage)
	}
	return c.JSON(s.assistant.Translate(s.ctx(c), req.Text, req.Lang))
}

// handleSearch runs a grounded search.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return c.JSON(s.assistant.Search(s.ctx(c), req.Query))
}

// handleLocation describes the server's approximate location.
func (s *Server) handleLocation(c *fiber.Ctx) error {
	return c.JSON(s.assistant.Locate(s.ctx(c)))
}

// handleHistory returns the session's commands.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	entries, err := s.assistant.History(c.UserContext(), sessionOf(c))
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	return c.JSON(entries)
}

// handleExamples returns the example commands shown at start.
func (s *Server) handleExamples(c *fiber.Ctx) error {
	return c.JSON(command.Examples())
}

// handleHealth reports wired capabilities and model reachability.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	st := s.assistant.Status(c.UserContext())
	if !st.Healthy {
		c.Status(fiber.StatusServiceUnavailable)
	}
	return c.JSON(st)
}

// handleFrame returns the latest camera frame as JPEG.
func (s *Server) handleFrame(c *fiber.Ctx) error {
	if s.grabber == nil {
		return fiber.NewError(fiber.StatusNotFound, command.MsgNoFrame)
	}
	frame, err := s.grabber.Latest()
	if err != nil {
		if errors.Is(err, camera.ErrNoFrame) || errors.Is(err, camera.ErrStale) {
			return fiber.NewError(fiber.StatusNotFound, command.MsgNoFrame)
		}
		return err
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(frame)
}

// handleOffer answers a browser WebRTC offer for camera and microphone.
func (s *Server) handleOffer(c *fiber.Ctx) error {
	if s.ingest == nil {
		return fiber.NewError(fiber.StatusNotFound, "webrtc ingest not enabled")
	}
	var req OfferRequest
	if err := c.BodyParser(&req); err != nil || req.SDP == "" {
		return fiber.NewError(fiber.StatusBadRequest, "sdp required")
	}
	answer, err := s.ingest.Offer(c.UserContext(), webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  req.SDP,
	})
	if err != nil {
		if errors.Is(err, video.ErrClosed) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return err
	}
	return c.JSON(OfferRequest{SDP: answer.SDP, Type: answer.Type.String()})
}

// pushHistory sends the session's history to its event clients.
func (s *Server) pushHistory(ctx context.Context, session string) {
	entries, err := s.assistant.History(ctx, session)
	if err != nil {
		s.logger.Warn("history lookup failed", "session", session, "error", err)
		return
	}
	s.eventHub.SendJSON(session, Event{Type: EventHistory, History: entries})
}

func wsSession(c *websocket.Conn) string {
	id, _ := c.Locals(sessionLocal).(string)
	return id
}

// handleEventsWS streams replies and history for the browser's session.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	session := wsSession(c)
	client := hub.NewClient(s.eventHub, c, hub.WithSession(session))

	// Send current history
	if entries, err := s.assistant.History(context.Background(), session); err == nil && len(entries) > 0 {
		s.eventHub.SendJSON(session, Event{Type: EventHistory, History: entries})
	}
	client.Run()
}

// handleCameraWS streams JPEG preview frames.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c, hub.WithSession(wsSession(c))).Run()
}

// handleAudioWS streams spoken clips to the browser and accepts its
// microphone as little-endian PCM16 mono at ?rate= Hz (default 16000).
func (s *Server) handleAudioWS(c *websocket.Conn) {
	rate, err := strconv.Atoi(c.Query("rate", "16000"))
	if err != nil || rate <= 0 {
		rate = 16000
	}
	opts := []hub.ClientOption{hub.WithSession(wsSession(c))}
	if s.mic != nil {
		opts = append(opts, hub.WithHandler(func(_ *hub.Client, msg hub.Message) {
			if msg.Type != hub.BinaryMessage || len(msg.Data) < 2 {
				return
			}
			s.mic.Push(audioio.AudioChunk{
				Samples:    audioio.BytesToSamples(msg.Data),
				SampleRate: rate,
				Channels:   1,
			})
		}))
	}
	hub.NewClient(s.audioHub, c, opts...).Run()
}
