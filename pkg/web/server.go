// Package web serves the browser UI and JSON API for the assistant.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/suradas/pkg/assistant"
	"github.com/teslashibe/suradas/pkg/audioio"
	"github.com/teslashibe/suradas/pkg/camera"
	"github.com/teslashibe/suradas/pkg/hub"
	"github.com/teslashibe/suradas/pkg/metrics"
	"github.com/teslashibe/suradas/pkg/speech"
)

//go:embed static
var staticFiles embed.FS

// Config holds server settings.
type Config struct {
	Addr string

	// AllowOrigins is passed to the CORS middleware.
	AllowOrigins string

	// PreviewInterval limits how often camera frames are pushed to
	// /ws/camera clients.
	PreviewInterval time.Duration

	// AccessLog enables the request logger middleware.
	AccessLog bool

	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8501",
		AllowOrigins:    "*",
		PreviewInterval: 200 * time.Millisecond,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Offerer answers browser WebRTC offers.
type Offerer interface {
	Offer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
}

// Option configures a Server.
type Option func(*Server)

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Option {
	return func(s *Server) { s.cfg = cfg }
}

// WithCamera streams preview frames from g to /ws/camera.
func WithCamera(g *camera.Grabber) Option {
	return func(s *Server) { s.grabber = g }
}

// WithIngest accepts browser camera offers on /api/camera/offer.
func WithIngest(o Offerer) Option {
	return func(s *Server) { s.ingest = o }
}

// WithMicrophone feeds PCM sent on /ws/audio into src.
func WithMicrophone(src *audioio.StreamSource) Option {
	return func(s *Server) { s.mic = src }
}

// WithSpeaker forwards spoken clips to /ws/audio.
func WithSpeaker(sp *speech.Speaker) Option {
	return func(s *Server) { s.speaker = sp }
}

// WithMetrics mounts /metrics and counts websocket clients.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// Server is the web UI server
type Server struct {
	cfg       Config
	app       *fiber.App
	assistant *assistant.Assistant
	grabber   *camera.Grabber
	ingest    Offerer
	mic       *audioio.StreamSource
	speaker   *speech.Speaker
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// Hubs for websocket broadcast
	eventHub  *hub.Hub
	cameraHub *hub.Hub
	audioHub  *hub.Hub

	lastPreview atomic.Int64
	unsubscribe func()
}

// NewServer creates the server and registers its routes.
func NewServer(a *assistant.Assistant, opts ...Option) *Server {
	s := &Server{
		cfg:       DefaultConfig(),
		assistant: a,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web.server")
	s.eventHub = hub.New("events", hub.WithMetrics(s.metrics))
	s.cameraHub = hub.New("camera", hub.WithMetrics(s.metrics))
	s.audioHub = hub.New("audio", hub.WithMetrics(s.metrics))

	app := fiber.New(fiber.Config{
		AppName:               "suradas",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	if s.cfg.AccessLog {
		app.Use(logger.New())
	}
	app.Use(cors.New(cors.Config{AllowOrigins: s.cfg.AllowOrigins}))
	app.Use(s.sessionMiddleware)

	api := app.Group("/api")
	api.Post("/command", s.handleCommand)
	api.Post("/listen", s.handleListen)
	api.Post("/capture", s.handleCapture)
	api.Post("/translate", s.handleTranslate)
	api.Post("/search", s.handleSearch)
	api.Get("/location", s.handleLocation)
	api.Get("/history", s.handleHistory)
	api.Get("/examples", s.handleExamples)
	api.Get("/health", s.handleHealth)
	api.Get("/camera/frame", s.handleFrame)
	api.Post("/camera/offer", s.handleOffer)

	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))
	app.Get("/ws/audio", websocket.New(s.handleAudioWS))

	root, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	app.Use("/", filesystem.New(filesystem.Config{Root: http.FS(root)}))

	s.app = app
	s.wire()
	return s
}

// wire connects the assistant, camera and speaker to the hubs.
func (s *Server) wire() {
	s.assistant.OnReply(func(r assistant.Reply) {
		if err := s.eventHub.SendJSON(r.Session, Event{Type: EventReply, Reply: &r}); err != nil {
			s.logger.Warn("reply broadcast failed", "error", err)
		}
	})

	if s.grabber != nil {
		s.unsubscribe = s.grabber.Subscribe(s.preview)
	}

	if s.speaker != nil {
		s.speaker.OnClip(func(c speech.Clip) {
			if len(c.WAV) > 0 {
				s.audioHub.BroadcastBinary(c.WAV)
			}
		})
	}
}

// preview forwards a frame to camera clients at most once per
// PreviewInterval.
func (s *Server) preview(jpeg []byte) {
	now := time.Now().UnixNano()
	last := s.lastPreview.Load()
	if s.cfg.PreviewInterval > 0 && now-last < int64(s.cfg.PreviewInterval) {
		return
	}
	if !s.lastPreview.CompareAndSwap(last, now) {
		return
	}
	if s.cameraHub.ClientCount() == 0 {
		return
	}
	s.cameraHub.BroadcastBinary(jpeg)
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hubs without listening. Run calls it; tests driving
// App() directly call it themselves.
func (s *Server) Start(ctx context.Context) {
	go s.eventHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	go s.audioHub.Run(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("🌐 Web UI: http://%s\n", displayAddr(s.cfg.Addr))
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web: listen: %w", err)
	case <-ctx.Done():
	}

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	return nil
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

// errorHandler renders errors as JSON.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
