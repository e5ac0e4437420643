// Package app builds the assistant and its media pipeline from
// configuration. Every command of the CLI shares this wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/suradas/internal/config"
	"github.com/teslashibe/suradas/pkg/assistant"
	"github.com/teslashibe/suradas/pkg/audioio"
	"github.com/teslashibe/suradas/pkg/camera"
	"github.com/teslashibe/suradas/pkg/detection"
	"github.com/teslashibe/suradas/pkg/geo"
	"github.com/teslashibe/suradas/pkg/history"
	"github.com/teslashibe/suradas/pkg/inference"
	"github.com/teslashibe/suradas/pkg/metrics"
	"github.com/teslashibe/suradas/pkg/speech"
	"github.com/teslashibe/suradas/pkg/stt"
	"github.com/teslashibe/suradas/pkg/translate"
	"github.com/teslashibe/suradas/pkg/tts"
	"github.com/teslashibe/suradas/pkg/vad"
	"github.com/teslashibe/suradas/pkg/video"
)

// Options select which parts of the pipeline a command needs.
type Options struct {
	// Media enables the camera, microphone and speaker.
	Media bool
	// Metrics creates a Prometheus registry.
	Metrics bool
	// ImagePath overrides the camera with a still image.
	ImagePath string
	// Speak enables spoken replies.
	Speak bool
}

// App holds the wired assistant and everything it owns.
type App struct {
	Config    *config.Config
	Assistant *assistant.Assistant
	Metrics   *metrics.Metrics
	History   history.Store

	// Grabber is set when frames arrive from a webcam or WebRTC.
	Grabber *camera.Grabber
	// Ingest answers browser camera offers when camera.source is webrtc.
	Ingest *video.Ingest
	// RemoteMic receives browser or WebRTC microphone audio.
	RemoteMic *audioio.StreamSource

	Speaker  *speech.Speaker
	Listener *speech.Listener

	webcam     *camera.Webcam
	signalling *video.SignallingClient

	logger  *slog.Logger
	closers []func() error
	wg      sync.WaitGroup
}

// New wires the application from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger.With("component", "app")}
	if opts.ImagePath != "" {
		cfg.Camera.Source = "file"
		cfg.Camera.ImagePath = opts.ImagePath
	}
	if opts.Metrics {
		a.Metrics = metrics.New()
	}

	model, err := a.initModel()
	if err != nil {
		return nil, err
	}

	store, err := a.initHistory(ctx)
	if err != nil {
		a.Shutdown()
		return nil, err
	}
	a.History = store

	deps := assistant.Deps{
		Model:   model,
		Locator: geo.NewClient(geo.WithURL(cfg.Geo.URL), geo.WithLogger(logger)),
		History: store,
		Metrics: a.Metrics,
		Camera:  camera.None{},
	}
	if model != nil {
		deps.Translator = translate.NewModel(model)
	}
	if cfg.Translate.Backend == "google" {
		g, err := translate.NewGoogle(ctx, translate.WithAPIKey(cfg.Translate.APIKey), translate.WithLogger(logger))
		if err != nil {
			a.logger.Warn("Cloud Translation unavailable, using the model", "error", err)
		} else {
			deps.Translator = g
		}
	}

	if opts.Media || cfg.Camera.Source == "file" {
		src, err := a.initCamera()
		if err != nil {
			a.Shutdown()
			return nil, err
		}
		deps.Camera = src
		deps.Detector = a.initDetector()
	}

	if opts.Media {
		a.initAudio(ctx, opts.Speak)
		deps.Listener = a.Listener
		deps.Speaker = a.Speaker
	}

	acfg := assistant.DefaultConfig()
	acfg.Speak = opts.Speak && a.Speaker.Enabled()
	a.Assistant = assistant.New(deps, assistant.WithConfig(acfg), assistant.WithLogger(logger))
	return a, nil
}

// initModel builds Gemini with an Anthropic fallback. Neither key is
// required; commands that need the model then fail with a clear reply.
func (a *App) initModel() (inference.Provider, error) {
	cfg := a.Config
	var providers []inference.Provider

	if cfg.Gemini.APIKey != "" {
		g, err := inference.NewGemini(
			inference.WithAPIKey(cfg.Gemini.APIKey),
			inference.WithModel(cfg.Gemini.Model),
			inference.WithVisionModel(cfg.Gemini.VisionModel),
			inference.WithMaxTokens(cfg.Gemini.MaxTokens),
			inference.WithTemperature(cfg.Gemini.Temperature),
			inference.WithTimeout(cfg.Gemini.Timeout),
			inference.WithLogger(a.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		providers = append(providers, g)
	}
	if cfg.Anthropic.APIKey != "" {
		c, err := inference.NewAnthropic(
			inference.WithAPIKey(cfg.Anthropic.APIKey),
			inference.WithModel(cfg.Anthropic.Model),
			inference.WithLogger(a.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("anthropic: %w", err)
		}
		providers = append(providers, c)
	}

	switch len(providers) {
	case 0:
		a.logger.Warn("no model API key set (GEMINI_API_KEY or ANTHROPIC_API_KEY)")
		return nil, nil
	case 1:
		a.closers = append(a.closers, providers[0].Close)
		return providers[0], nil
	}
	chain, err := inference.NewChainWithLogger(a.logger, providers...)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, chain.Close)
	return chain, nil
}

func (a *App) initHistory(ctx context.Context) (history.Store, error) {
	cfg := a.Config.History
	var (
		store history.Store
		err   error
	)
	switch cfg.Backend {
	case "file":
		store, err = history.NewFile(cfg.Dir)
	case "redis":
		opts := []history.RedisOption{history.WithPrefix(cfg.Prefix)}
		if cfg.TTL > 0 {
			opts = append(opts, history.WithTTL(cfg.TTL))
		}
		store, err = history.NewRedis(ctx, cfg.RedisURL, opts...)
	default:
		store = history.NewMemory()
	}
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", cfg.Backend, err)
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

func (a *App) cameraConfig() camera.Config {
	c := camera.DefaultConfig()
	c.Device = a.Config.Camera.Device
	c.Width = a.Config.Camera.Width
	c.Height = a.Config.Camera.Height
	c.Framerate = a.Config.Camera.FPS
	return c
}

func (a *App) initCamera() (camera.Source, error) {
	cfg := a.Config.Camera
	camCfg := a.cameraConfig()
	if problems := camCfg.Validate(); len(problems) > 0 {
		return nil, &config.ConfigError{Field: "camera", Message: strings.Join(problems, "; ")}
	}

	switch cfg.Source {
	case "none":
		return camera.None{}, nil
	case "file":
		f, err := camera.NewFileSource(cfg.ImagePath, camCfg.Quality)
		if err != nil {
			return nil, err
		}
		return f, nil
	}

	a.Grabber = camera.NewGrabber(cfg.Source, camera.WithConfig(camCfg), camera.WithMetrics(a.Metrics))
	a.closers = append(a.closers, a.Grabber.Close)
	a.RemoteMic = audioio.NewStreamSource(a.audioConfig(), a.logger)
	a.closers = append(a.closers, a.RemoteMic.Close)

	vcfg := video.DefaultConfig()
	vcfg.Signalling.URL = cfg.SignallingURL
	vcfg.Signalling.Producer = cfg.Producer

	switch cfg.Source {
	case "webcam":
		w, err := camera.NewWebcam(camCfg, a.Grabber, a.logger)
		if err != nil {
			return nil, fmt.Errorf("webcam: %w", err)
		}
		a.webcam = w
		a.closers = append(a.closers, w.Close)
	case "webrtc":
		in, err := video.NewIngest(vcfg, a.Grabber, a.RemoteMic, a.logger)
		if err != nil {
			return nil, fmt.Errorf("webrtc ingest: %w", err)
		}
		a.Ingest = in
		a.closers = append(a.closers, in.Close)
	case "signalling":
		sc, err := video.NewSignallingClient(vcfg, a.Grabber, a.RemoteMic, a.logger)
		if err != nil {
			return nil, fmt.Errorf("signalling: %w", err)
		}
		a.signalling = sc
		a.closers = append(a.closers, sc.Close)
	}
	return a.Grabber, nil
}

func (a *App) initDetector() detection.Detector {
	cfg := a.Config.Detection
	if !cfg.Enabled {
		return nil
	}
	dcfg := detection.DefaultConfig()
	dcfg.ModelPath = cfg.ModelPath
	dcfg.Confidence = float32(cfg.Confidence)
	d, err := detection.NewYOLO(dcfg)
	if err != nil {
		a.logger.Warn("object detector unavailable", "error", err)
		return nil
	}
	a.closers = append(a.closers, d.Close)
	return d
}

func (a *App) audioConfig() audioio.Config {
	c := audioio.DefaultConfig()
	c.Backend = audioio.Backend(a.Config.Audio.Backend)
	c.SampleRate = a.Config.Audio.SampleRate
	c.Device = a.Config.Audio.InputDevice
	return c
}

// initAudio sets up recognition and speech. Without a local microphone
// the listener hears the browser's microphone instead.
func (a *App) initAudio(ctx context.Context, speak bool) {
	cfg := a.Config
	acfg := a.audioConfig()

	var src audioio.Source
	if s, err := audioio.NewSource(acfg, a.logger); err == nil {
		src = s
		a.closers = append(a.closers, s.Close)
	} else {
		if a.RemoteMic == nil {
			a.RemoteMic = audioio.NewStreamSource(acfg, a.logger)
			a.closers = append(a.closers, a.RemoteMic.Close)
		}
		a.logger.Info("no local microphone, listening to the browser", "reason", err)
		src = a.RemoteMic
	}
	if err := a.RemoteMicStart(ctx); err != nil {
		a.logger.Warn("remote microphone not started", "error", err)
	}

	rec, err := a.initRecognizer(ctx)
	if err != nil {
		a.logger.Warn("speech recognition unavailable", "error", err)
	} else {
		lcfg := speech.DefaultListenerConfig()
		lcfg.PhraseTimeout = cfg.Speech.ListenTimeout
		lcfg.PauseThreshold = cfg.Speech.PauseThreshold
		lcfg.MaxPhrase = cfg.Speech.MaxPhrase
		lcfg.EnergyThreshold = cfg.Speech.EnergyThreshold
		detector := vad.New(vad.Config{
			ModelPath:       cfg.Speech.VADModelPath,
			EnergyThreshold: cfg.Speech.EnergyThreshold,
		}, a.logger)
		a.Listener = speech.NewListener(src, rec,
			speech.WithListenerConfig(lcfg),
			speech.WithVAD(detector),
			speech.WithMetrics(a.Metrics),
			speech.WithLogger(a.logger),
		)
		a.closers = append(a.closers, a.Listener.Close)
	}

	if !speak {
		return
	}
	provider, err := a.initTTS(ctx)
	if err != nil {
		a.logger.Warn("speech output unavailable", "error", err)
		return
	}
	var sink audioio.Sink
	if s, err := audioio.NewSink(acfg, a.logger); err == nil {
		sink = s
		a.closers = append(a.closers, s.Close)
	}
	a.Speaker = speech.NewSpeaker(provider, sink, a.Metrics, a.logger)
	a.closers = append(a.closers, a.Speaker.Close)
}

// RemoteMicStart enables pushes into the browser microphone stream.
func (a *App) RemoteMicStart(ctx context.Context) error {
	if a.RemoteMic == nil {
		return nil
	}
	return a.RemoteMic.Start(ctx)
}

func (a *App) initRecognizer(ctx context.Context) (stt.Recognizer, error) {
	cfg := a.Config.Speech
	opts := []stt.Option{stt.WithLanguage(cfg.Language), stt.WithLogger(a.logger)}
	if cfg.APIKey != "" {
		opts = append(opts, stt.WithAPIKey(cfg.APIKey))
	}
	if cfg.Recognizer == "cloud" {
		return stt.NewCloud(ctx, opts...)
	}
	return stt.NewWebSpeech(opts...)
}

func (a *App) initTTS(ctx context.Context) (tts.Provider, error) {
	cfg := a.Config.TTS
	common := []tts.Option{tts.WithLanguage(cfg.Language), tts.WithLogger(a.logger)}
	if cfg.Voice != "" {
		common = append(common, tts.WithVoice(cfg.Voice))
	}

	var (
		providers []tts.Provider
		errs      []error
	)
	for _, name := range cfg.Providers {
		var (
			p   tts.Provider
			err error
		)
		switch strings.ToLower(name) {
		case "espeak":
			p, err = tts.NewEspeak(common...)
		case "openai":
			p, err = tts.NewOpenAI(append(common, tts.WithAPIKey(cfg.OpenAIKey))...)
		case "google":
			p, err = tts.NewGoogle(ctx, append(common, tts.WithAPIKey(cfg.GoogleAPIKey))...)
		case "none":
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		providers = append(providers, p)
	}

	switch len(providers) {
	case 0:
		if len(errs) == 0 {
			return nil, errors.New("no tts provider configured")
		}
		return nil, errors.Join(errs...)
	case 1:
		return providers[0], nil
	}
	return tts.NewChain(a.logger, providers...)
}

// Run starts the camera until ctx is cancelled. It returns immediately.
func (a *App) Run(ctx context.Context) {
	if a.webcam != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.webcam.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("webcam stopped", "error", err)
				fmt.Printf("⚠️  Webcam stopped: %v\n", err)
			}
		}()
	}

	if a.signalling != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.connectSignalling(ctx)
		}()
	}
}

// connectSignalling retries the producer connection with backoff.
func (a *App) connectSignalling(ctx context.Context) {
	delay := time.Second
	for {
		err := a.signalling.Connect(ctx)
		if err == nil {
			return
		}
		a.logger.Warn("video connection failed", "error", err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

// Shutdown waits for queued speech and releases everything in reverse
// order of creation.
func (a *App) Shutdown() {
	if a.Assistant != nil {
		a.Assistant.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Debug("close failed", "error", err)
		}
	}
	a.closers = nil
	a.wg.Wait()
}
