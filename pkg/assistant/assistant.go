// Package assistant dispatches parsed commands to the hosted model, the
// translator, the geolocator and the camera, and speaks the answers.
//
// Every operation returns a Reply. Failures never escape as Go errors from
// the dispatch methods; they become error-level replies whose text starts
// with "Error: ", with the typed error kept on the reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/suradas/pkg/camera"
	"github.com/teslashibe/suradas/pkg/command"
	"github.com/teslashibe/suradas/pkg/detection"
	"github.com/teslashibe/suradas/pkg/geo"
	"github.com/teslashibe/suradas/pkg/history"
	"github.com/teslashibe/suradas/pkg/inference"
	"github.com/teslashibe/suradas/pkg/metrics"
	"github.com/teslashibe/suradas/pkg/speech"
	"github.com/teslashibe/suradas/pkg/stt"
	"github.com/teslashibe/suradas/pkg/translate"
)

var (
	// ErrNotConfigured is returned when an operation's provider is missing.
	ErrNotConfigured = errors.New("assistant: provider not configured")

	// ErrNotVisionCommand is returned by Capture for kinds without a frame prompt.
	ErrNotVisionCommand = errors.New("assistant: command does not use the camera")

	// ErrEmptyQuery is returned by Search for a blank query.
	ErrEmptyQuery = errors.New("assistant: empty search query")
)

// DefaultSession is used when a caller has no session id.
const DefaultSession = "default"

// MsgEmptyCommand is shown for blank input.
const MsgEmptyCommand = "Please enter a command."

// Deps are the providers the assistant orchestrates. Any of them may be
// nil; the operations that need a missing provider reply with an error.
type Deps struct {
	Model      inference.Provider
	Searcher   inference.Searcher
	Translator translate.Translator
	Locator    geo.Locator
	Camera     camera.Source
	Listener   *speech.Listener
	Speaker    *speech.Speaker
	History    history.Store
	Detector   detection.Detector
	Metrics    *metrics.Metrics
}

// Config controls timeouts and speech.
type Config struct {
	// Timeout bounds each remote call.
	Timeout time.Duration
	// ListenTimeout bounds one Listen call, including recognition.
	ListenTimeout time.Duration
	// HistoryLimit caps History results (0 = all).
	HistoryLimit int
	// Speak enables spoken answers.
	Speak bool
	// SpeakAsync returns replies before playback finishes. Wait blocks
	// until queued speech is done.
	SpeakAsync bool
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	return Config{
		Timeout:       60 * time.Second,
		ListenTimeout: 45 * time.Second,
		HistoryLimit:  100,
		Speak:         true,
		SpeakAsync:    true,
	}
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithConfig replaces the configuration.
func WithConfig(cfg Config) Option {
	return func(a *Assistant) { a.cfg = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assistant) { a.logger = logger }
}

// Assistant owns the provider set and a per-session history.
type Assistant struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger

	mu   sync.RWMutex
	subs []func(Reply)

	speaking sync.WaitGroup
}

// New builds an Assistant. A missing history store defaults to memory; a
// missing translator defaults to prompting the model; a missing searcher
// defaults to the model when it can search.
func New(deps Deps, opts ...Option) *Assistant {
	a := &Assistant{deps: deps, cfg: DefaultConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "assistant")

	if a.deps.History == nil {
		a.deps.History = history.NewMemory()
	}
	if a.deps.Translator == nil && a.deps.Model != nil {
		a.deps.Translator = translate.NewModel(a.deps.Model)
	}
	if a.deps.Searcher == nil && a.deps.Model != nil && a.deps.Model.Capabilities().Search {
		if s, ok := a.deps.Model.(inference.Searcher); ok {
			a.deps.Searcher = s
		}
	}
	return a
}

type sessionKey struct{}

// WithSession attaches a session id to ctx. Replies produced under ctx
// carry it and are delivered to OnReply subscribers tagged with it.
func WithSession(ctx context.Context, session string) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFrom returns the session attached by WithSession, or DefaultSession.
func SessionFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sessionKey{}).(string); ok && s != "" {
		return s
	}
	return DefaultSession
}

// OnReply registers fn to receive every reply.
func (a *Assistant) OnReply(fn func(Reply)) {
	a.mu.Lock()
	a.subs = append(a.subs, fn)
	a.mu.Unlock()
}

// Submit records text in the session history and dispatches it. Location
// and search run immediately; vision kinds ask for a frame; translate asks
// for the text to translate.
func (a *Assistant) Submit(ctx context.Context, session, text string, source history.Source) Reply {
	if session == "" {
		session = DefaultSession
	}
	ctx = WithSession(ctx, session)

	cmd := command.Parse(text)
	if cmd.IsEmpty() {
		return a.finish(ctx, Reply{Level: LevelWarning, Text: MsgEmptyCommand})
	}

	if err := a.deps.History.Append(ctx, history.NewEntry(session, cmd.Raw, string(cmd.Kind), source)); err != nil {
		a.logger.Warn("history append failed", "session", session, "error", err)
	}
	a.deps.Metrics.Command(string(cmd.Kind), string(source))
	a.logger.Info("command", "session", session, "kind", cmd.Kind, "source", source)

	var r Reply
	switch cmd.Kind {
	case command.KindLocation:
		r = a.locate(ctx)
	case command.KindSearch:
		if cmd.Query == "" {
			r = Reply{Level: LevelWarning, Text: command.MsgMissingQuery}
		} else {
			r = a.search(ctx, cmd.Query)
		}
	case command.KindObject, command.KindCurrency:
		r = Reply{
			Level:      LevelInfo,
			Notice:     cmd.Kind.Hint(),
			Text:       cmd.Kind.Hint(),
			NeedsFrame: true,
		}
	case command.KindTranslate:
		if cmd.TargetLanguage == "" {
			r = Reply{Level: LevelWarning, Text: command.MsgMissingLanguage}
		} else {
			r = Reply{
				Level:          LevelInfo,
				Text:           fmt.Sprintf("Enter text to translate to %s.", cmd.TargetLanguage),
				NeedsText:      true,
				TargetLanguage: cmd.TargetLanguage,
			}
		}
	default:
		r = Reply{Level: LevelWarning, Text: command.MsgNotRecognized}
	}

	r.Command = cmd.Kind
	if r.Title == "" {
		r.Title = cmd.Kind.Title()
	}
	return a.finish(ctx, r)
}

// Capture sends the latest camera frame to the vision model with the
// kind's prompt.
func (a *Assistant) Capture(ctx context.Context, kind command.Kind) Reply {
	return a.finish(ctx, a.capture(ctx, kind))
}

func (a *Assistant) capture(ctx context.Context, kind command.Kind) Reply {
	const op = "capture"
	if !kind.NeedsFrame() {
		return a.fail(op, kind, fmt.Errorf("%w: %s", ErrNotVisionCommand, kind))
	}
	if a.deps.Camera == nil {
		return a.fail(op, kind, fmt.Errorf("%w: camera", ErrNotConfigured))
	}
	if a.deps.Model == nil {
		return a.fail(op, kind, fmt.Errorf("%w: vision model", ErrNotConfigured))
	}

	frame, err := a.deps.Camera.Frame(ctx)
	if err != nil {
		if errors.Is(err, camera.ErrNoFrame) {
			a.deps.Metrics.Error(op, string(ClassUnavailable))
			return Reply{Command: kind, Title: kind.Title(), Level: LevelWarning, Text: command.MsgNoFrame, Err: err, ErrorClass: ClassUnavailable}
		}
		return a.fail(op, kind, err)
	}

	prompt := kind.Prompt()
	var labels string
	if kind == command.KindObject && a.deps.Detector != nil {
		dets, err := a.deps.Detector.Detect(frame)
		if err != nil {
			a.logger.Warn("local detection failed", "error", err)
		} else if labels = detection.Summary(dets); labels != "" {
			prompt += " A local detector found: " + labels + "."
		}
	}

	fmt.Printf("📸 Captured %d bytes from %s\n", len(frame), a.deps.Camera.Name())

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	resp, err := a.deps.Model.Vision(ctx, &inference.VisionRequest{Frames: [][]byte{frame}, Prompt: prompt})
	a.deps.Metrics.Since("vision", start)
	if err != nil {
		return a.fail(op, kind, err)
	}

	r := Reply{Command: kind, Title: kind.Title(), Level: LevelSuccess, Text: resp.Content, Labels: labels}
	a.speak(ctx, &r, resp.Content)
	return r
}

// Translate renders text in lang and speaks the result.
func (a *Assistant) Translate(ctx context.Context, text, lang string) Reply {
	return a.finish(ctx, a.translate(ctx, text, lang))
}

func (a *Assistant) translate(ctx context.Context, text, lang string) Reply {
	const op = "translate"
	kind := command.KindTranslate
	if a.deps.Translator == nil {
		return a.fail(op, kind, fmt.Errorf("%w: translator", ErrNotConfigured))
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	res, err := a.deps.Translator.Translate(ctx, text, lang)
	a.deps.Metrics.Since(op, start)
	if err != nil {
		return a.fail(op, kind, err)
	}

	r := Reply{Command: kind, Title: kind.Title(), Level: LevelSuccess, Text: res.Text, TargetLanguage: lang}
	a.speak(ctx, &r, res.Text)
	return r
}

// Locate describes the caller's location from its public IP.
func (a *Assistant) Locate(ctx context.Context) Reply {
	return a.finish(ctx, a.locate(ctx))
}

func (a *Assistant) locate(ctx context.Context) Reply {
	const op = "location"
	kind := command.KindLocation
	if a.deps.Locator == nil {
		return a.fail(op, kind, fmt.Errorf("%w: geolocation", ErrNotConfigured))
	}
	if a.deps.Model == nil {
		return a.fail(op, kind, fmt.Errorf("%w: model", ErrNotConfigured))
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	loc, err := a.deps.Locator.Lookup(ctx)
	if err != nil {
		return a.fail(op, kind, err)
	}
	info := loc.Describe()

	resp, err := a.deps.Model.Chat(ctx, &inference.ChatRequest{
		Messages: []inference.Message{inference.NewUserMessage(command.LocationPrompt(info))},
	})
	a.deps.Metrics.Since(op, start)
	if err != nil {
		return a.fail(op, kind, err)
	}

	answer := resp.Text()
	r := Reply{Command: kind, Title: kind.Title(), Notice: info, Level: LevelSuccess, Text: answer}
	a.speak(ctx, &r, answer)
	return r
}

// Search answers query with grounded web search.
func (a *Assistant) Search(ctx context.Context, query string) Reply {
	return a.finish(ctx, a.search(ctx, query))
}

func (a *Assistant) search(ctx context.Context, query string) Reply {
	const op = "search"
	kind := command.KindSearch
	query = strings.TrimSpace(query)
	if query == "" {
		return a.fail(op, kind, ErrEmptyQuery)
	}
	if a.deps.Searcher == nil {
		return a.fail(op, kind, fmt.Errorf("%w: search", ErrNotConfigured))
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	resp, err := a.deps.Searcher.Search(ctx, query)
	a.deps.Metrics.Since(op, start)
	if err != nil {
		return a.fail(op, kind, err)
	}

	r := Reply{Command: kind, Title: kind.Title(), Notice: query, Level: LevelSuccess, Text: resp.Content, Sources: resp.Sources}
	a.speak(ctx, &r, resp.Content)
	return r
}

// Listen captures one utterance, shows and speaks "You said: ..." and
// returns the recognized text. The reply explaining a failure is
// delivered to subscribers before the error is returned.
func (a *Assistant) Listen(ctx context.Context) (string, error) {
	if !a.deps.Listener.Available() {
		a.finish(ctx, Reply{Level: LevelWarning, Text: command.MsgNoMicrophone, Err: speech.ErrNoMicrophone, ErrorClass: ClassUnavailable})
		return "", speech.ErrNoMicrophone
	}

	if a.cfg.ListenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.ListenTimeout)
		defer cancel()
	}

	fmt.Println("🎤 Listening...")
	tr, err := a.deps.Listener.Listen(ctx)
	if err != nil {
		if errors.Is(err, stt.ErrNoSpeech) || errors.Is(err, speech.ErrWaitTimeout) {
			a.finish(ctx, Reply{Level: LevelWarning, Text: command.MsgDidNotCatch, Err: err, ErrorClass: Classify(err)})
			return "", err
		}
		a.finish(ctx, a.fail("listen", "", err))
		return "", err
	}

	said := "You said: " + tr.Text
	r := Reply{Level: LevelInfo, Notice: tr.Text, Text: said}
	a.speak(ctx, &r, said)
	a.finish(ctx, r)
	return tr.Text, nil
}

// History returns the session's commands, oldest first.
func (a *Assistant) History(ctx context.Context, session string) ([]history.Entry, error) {
	if session == "" {
		session = DefaultSession
	}
	return a.deps.History.List(ctx, session, a.cfg.HistoryLimit)
}

// Status reports which capabilities are wired.
type Status struct {
	Model      bool   `json:"model"`
	Search     bool   `json:"search"`
	Translate  bool   `json:"translate"`
	Location   bool   `json:"location"`
	Camera     string `json:"camera"`
	Microphone bool   `json:"microphone"`
	Speech     bool   `json:"speech"`
	Detector   bool   `json:"detector"`
	Healthy    bool   `json:"healthy"`
	Error      string `json:"error,omitempty"`
}

// Status checks the model and reports the wired capabilities.
func (a *Assistant) Status(ctx context.Context) Status {
	s := Status{
		Model:      a.deps.Model != nil,
		Search:     a.deps.Searcher != nil,
		Translate:  a.deps.Translator != nil,
		Location:   a.deps.Locator != nil,
		Camera:     "none",
		Microphone: a.deps.Listener.Available(),
		Speech:     a.deps.Speaker.Enabled(),
		Detector:   a.deps.Detector != nil,
	}
	if a.deps.Camera != nil {
		s.Camera = a.deps.Camera.Name()
	}
	if a.deps.Model == nil {
		s.Error = ErrNotConfigured.Error()
		return s
	}
	if err := a.deps.Model.Health(ctx); err != nil {
		s.Error = err.Error()
		return s
	}
	s.Healthy = true
	return s
}

// Wait blocks until queued speech has finished.
func (a *Assistant) Wait() {
	a.speaking.Wait()
}

func (a *Assistant) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.cfg.Timeout)
}

// fail converts err into an error reply and records it.
func (a *Assistant) fail(op string, kind command.Kind, err error) Reply {
	class := Classify(err)
	a.deps.Metrics.Error(op, string(class))
	a.logger.Warn("operation failed", "op", op, "kind", kind, "class", class, "error", err)
	return Reply{
		Command:    kind,
		Title:      kind.Title(),
		Level:      LevelError,
		Text:       "Error: " + err.Error(),
		Err:        err,
		ErrorClass: class,
	}
}

// speak voices text when enabled. Speech failures are logged, never
// turned into reply errors.
func (a *Assistant) speak(ctx context.Context, r *Reply, text string) {
	if !a.cfg.Speak || !a.deps.Speaker.Enabled() || strings.TrimSpace(text) == "" {
		return
	}
	r.Spoken = true

	run := func(ctx context.Context) {
		if _, err := a.deps.Speaker.Speak(ctx, text); err != nil {
			a.deps.Metrics.Error("speak", string(Classify(err)))
			a.logger.Warn("speak failed", "error", err)
		}
	}
	if !a.cfg.SpeakAsync {
		run(ctx)
		return
	}
	a.speaking.Add(1)
	go func() {
		defer a.speaking.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Timeout+time.Minute)
		defer cancel()
		run(ctx)
	}()
}

// finish stamps the reply and delivers it to subscribers.
func (a *Assistant) finish(ctx context.Context, r Reply) Reply {
	r.ID = uuid.NewString()
	r.Session = SessionFrom(ctx)
	r.At = time.Now().UTC()

	a.mu.RLock()
	subs := a.subs
	a.mu.RUnlock()
	for _, fn := range subs {
		fn(r)
	}
	return r
}
