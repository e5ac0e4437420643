package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/suradas/pkg/audioio"
)

const providerEspeak = "espeak"

// Espeak synthesizes speech with a local espeak-ng/espeak install.
// It needs no network or credentials.
type Espeak struct {
	config *Config
	bin    string
	logger *slog.Logger
}

// NewEspeak locates the engine binary. It fails with ErrEngineNotFound
// when neither espeak-ng nor espeak is installed.
func NewEspeak(opts ...Option) (*Espeak, error) {
	cfg := DefaultConfig()
	cfg.Voice = "en-us"
	cfg.Apply(opts...)

	bin := cfg.Command
	if bin == "" {
		for _, name := range []string{"espeak-ng", "espeak"} {
			if p, err := exec.LookPath(name); err == nil {
				bin = p
				break
			}
		}
	}
	if bin == "" {
		return nil, ErrEngineNotFound
	}

	return &Espeak{
		config: cfg,
		bin:    bin,
		logger: cfg.Logger.With("component", "tts.espeak"),
	}, nil
}

// Name returns "espeak".
func (e *Espeak) Name() string { return providerEspeak }

// Synthesize runs the engine and decodes its WAV output.
func (e *Espeak) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	args := []string{"--stdout", "-s", strconv.Itoa(e.config.Rate)}
	if e.config.Voice != "" {
		args = append(args, "-v", e.config.Voice)
	}
	cmd := exec.CommandContext(ctx, e.bin, args...)
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, WrapError(providerEspeak, ctx.Err())
		}
		return nil, WrapError(providerEspeak, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}

	samples, rate, channels, err := audioio.DecodeWAV(stdout.Bytes())
	if err != nil {
		return nil, WrapError(providerEspeak, err)
	}
	if len(samples) == 0 {
		return nil, WrapError(providerEspeak, ErrEmptyAudio)
	}
	if channels > 1 {
		samples = audioio.AudioChunk{Samples: samples, SampleRate: rate, Channels: channels}.Mono().Samples
	}

	result := newResult(providerEspeak, text, audioio.SamplesToBytes(samples), rate, start)
	e.logger.Debug("synthesized audio",
		"chars", len(text),
		"duration", result.Duration,
		"latency_ms", result.LatencyMs,
	)
	return result, nil
}

// Health runs the engine with --version.
func (e *Espeak) Health(ctx context.Context) error {
	if err := exec.CommandContext(ctx, e.bin, "--version").Run(); err != nil {
		return WrapError(providerEspeak, err)
	}
	return nil
}

// Close is a no-op.
func (e *Espeak) Close() error { return nil }

var _ Provider = (*Espeak)(nil)
