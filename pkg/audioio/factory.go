package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource creates an audio source with the given configuration.
// BackendAuto selects PortAudio when the binary was built with it and
// returns ErrNoDevice otherwise.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := resolve(cfg.Backend)
	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendPortAudio:
		return newPortAudioSource(cfg, logger)
	case BackendNone:
		return nil, ErrNoDevice
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// NewSink creates an audio sink with the given configuration.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := resolve(cfg.Backend)
	logger.Info("creating audio sink",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	switch backend {
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	case BackendPortAudio:
		return newPortAudioSink(cfg, logger)
	case BackendNone:
		return nil, ErrNoDevice
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

func resolve(b Backend) Backend {
	if b == BackendAuto || b == "" {
		if portAudioAvailable {
			return BackendPortAudio
		}
		return BackendNone
	}
	return b
}

// AvailableBackends returns the backends compiled into this binary.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if portAudioAvailable {
		backends = append(backends, BackendPortAudio)
	}
	return backends
}
