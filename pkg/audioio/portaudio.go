//go:build portaudio

package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const portAudioAvailable = true

var (
	paMu   sync.Mutex
	paRefs int
)

// paAcquire initializes PortAudio on first use.
func paAcquire() error {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("initializing portaudio: %w", err)
		}
	}
	paRefs++
	return nil
}

func paRelease() {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		return
	}
	paRefs--
	if paRefs == 0 {
		portaudio.Terminate()
	}
}

func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		var (
			dev *portaudio.DeviceInfo
			err error
		)
		if input {
			dev, err = portaudio.DefaultInputDevice()
		} else {
			dev, err = portaudio.DefaultOutputDevice()
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	for _, d := range devices {
		if d.Name == name && ((input && d.MaxInputChannels > 0) || (!input && d.MaxOutputChannels > 0)) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: device %q not found", ErrNoDevice, name)
}

// PortAudioSource captures from a local input device.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []int16
	running bool
	closed  bool
}

func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := paAcquire(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	dev, err := findDevice(cfg.Device, true)
	if err != nil {
		paRelease()
		return nil, err
	}

	s := &PortAudioSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.portaudio", "device", dev.Name),
		buf:    make([]int16, cfg.BufferSize()*cfg.Channels),
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.BufferSize()

	stream, err := portaudio.OpenStream(params, s.buf)
	if err != nil {
		paRelease()
		return nil, fmt.Errorf("%w: opening stream: %v", ErrNoDevice, err)
	}
	s.stream = stream
	return s, nil
}

// Start begins capture.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	s.running = true
	s.logger.Info("microphone started", "sample_rate", s.cfg.SampleRate)
	return nil
}

// Stop halts capture.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	return s.stream.Stop()
}

// Read blocks for one buffer of audio.
func (s *PortAudioSource) Read(ctx context.Context) (AudioChunk, error) {
	if err := ctx.Err(); err != nil {
		return AudioChunk{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return AudioChunk{}, io.EOF
	}

	if err := s.stream.Read(); err != nil {
		// Input overflow drops audio but the stream keeps running.
		if err != portaudio.InputOverflowed {
			return AudioChunk{}, fmt.Errorf("reading from stream: %w", err)
		}
		s.logger.Debug("input overflowed")
	}

	samples := make([]int16, len(s.buf))
	copy(samples, s.buf)
	return AudioChunk{Samples: samples, SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}, nil
}

// Config returns the audio configuration.
func (s *PortAudioSource) Config() Config { return s.cfg }

// Name returns "portaudio".
func (s *PortAudioSource) Name() string { return string(BackendPortAudio) }

// Close releases the device.
func (s *PortAudioSource) Close() error {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.stream.Close()
	paRelease()
	return err
}

// PortAudioSink plays to a local output device.
type PortAudioSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []int16
	running bool
	closed  bool
}

func newPortAudioSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := paAcquire(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	dev, err := findDevice(cfg.Device, false)
	if err != nil {
		paRelease()
		return nil, err
	}

	s := &PortAudioSink{
		cfg:    cfg,
		logger: logger.With("component", "audioio.portaudio", "device", dev.Name),
		buf:    make([]int16, cfg.BufferSize()*cfg.Channels),
	}

	params := portaudio.LowLatencyParameters(nil, dev)
	params.Output.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.BufferSize()

	stream, err := portaudio.OpenStream(params, s.buf)
	if err != nil {
		paRelease()
		return nil, fmt.Errorf("%w: opening stream: %v", ErrNoDevice, err)
	}
	s.stream = stream
	return s, nil
}

// Start begins playback.
func (s *PortAudioSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	s.running = true
	return nil
}

// Stop halts playback.
func (s *PortAudioSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	return s.stream.Stop()
}

// Write plays chunk, blocking until it has been handed to the device.
func (s *PortAudioSink) Write(ctx context.Context, chunk AudioChunk) error {
	samples := prepare(chunk, s.cfg)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return io.ErrClosedPipe
	}

	for off := 0; off < len(samples); off += len(s.buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(s.buf, samples[off:])
		for i := n; i < len(s.buf); i++ {
			s.buf[i] = 0
		}
		if err := s.stream.Write(); err != nil && err != portaudio.OutputUnderflowed {
			return fmt.Errorf("writing to stream: %w", err)
		}
	}
	return nil
}

// Config returns the audio configuration.
func (s *PortAudioSink) Config() Config { return s.cfg }

// Name returns "portaudio".
func (s *PortAudioSink) Name() string { return string(BackendPortAudio) }

// Close releases the device.
func (s *PortAudioSink) Close() error {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.stream.Close()
	paRelease()
	return err
}
