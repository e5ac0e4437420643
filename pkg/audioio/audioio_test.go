package audioio

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"
)

func TestResample(t *testing.T) {
	same := []int16{100, 200, 300}
	if got := Resample(same, 16000, 16000); len(got) != 3 || got[2] != 300 {
		t.Errorf("same rate: got %v", got)
	}

	in := make([]int16, 960)
	for i := range in {
		in[i] = int16(i)
	}
	if got := Resample(in, 48000, 16000); len(got) != 320 {
		t.Errorf("48k->16k: expected 320 samples, got %d", len(got))
	}
	if got := Resample(in[:320], 16000, 24000); len(got) != 480 {
		t.Errorf("16k->24k: expected 480 samples, got %d", len(got))
	}
	if got := Resample(nil, 16000, 48000); len(got) != 0 {
		t.Errorf("expected empty result for nil input")
	}
}

func TestBytesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	data := SamplesToBytes(samples)
	if len(data) != 10 {
		t.Fatalf("expected 10 bytes, got %d", len(data))
	}
	if data[2] != 0x01 || data[3] != 0x00 {
		t.Errorf("expected little-endian encoding, got % x", data[2:4])
	}
	back := BytesToSamples(data)
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("sample %d: expected %d, got %d", i, samples[i], back[i])
		}
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Error("expected 0 for empty input")
	}
	if got := RMS([]int16{1000, -1000, 1000, -1000}); got != 1000 {
		t.Errorf("expected 1000, got %v", got)
	}

	tone := Tone(16000, 440, 0.5, 0.1)
	want := 0.5 * 32767 / math.Sqrt2
	if got := RMS(tone.Samples); math.Abs(got-want) > 200 {
		t.Errorf("sine RMS: expected ~%.0f, got %.0f", want, got)
	}
	if lvl := Level(tone.Samples); lvl < 0.3 || lvl > 0.4 {
		t.Errorf("expected level ~0.35, got %v", lvl)
	}
}

func TestFloat32Conversion(t *testing.T) {
	out := Float32ToSamples([]float32{0, 1, -1, 2})
	if out[0] != 0 || out[1] != 32767 || out[2] != -32767 || out[3] != 32767 {
		t.Errorf("unexpected conversion %v", out)
	}
	f := SamplesToFloat32([]int16{16384})
	if f[0] != 0.5 {
		t.Errorf("expected 0.5, got %v", f[0])
	}
}

func TestAudioChunk_DurationAndMono(t *testing.T) {
	c := AudioChunk{Samples: make([]int16, 3200), SampleRate: 16000, Channels: 2}
	if d := c.Duration(); d != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %v", d)
	}

	stereo := AudioChunk{Samples: []int16{100, 300, -200, 200}, SampleRate: 16000, Channels: 2}
	mono := stereo.Mono()
	if mono.Channels != 1 || len(mono.Samples) != 2 || mono.Samples[0] != 200 || mono.Samples[1] != 0 {
		t.Errorf("unexpected downmix %+v", mono)
	}
	if (&AudioChunk{}).Duration() != 0 {
		t.Error("expected zero duration for empty chunk")
	}
}

func TestMockSource_Script(t *testing.T) {
	cfg := DefaultConfig()
	a := Tone(cfg.SampleRate, 300, 0.2, 0.03)
	src := NewMockSource(cfg, nil, WithChunks(a), WithEOF())
	ctx := context.Background()

	if _, err := src.Read(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF before Start, got %v", err)
	}
	if err := src.Start(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := src.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Samples) != len(a.Samples) {
		t.Errorf("expected scripted chunk, got %d samples", len(got.Samples))
	}
	if _, err := src.Read(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF after script, got %v", err)
	}
	if src.Reads() != 2 {
		t.Errorf("expected 2 reads, got %d", src.Reads())
	}
}

func TestMockSource_SilenceAfterScript(t *testing.T) {
	cfg := DefaultConfig()
	src := NewMockSource(cfg, nil)
	src.Start(context.Background())

	chunk, err := src.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunk.Samples) != cfg.BufferSize() {
		t.Errorf("expected %d silent samples, got %d", cfg.BufferSize(), len(chunk.Samples))
	}
	if RMS(chunk.Samples) != 0 {
		t.Error("expected silence")
	}
}

func TestMockSink_ResamplesOnWrite(t *testing.T) {
	cfg := DefaultConfig()
	sink := NewMockSink(cfg, nil)
	ctx := context.Background()

	if err := sink.Write(ctx, Silence(cfg, 0.01)); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("expected ErrClosedPipe before Start, got %v", err)
	}

	sink.Start(ctx)
	if err := sink.Write(ctx, Tone(24000, 440, 0.5, 0.1)); err != nil {
		t.Fatal(err)
	}
	if n := sink.Samples(); n != 1600 {
		t.Errorf("expected 1600 samples at 16kHz, got %d", n)
	}
	if w := sink.Written(); len(w) != 1 || w[0].SampleRate != 16000 {
		t.Errorf("unexpected written chunks %+v", w)
	}
}

func TestStreamSource_PushRead(t *testing.T) {
	cfg := DefaultConfig()
	src := NewStreamSource(cfg, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if src.Push(Silence(cfg, 0.01)) {
		t.Error("push should fail before Start")
	}
	src.Start(ctx)

	// 48kHz stereo from a WebRTC track
	in := AudioChunk{Samples: make([]int16, 960*2), SampleRate: 48000, Channels: 2}
	if !src.Push(in) {
		t.Fatal("push failed")
	}
	got, err := src.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.SampleRate != 16000 || got.Channels != 1 || len(got.Samples) != 320 {
		t.Errorf("unexpected converted chunk: rate=%d ch=%d n=%d", got.SampleRate, got.Channels, len(got.Samples))
	}

	src.Stop()
	if _, err := src.Read(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF after Stop, got %v", err)
	}
}

func TestStreamSource_DropsWhenFull(t *testing.T) {
	cfg := DefaultConfig()
	src := NewStreamSource(cfg, nil)
	src.Start(context.Background())
	for i := 0; i < 64; i++ {
		src.Push(Silence(cfg, 0.01))
	}
	if src.Push(Silence(cfg, 0.01)) {
		t.Error("expected push to fail on full queue")
	}
	if src.Dropped() != 1 {
		t.Errorf("expected 1 dropped, got %d", src.Dropped())
	}
}

func TestNewSource_Backends(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock
	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if src.Name() != "mock" {
		t.Errorf("expected mock, got %s", src.Name())
	}

	cfg.Backend = BackendNone
	if _, err := NewSource(cfg, nil); !errors.Is(err, ErrNoDevice) {
		t.Errorf("expected ErrNoDevice, got %v", err)
	}

	cfg.SampleRate = 0
	if _, err := NewSink(cfg, nil); err == nil {
		t.Error("expected validation error")
	}
}

func TestWAVRoundTrip(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}
	data, err := EncodeWAV(samples, 24000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "RIFF" {
		t.Fatalf("expected RIFF header, got %q", data[:4])
	}

	got, rate, ch, err := DecodeWAV(data)
	if err != nil {
		t.Fatal(err)
	}
	if rate != 24000 || ch != 1 {
		t.Errorf("expected 24000Hz mono, got %dHz %dch", rate, ch)
	}
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d: expected %d, got %d", i, samples[i], got[i])
		}
	}

	if _, _, _, err := DecodeWAV([]byte("not a wav file at all")); !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("expected ErrInvalidWAV, got %v", err)
	}
}
