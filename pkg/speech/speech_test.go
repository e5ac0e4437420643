package speech

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/suradas/pkg/audioio"
	"github.com/teslashibe/suradas/pkg/stt"
	"github.com/teslashibe/suradas/pkg/tts"
	"github.com/teslashibe/suradas/pkg/vad"
)

const chunk = 30 * time.Millisecond

func silence(d time.Duration) []audioio.AudioChunk {
	cfg := audioio.DefaultConfig()
	var out []audioio.AudioChunk
	for t := time.Duration(0); t < d; t += chunk {
		out = append(out, audioio.Silence(cfg, chunk.Seconds()))
	}
	return out
}

func voice(d time.Duration) []audioio.AudioChunk {
	var out []audioio.AudioChunk
	for t := time.Duration(0); t < d; t += chunk {
		out = append(out, audioio.Tone(16000, 220, 0.3, chunk.Seconds()))
	}
	return out
}

func script(parts ...[]audioio.AudioChunk) []audioio.AudioChunk {
	var out []audioio.AudioChunk
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestGate(t *testing.T) {
	g := NewGate(450, 90*time.Millisecond)

	assert.False(t, g.Feed(100, chunk))
	assert.False(t, g.Open())

	assert.True(t, g.Feed(1000, chunk), "opens after attack")
	assert.True(t, g.Open())

	assert.False(t, g.Feed(400, chunk), "between levels keeps state")
	assert.False(t, g.Feed(10, chunk))
	assert.False(t, g.Feed(10, chunk))
	assert.True(t, g.Feed(10, chunk), "closes after release")
	assert.False(t, g.Open())
	assert.Equal(t, 90*time.Millisecond, g.Silence())

	g.Reset()
	assert.Equal(t, time.Duration(0), g.Silence())
}

func TestListener_CapturesPhrase(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil,
		audioio.WithChunks(script(silence(300*time.Millisecond), voice(600*time.Millisecond), silence(time.Second))...),
		audioio.WithEOF())
	rec := stt.NewMock("detect object")
	l := NewListener(src, rec)

	tr, err := l.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "detect object", tr.Text)
	assert.Equal(t, 1, rec.Calls())
}

func TestListener_PhraseBoundaries(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil,
		audioio.WithChunks(script(silence(time.Second), voice(600*time.Millisecond), silence(time.Second))...),
		audioio.WithEOF())
	l := NewListener(src, stt.NewMock("x"))

	samples, err := l.Capture(context.Background())
	require.NoError(t, err)

	d := time.Duration(len(samples)) * time.Second / stt.SampleRate
	// 0.5s pre-roll + 0.6s voice + 0.2s tail
	assert.InDelta(t, 1300, d.Milliseconds(), 60)
}

func TestListener_WaitTimeout(t *testing.T) {
	cfg := DefaultListenerConfig()
	cfg.PhraseTimeout = 300 * time.Millisecond
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil)
	rec := stt.NewMock("x")
	l := NewListener(src, rec, WithListenerConfig(cfg))

	_, err := l.Listen(context.Background())
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.Equal(t, 0, rec.Calls())
}

func TestListener_SilentStreamTimesOut(t *testing.T) {
	cfg := DefaultListenerConfig()
	cfg.PhraseTimeout = 200 * time.Millisecond
	src := audioio.NewStreamSource(audioio.DefaultConfig(), nil)
	require.NoError(t, src.Start(context.Background()))
	rec := stt.NewMock("x")
	l := NewListener(src, rec, WithListenerConfig(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	_, err := l.Listen(ctx)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0, rec.Calls())
}

func TestListener_MaxPhrase(t *testing.T) {
	cfg := DefaultListenerConfig()
	cfg.MaxPhrase = 300 * time.Millisecond
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil,
		audioio.WithChunks(voice(2*time.Second)...), audioio.WithEOF())
	l := NewListener(src, stt.NewMock("x"), WithListenerConfig(cfg))

	samples, err := l.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10*480, len(samples))
}

func TestListener_VADRejects(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil,
		audioio.WithChunks(script(voice(60*time.Millisecond), silence(time.Second))...), audioio.WithEOF())
	rec := stt.NewMock("x")
	l := NewListener(src, rec, WithVAD(vad.NewEnergy(450)))

	_, err := l.Listen(context.Background())
	assert.ErrorIs(t, err, stt.ErrNoSpeech)
	assert.Equal(t, 0, rec.Calls())
}

func TestListener_NoMicrophone(t *testing.T) {
	l := NewListener(nil, stt.NewMock("x"))
	assert.False(t, l.Available())
	_, err := l.Listen(context.Background())
	assert.ErrorIs(t, err, ErrNoMicrophone)
}

func TestListener_RecognizerError(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil,
		audioio.WithChunks(script(voice(300*time.Millisecond), silence(time.Second))...), audioio.WithEOF())
	rec := &stt.Mock{RecognizeFunc: func(ctx context.Context, s []int16) (*stt.Transcript, error) {
		return nil, &stt.APIError{Backend: "google", StatusCode: 503}
	}}
	l := NewListener(src, rec)

	_, err := l.Listen(context.Background())
	var apiErr *stt.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestSpeaker_Speak(t *testing.T) {
	provider := tts.NewMock()
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	s := NewSpeaker(provider, sink, nil, nil)

	var clips []Clip
	s.OnClip(func(c Clip) { clips = append(clips, c) })

	clip, err := s.Speak(context.Background(), "You said: hello")
	require.NoError(t, err)
	require.NotNil(t, clip)
	assert.Equal(t, "RIFF", string(clip.WAV[:4]))
	require.Len(t, clips, 1)
	assert.Equal(t, "You said: hello", clips[0].Text)

	// 15 chars * 20ms at 24kHz, resampled to the 16kHz sink
	assert.Equal(t, 15*320, sink.Samples())
	assert.Equal(t, []string{"You said: hello"}, provider.Spoken())
}

func TestSpeaker_DisabledAndEmpty(t *testing.T) {
	var s *Speaker
	clip, err := s.Speak(context.Background(), "hi")
	assert.NoError(t, err)
	assert.Nil(t, clip)

	provider := tts.NewMock()
	s = NewSpeaker(provider, nil, nil, nil)
	clip, err = s.Speak(context.Background(), "  ")
	assert.NoError(t, err)
	assert.Nil(t, clip)
	assert.Equal(t, 0, provider.CallCount("Synthesize"))
}

func TestSpeaker_ProviderError(t *testing.T) {
	s := NewSpeaker(tts.WithError(tts.ErrEngineNotFound), nil, nil, nil)
	_, err := s.Speak(context.Background(), "hi")
	assert.ErrorIs(t, err, tts.ErrEngineNotFound)
}
