package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// DecoderConfig configures the ffmpeg keyframe decoder.
type DecoderConfig struct {
	// FFmpegPath is the ffmpeg binary; looked up on PATH when relative.
	FFmpegPath string
	// MinInterval rate-limits decodes (e.g. 200ms = 5 FPS max).
	MinInterval time.Duration
	// Timeout bounds a single ffmpeg run.
	Timeout time.Duration
	// QScale is the mjpeg quality (1-31, lower is better).
	QScale int
}

// DefaultDecoderConfig returns sensible decoder defaults.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		FFmpegPath:  "ffmpeg",
		MinInterval: 200 * time.Millisecond,
		Timeout:     2 * time.Second,
		QScale:      3,
	}
}

// Decoder turns Annex-B H264 keyframes into JPEG with a single-shot
// ffmpeg process per frame, piping through stdin/stdout.
type Decoder struct {
	cfg  DecoderConfig
	path string

	mu   sync.Mutex
	last time.Time
}

// NewDecoder resolves the ffmpeg binary.
func NewDecoder(cfg DecoderConfig) (*Decoder, error) {
	def := DefaultDecoderConfig()
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = def.FFmpegPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.QScale <= 0 || cfg.QScale > 31 {
		cfg.QScale = def.QScale
	}
	path, err := exec.LookPath(cfg.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecoderMissing, err)
	}
	return &Decoder{cfg: cfg, path: path}, nil
}

// Decode returns one JPEG for the access unit. It returns ErrThrottled
// when called again within MinInterval and ErrGrayFrame when ffmpeg
// produced a blank image, which happens on incomplete keyframes.
func (d *Decoder) Decode(ctx context.Context, annexB []byte) ([]byte, error) {
	d.mu.Lock()
	if d.cfg.MinInterval > 0 && time.Since(d.last) < d.cfg.MinInterval {
		d.mu.Unlock()
		return nil, ErrThrottled
	}
	d.last = time.Now()
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.path,
		"-hide_banner", "-loglevel", "error",
		"-f", "h264",
		"-i", "pipe:0",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", strconv.Itoa(d.cfg.QScale),
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(annexB)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("video: ffmpeg timed out after %s", d.cfg.Timeout)
		}
		return nil, fmt.Errorf("video: ffmpeg: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	frame := stdout.Bytes()
	if isGrayJPEG(frame) {
		return nil, ErrGrayFrame
	}
	return frame, nil
}

// isGrayJPEG reports whether a JPEG is missing, tiny, or a flat dark or
// mid-gray image, which is what ffmpeg emits for a keyframe with missing
// slices.
func isGrayJPEG(data []byte) bool {
	if len(data) < 100 {
		return true
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return true
	}

	b := img.Bounds()
	if b.Dx() < 16 || b.Dy() < 16 {
		return true
	}

	stepX, stepY := max(b.Dx()/10, 1), max(b.Dy()/10, 1)
	var rSum, gSum, bSum, n int
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, _ := img.At(x, y).RGBA()
			rSum += int(r >> 8)
			gSum += int(g >> 8)
			bSum += int(bl >> 8)
			n++
		}
	}
	if n == 0 {
		return true
	}

	avgR, avgG, avgB := rSum/n, gSum/n, bSum/n
	if avgR < 30 && avgG < 30 && avgB < 30 {
		return true
	}
	diff := abs(avgR-avgG) + abs(avgG-avgB) + abs(avgR-avgB)
	return diff < 15 && avgR > 100 && avgR < 150
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
