package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"os"
)

// FileSource serves a still image from disk. The file is re-read on every
// call so it can be swapped while the service runs. PNG input is
// re-encoded as JPEG.
type FileSource struct {
	path    string
	quality int
}

// NewFileSource checks that path exists and returns a source for it.
func NewFileSource(path string, quality int) (*FileSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("camera: image %s: %w", path, err)
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultConfig().Quality
	}
	return &FileSource{path: path, quality: quality}, nil
}

// Frame returns the image as JPEG bytes.
func (f *FileSource) Frame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("camera: read %s: %w", f.path, err)
	}
	return ToJPEG(data, f.quality)
}

// Name returns "file".
func (f *FileSource) Name() string { return "file" }

// ToJPEG returns data unchanged when it is already JPEG, otherwise decodes
// it with the registered image codecs and re-encodes it.
func ToJPEG(data []byte, quality int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrNoFrame
	}
	if http.DetectContentType(data) == "image/jpeg" {
		return data, nil
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("camera: decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("camera: encode %s as jpeg: %w", format, err)
	}
	return buf.Bytes(), nil
}

var _ Source = (*FileSource)(nil)
