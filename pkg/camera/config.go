package camera

import (
	"fmt"
	"time"
)

// Config holds capture settings shared by the local producers.
type Config struct {
	Device    int `json:"device"`    // Webcam index
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Target FPS
	Quality   int `json:"quality"`   // JPEG quality 1-100

	// MaxAge is how old the latest frame may be before Frame reports
	// ErrStale. Zero disables the check.
	MaxAge time.Duration `json:"max_age"`

	// WaitTimeout bounds how long Frame waits for a first frame.
	WaitTimeout time.Duration `json:"wait_timeout"`
}

// Resolution limits accepted by Validate.
const (
	MinWidth  = 160
	MinHeight = 120
	MaxWidth  = 3840
	MaxHeight = 2160
)

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetLow     = "480p"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
)

// DefaultConfig returns 720p at 15 FPS, which is plenty for single-shot
// vision prompts.
func DefaultConfig() Config {
	return Config{
		Width:       1280,
		Height:      720,
		Framerate:   15,
		Quality:     85,
		MaxAge:      10 * time.Second,
		WaitTimeout: 3 * time.Second,
	}
}

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	low := DefaultConfig()
	low.Width, low.Height = 640, 480

	hd := DefaultConfig()
	hd.Width, hd.Height, hd.Framerate = 1920, 1080, 10

	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetLow:     low,
		Preset720p:    DefaultConfig(),
		Preset1080p:   hd,
	}
}

// GetPreset returns a preset config by name.
func GetPreset(name string) (Config, error) {
	cfg, ok := Presets()[name]
	if !ok {
		return Config{}, fmt.Errorf("camera: unknown preset %q", name)
	}
	return cfg, nil
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between %d and %d", MinWidth, MaxWidth))
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between %d and %d", MinHeight, MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > 60 {
		errors = append(errors, "framerate must be between 1 and 60")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.Device < 0 {
		errors = append(errors, "device must not be negative")
	}
	if c.MaxAge < 0 || c.WaitTimeout < 0 {
		errors = append(errors, "durations must not be negative")
	}

	return errors
}
