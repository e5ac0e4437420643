// Package config loads suradas configuration from YAML, .env and the
// environment. Secrets are never read from source; they come from the
// environment or an ignored .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Translate TranslateConfig `yaml:"translate"`
	Geo       GeoConfig       `yaml:"geo"`
	Speech    SpeechConfig    `yaml:"speech"`
	TTS       TTSConfig       `yaml:"tts"`
	Audio     AudioConfig     `yaml:"audio"`
	Camera    CameraConfig    `yaml:"camera"`
	Detection DetectionConfig `yaml:"detection"`
	History   HistoryConfig   `yaml:"history"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type GeminiConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	VisionModel string        `yaml:"vision_model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type TranslateConfig struct {
	// Backend is "gemini" or "google".
	Backend string `yaml:"backend"`
	APIKey  string `yaml:"api_key"`
}

type GeoConfig struct {
	URL string `yaml:"url"`
}

type SpeechConfig struct {
	// Recognizer is "google" (web speech) or "cloud" (Cloud Speech-to-Text).
	Recognizer      string        `yaml:"recognizer"`
	APIKey          string        `yaml:"api_key"`
	Language        string        `yaml:"language"`
	ListenTimeout   time.Duration `yaml:"listen_timeout"`
	PauseThreshold  time.Duration `yaml:"pause_threshold"`
	MaxPhrase       time.Duration `yaml:"max_phrase"`
	EnergyThreshold float64       `yaml:"energy_threshold"`
	VADModelPath    string        `yaml:"vad_model_path"`
}

type TTSConfig struct {
	// Providers is an ordered fallback list: espeak, openai, google, none.
	Providers    []string `yaml:"providers"`
	Voice        string   `yaml:"voice"`
	Language     string   `yaml:"language"`
	OpenAIKey    string   `yaml:"openai_api_key"`
	GoogleAPIKey string   `yaml:"google_api_key"`
}

type AudioConfig struct {
	Backend     string `yaml:"backend"`
	InputDevice string `yaml:"input_device"`
	SampleRate  int    `yaml:"sample_rate"`
}

type CameraConfig struct {
	// Source is webcam, webrtc, signalling, file or none.
	Source        string `yaml:"source"`
	Device        int    `yaml:"device"`
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	FPS           int    `yaml:"fps"`
	SignallingURL string `yaml:"signalling_url"`
	Producer      string `yaml:"producer"`
	ImagePath     string `yaml:"image_path"`
}

type DetectionConfig struct {
	Enabled    bool    `yaml:"enabled"`
	ModelPath  string  `yaml:"model_path"`
	Confidence float64 `yaml:"confidence"`
}

type HistoryConfig struct {
	// Backend is memory, file or redis.
	Backend  string        `yaml:"backend"`
	Dir      string        `yaml:"dir"`
	RedisURL string        `yaml:"redis_url"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads the YAML file at path (optional), expands ${VAR}
// references, applies environment overrides and defaults, and validates.
// A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := Parse([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg without applying defaults.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setIfEmpty(&c.Gemini.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	setIfEmpty(&c.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setIfEmpty(&c.TTS.OpenAIKey, "OPENAI_API_KEY")
	setIfEmpty(&c.TTS.GoogleAPIKey, "GOOGLE_TTS_API_KEY", "GOOGLE_API_KEY")
	setIfEmpty(&c.Translate.APIKey, "GOOGLE_TRANSLATE_API_KEY", "GOOGLE_API_KEY")
	setIfEmpty(&c.Speech.APIKey, "GOOGLE_SPEECH_API_KEY")
	setIfEmpty(&c.History.RedisURL, "REDIS_URL")

	if addr := os.Getenv("SURADAS_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		c.Log.Level = lvl
	}
}

func setIfEmpty(dst *string, keys ...string) {
	if *dst != "" {
		return
	}
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			*dst = v
			return
		}
	}
}

func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8501"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-1.5-pro"
	}
	if c.Gemini.VisionModel == "" {
		c.Gemini.VisionModel = c.Gemini.Model
	}
	if c.Gemini.MaxTokens == 0 {
		c.Gemini.MaxTokens = 1024
	}
	if c.Gemini.Temperature == 0 {
		c.Gemini.Temperature = 0.7
	}
	if c.Gemini.Timeout == 0 {
		c.Gemini.Timeout = 60 * time.Second
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-3-7-sonnet-latest"
	}
	if c.Translate.Backend == "" {
		c.Translate.Backend = "gemini"
	}
	if c.Geo.URL == "" {
		c.Geo.URL = "https://ipapi.co/json"
	}
	if c.Speech.Recognizer == "" {
		c.Speech.Recognizer = "google"
	}
	if c.Speech.Language == "" {
		c.Speech.Language = "en-US"
	}
	if c.Speech.ListenTimeout == 0 {
		c.Speech.ListenTimeout = 5 * time.Second
	}
	if c.Speech.PauseThreshold == 0 {
		c.Speech.PauseThreshold = 800 * time.Millisecond
	}
	if c.Speech.MaxPhrase == 0 {
		c.Speech.MaxPhrase = 25 * time.Second
	}
	if c.Speech.EnergyThreshold == 0 {
		c.Speech.EnergyThreshold = 450
	}
	if len(c.TTS.Providers) == 0 {
		c.TTS.Providers = []string{"espeak"}
	}
	if c.TTS.Language == "" {
		c.TTS.Language = "en-US"
	}
	if c.Audio.Backend == "" {
		c.Audio.Backend = "auto"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Camera.Source == "" {
		c.Camera.Source = "webrtc"
	}
	if c.Camera.Width == 0 {
		c.Camera.Width = 1280
	}
	if c.Camera.Height == 0 {
		c.Camera.Height = 720
	}
	if c.Camera.FPS == 0 {
		c.Camera.FPS = 15
	}
	if c.Camera.Producer == "" {
		c.Camera.Producer = "camera"
	}
	if c.Detection.ModelPath == "" {
		c.Detection.ModelPath = "models/yolov8n.onnx"
	}
	if c.Detection.Confidence == 0 {
		c.Detection.Confidence = 0.5
	}
	if c.History.Backend == "" {
		c.History.Backend = "memory"
	}
	if c.History.Dir == "" {
		c.History.Dir = ".suradas/history"
	}
	if c.History.Prefix == "" {
		c.History.Prefix = "suradas:history:"
	}
}

// Validate checks that the configuration is internally consistent.
// Missing API keys are reported by the provider that needs them.
func (c *Config) Validate() error {
	switch c.Translate.Backend {
	case "gemini", "google":
	default:
		return &ConfigError{Field: "translate.backend", Message: fmt.Sprintf("unknown backend %q", c.Translate.Backend)}
	}

	switch c.Speech.Recognizer {
	case "google", "cloud":
	default:
		return &ConfigError{Field: "speech.recognizer", Message: fmt.Sprintf("unknown recognizer %q", c.Speech.Recognizer)}
	}

	for _, p := range c.TTS.Providers {
		switch strings.ToLower(p) {
		case "espeak", "openai", "google", "none":
		default:
			return &ConfigError{Field: "tts.providers", Message: fmt.Sprintf("unknown provider %q", p)}
		}
	}

	switch c.Camera.Source {
	case "webcam", "webrtc", "signalling", "file", "none":
	default:
		return &ConfigError{Field: "camera.source", Message: fmt.Sprintf("unknown source %q", c.Camera.Source)}
	}
	if c.Camera.Source == "signalling" && c.Camera.SignallingURL == "" {
		return &ConfigError{Field: "camera.signalling_url", Message: "required when camera.source is signalling"}
	}
	if c.Camera.Source == "file" && c.Camera.ImagePath == "" {
		return &ConfigError{Field: "camera.image_path", Message: "required when camera.source is file"}
	}

	switch c.History.Backend {
	case "memory", "file":
	case "redis":
		if c.History.RedisURL == "" {
			return &ConfigError{Field: "history.redis_url", Message: "required when history.backend is redis (or set REDIS_URL)"}
		}
	default:
		return &ConfigError{Field: "history.backend", Message: fmt.Sprintf("unknown backend %q", c.History.Backend)}
	}

	if c.Speech.ListenTimeout < 0 || c.Speech.PauseThreshold < 0 || c.Speech.MaxPhrase < 0 {
		return &ConfigError{Field: "speech", Message: "durations must not be negative"}
	}
	return nil
}
