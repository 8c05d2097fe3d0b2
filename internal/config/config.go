package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config stores runtime configuration resolved once at process start.
type Config struct {
	Backend BackendConfig
	Audio   AudioConfig
	Log     LogConfig
}

type BackendConfig struct {
	BaseURL string
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type LogConfig struct {
	Level string
	JSON  bool
}

// Overrides carries command-line values that take precedence over the
// environment. Empty fields are ignored.
type Overrides struct {
	BaseURL     string
	InputDevice string
	LogLevel    string
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Backend: BackendConfig{
			BaseURL: envOrDefault("TURO_API_URL", "http://localhost:8000"),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("TURO_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("TURO_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("TURO_AUDIO_INPUT_DEVICE"),
				os.Getenv("PULSE_SOURCE"),
				"default",
			),
			SampleRate: envOrDefaultInt("TURO_SAMPLE_RATE", 48000),
			Channels:   envOrDefaultInt("TURO_CHANNELS", 1),
		},
		Log: LogConfig{
			Level: envOrDefault("TURO_LOG_LEVEL", "info"),
			JSON:  envOrDefaultBool("TURO_LOG_JSON", false),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 48000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}

	return cfg.Apply(Overrides{})
}

// Apply layers overrides on top of the loaded values and validates the result.
func (c Config) Apply(o Overrides) (Config, error) {
	c.Backend.BaseURL = firstNonEmpty(o.BaseURL, c.Backend.BaseURL)
	c.Audio.InputDevice = firstNonEmpty(o.InputDevice, c.Audio.InputDevice)
	c.Log.Level = firstNonEmpty(o.LogLevel, c.Log.Level)

	baseURL, err := normalizeBaseURL(c.Backend.BaseURL)
	if err != nil {
		return Config{}, err
	}
	c.Backend.BaseURL = baseURL
	return c, nil
}

func normalizeBaseURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid TURO_API_URL %q: %w", raw, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("invalid TURO_API_URL %q: expected an absolute http(s) url", raw)
	}
	return strings.TrimSuffix(parsed.String(), "/"), nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
