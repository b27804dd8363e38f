// Package config provides the configuration schema, loader, and
// transcription provider registry for the outwit client.
//
// Settings come from an optional YAML file, are overridden by environment
// variables, and are then completed with defaults and validated. See [Load].
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Game    GameConfig    `yaml:"game"`
	Audio   AudioConfig   `yaml:"audio"`
	STT     STTConfig     `yaml:"stt"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level" env:"LOG_LEVEL"`

	// TelemetryAddr is the listen address for /metrics, /healthz, and
	// /readyz (e.g. ":9090"). Empty disables the listener.
	TelemetryAddr string `yaml:"telemetry_addr" env:"OUTWIT_TELEMETRY_ADDR"`
}

// GameConfig describes how to reach the game service and what a new game
// defaults to.
type GameConfig struct {
	// BaseURL is the game service root. Default: http://localhost:8000.
	BaseURL string `yaml:"base_url" env:"API_BASE_URL"`

	// Difficulty is the default for /start. Default: easy.
	Difficulty string `yaml:"difficulty" env:"GAME_DIFFICULTY"`

	// PirateName is the default for /start. Default: Kapitan.
	PirateName string `yaml:"pirate_name" env:"GAME_PIRATE_NAME"`

	// TurnTimeout bounds one send-turn round trip. It may not be lower than
	// two minutes because the server generates the reply with an LLM.
	TurnTimeout time.Duration `yaml:"turn_timeout" env:"TURN_TIMEOUT"`

	// StartTimeout bounds a start-game call. Default: 30s.
	StartTimeout time.Duration `yaml:"start_timeout" env:"START_TIMEOUT"`

	// StreamTimeout bounds collecting one reply audio stream. Default: 180s.
	StreamTimeout time.Duration `yaml:"stream_timeout" env:"STREAM_TIMEOUT"`
}

// MinTurnTimeout is the lowest accepted [GameConfig.TurnTimeout].
const MinTurnTimeout = 120 * time.Second

// AudioConfig describes the reply audio the server produces.
type AudioConfig struct {
	// RawEncoding is the server's audio output tag: "pcm", "pcm_<rate>", or
	// an "mp3..." tag. Default: mp3.
	RawEncoding string `yaml:"raw_encoding" env:"AUDIO_RAW_ENCODING"`

	// SampleRate applies to bare "pcm" output. Default: 16000.
	SampleRate int `yaml:"sample_rate" env:"AUDIO_SAMPLE_RATE"`

	// CompressedFormat is the MIME subtype for compressed output.
	// Default: mpeg.
	CompressedFormat string `yaml:"compressed_format" env:"AUDIO_COMPRESSED_FORMAT"`

	// LegacyOnly ignores streaming endpoints and asks the server for a
	// direct audio_url on typed turns instead.
	LegacyOnly bool `yaml:"legacy_only" env:"AUDIO_LEGACY_ONLY"`
}

// STTConfig selects and configures the transcription provider.
type STTConfig struct {
	// Provider is a name registered in the [Registry]. Default: gateway.
	Provider string `yaml:"provider" env:"STT_PROVIDER"`

	// BaseURL overrides the provider endpoint. The gateway provider defaults
	// to [GameConfig.BaseURL]; whisper requires it.
	BaseURL string `yaml:"base_url" env:"STT_BASE_URL"`

	// Language is a BCP-47 hint, e.g. "en". Empty lets the provider detect.
	Language string `yaml:"language" env:"STT_LANGUAGE"`

	// Model selects a model where the provider supports it.
	Model string `yaml:"model" env:"STT_MODEL"`

	// Timeout bounds one transcription. Default: 30s.
	Timeout time.Duration `yaml:"timeout" env:"STT_TIMEOUT"`
}

// BreakerConfig tunes the circuit breakers around the remote services.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens a breaker.
	// Default: 5.
	MaxFailures int `yaml:"max_failures" env:"BREAKER_MAX_FAILURES"`

	// ResetTimeout is how long an open breaker rejects calls. Default: 30s.
	ResetTimeout time.Duration `yaml:"reset_timeout" env:"BREAKER_RESET_TIMEOUT"`
}
