package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/outwit/pkg/gameapi"
)

// ValidSTTProviders lists the transcription providers this build knows.
var ValidSTTProviders = []string{"gateway", "whisper"}

// LoadOption customises [Load].
type LoadOption func(*loadOptions)

type loadOptions struct {
	environ map[string]string
}

// WithEnvironment replaces the process environment as the source of
// overrides. Useful in tests.
func WithEnvironment(environ map[string]string) LoadOption {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// Load builds a validated [Config]. When path is non-empty the YAML file at
// path is read first; environment variables then override file values, and
// defaults fill whatever is still unset.
func Load(path string, opts ...LoadOption) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	return finish(cfg, opts...)
}

// LoadFromReader decodes a YAML config from r, applies environment overrides
// and defaults, and validates the result.
func LoadFromReader(r io.Reader, opts ...LoadOption) (*Config, error) {
	cfg := &Config{}
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	return finish(cfg, opts...)
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

func finish(cfg *Config, opts ...LoadOption) (*Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	envOpts := env.Options{}
	if o.environ != nil {
		envOpts.Environment = o.environ
	}
	if err := env.ParseWithOptions(cfg, envOpts); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field of cfg with its default.
func ApplyDefaults(cfg *Config) {
	setDefault(&cfg.Server.LogLevel, LogInfo)

	setDefault(&cfg.Game.BaseURL, "http://localhost:8000")
	setDefault(&cfg.Game.Difficulty, string(gameapi.DifficultyEasy))
	setDefault(&cfg.Game.PirateName, "Kapitan")
	setDefault(&cfg.Game.TurnTimeout, MinTurnTimeout)
	setDefault(&cfg.Game.StartTimeout, 30*time.Second)
	setDefault(&cfg.Game.StreamTimeout, 180*time.Second)

	setDefault(&cfg.Audio.RawEncoding, "mp3")
	setDefault(&cfg.Audio.SampleRate, 16000)
	setDefault(&cfg.Audio.CompressedFormat, "mpeg")

	setDefault(&cfg.STT.Provider, "gateway")
	setDefault(&cfg.STT.Timeout, 30*time.Second)

	setDefault(&cfg.Breaker.MaxFailures, 5)
	setDefault(&cfg.Breaker.ResetTimeout, 30*time.Second)
}

func setDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if err := validateHTTPURL(cfg.Game.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("game.base_url: %w", err))
	}
	if cfg.Game.Difficulty != "" {
		if _, err := gameapi.ParseDifficulty(cfg.Game.Difficulty); err != nil {
			errs = append(errs, fmt.Errorf("game.difficulty %q is invalid; valid values: easy, medium, hard", cfg.Game.Difficulty))
		}
	}
	if cfg.Game.TurnTimeout < MinTurnTimeout {
		errs = append(errs, fmt.Errorf("game.turn_timeout %s is below the minimum of %s", cfg.Game.TurnTimeout, MinTurnTimeout))
	}
	if cfg.Game.StartTimeout < 0 || cfg.Game.StreamTimeout < 0 {
		errs = append(errs, errors.New("game timeouts must not be negative"))
	}

	enc := strings.ToLower(cfg.Audio.RawEncoding)
	if enc != "" && !strings.HasPrefix(enc, "pcm") && !strings.HasPrefix(enc, "mp3") {
		errs = append(errs, fmt.Errorf("audio.raw_encoding %q is invalid; expected pcm, pcm_<rate>, or an mp3 tag", cfg.Audio.RawEncoding))
	}
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if strings.Contains(cfg.Audio.CompressedFormat, "/") {
		errs = append(errs, fmt.Errorf("audio.compressed_format %q must be a MIME subtype like \"mpeg\"", cfg.Audio.CompressedFormat))
	}

	if cfg.STT.Provider != "" && !slices.Contains(ValidSTTProviders, cfg.STT.Provider) {
		slog.Warn("unknown stt provider; it must be registered before use",
			"name", cfg.STT.Provider,
			"known", ValidSTTProviders,
		)
	}
	if cfg.STT.Provider == "whisper" && cfg.STT.BaseURL == "" {
		errs = append(errs, errors.New("stt.base_url is required when stt.provider is whisper"))
	}
	if cfg.STT.BaseURL != "" {
		if err := validateHTTPURL(cfg.STT.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("stt.base_url: %w", err))
		}
	}
	if cfg.STT.Timeout < 0 {
		errs = append(errs, fmt.Errorf("stt.timeout %s must not be negative", cfg.STT.Timeout))
	}

	if cfg.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("breaker.max_failures %d must not be negative", cfg.Breaker.MaxFailures))
	}
	if cfg.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("breaker.reset_timeout %s must not be negative", cfg.Breaker.ResetTimeout))
	}

	return errors.Join(errs...)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}
