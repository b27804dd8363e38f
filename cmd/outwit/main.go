// Command outwit is a terminal client for the Outwit the AI Pirate game.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/outwit/internal/app"
	"github.com/MrWong99/outwit/internal/config"
	"github.com/MrWong99/outwit/internal/health"
	"github.com/MrWong99/outwit/internal/observe"
	"github.com/MrWong99/outwit/internal/resilience"
	"github.com/MrWong99/outwit/pkg/gameapi"
	"github.com/MrWong99/outwit/pkg/provider/stt"
	"github.com/MrWong99/outwit/pkg/provider/stt/gateway"
	"github.com/MrWong99/outwit/pkg/provider/stt/whisper"
	"github.com/MrWong99/outwit/pkg/provider/tts/sse"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to an optional YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "outwit: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "outwit: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("outwit starting",
		"version", version,
		"api_base_url", cfg.Game.BaseURL,
		"stt_provider", cfg.STT.Provider,
		"legacy_audio", cfg.Audio.LegacyOnly,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Services ──────────────────────────────────────────────────────────────
	gameBreaker := newBreaker(cfg, "game", metrics)
	sttBreaker := newBreaker(cfg, "stt", metrics)

	game, err := gameapi.New(cfg.Game.BaseURL,
		gameapi.WithHTTPClient(newHTTPClient("game", metrics)),
		gameapi.WithTurnTimeout(cfg.Game.TurnTimeout),
		gameapi.WithStartTimeout(cfg.Game.StartTimeout),
		gameapi.WithBreaker(gameBreaker),
	)
	if err != nil {
		slog.Error("failed to create game client", "err", err)
		return 1
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg.Game.BaseURL, sttBreaker, metrics)
	transcriber, err := reg.CreateSTT(cfg.STT)
	if err != nil {
		slog.Error("failed to create stt provider", "name", cfg.STT.Provider, "err", err)
		return 1
	}

	collector := sse.New(
		sse.WithTimeout(cfg.Game.StreamTimeout),
		sse.WithHTTPClient(newHTTPClient("tts", metrics)),
	)

	application, err := app.New(cfg, app.Providers{Game: game, STT: transcriber, TTS: collector},
		app.WithMetrics(metrics),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	if addr := cfg.Server.TelemetryAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", tel.MetricsHandler())
		health.New(
			health.PingChecker("game", game),
			health.BreakerChecker(gameBreaker),
			health.BreakerChecker(sttBreaker),
		).Register(mux)
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			slog.Info("telemetry server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("telemetry server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		defer stop()
		t := newTerminal(application, os.Stdout, cfg)
		return t.Run(gctx, os.Stdin)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the transcription backends into reg. The
// gateway backend defaults to the game service's own endpoint.
func registerBuiltinProviders(reg *config.Registry, gameBaseURL string, b *resilience.CircuitBreaker, m *observe.Metrics) {
	reg.RegisterSTT("gateway", func(c config.STTConfig) (stt.Provider, error) {
		base := c.BaseURL
		if base == "" {
			base = gameBaseURL
		}
		return gateway.New(base,
			gateway.WithTimeout(c.Timeout),
			gateway.WithHTTPClient(newHTTPClient("stt", m)),
			gateway.WithBreaker(b),
		)
	})
	reg.RegisterSTT("whisper", func(c config.STTConfig) (stt.Provider, error) {
		opts := []whisper.Option{
			whisper.WithTimeout(c.Timeout),
			whisper.WithHTTPClient(newHTTPClient("stt", m)),
			whisper.WithBreaker(b),
			whisper.WithModel(c.Model),
		}
		if c.Language != "" {
			opts = append(opts, whisper.WithLanguage(c.Language))
		}
		return whisper.New(c.BaseURL, opts...)
	})
}

func newBreaker(cfg *config.Config, name string, m *observe.Metrics) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         name,
		MaxFailures:  cfg.Breaker.MaxFailures,
		ResetTimeout: cfg.Breaker.ResetTimeout,
		OnStateChange: func(name string, _, to resilience.State) {
			m.RecordBreakerTransition(context.Background(), name, to.String())
		},
	})
}

// newHTTPClient returns a client whose requests are traced and timed under
// service. Per-request deadlines come from the callers' contexts.
func newHTTPClient(service string, m *observe.Metrics) *http.Client {
	return &http.Client{Transport: observe.Transport(http.DefaultTransport, service, m)}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// readLines feeds lines from r into the returned channel until r is
// exhausted or ctx is done. The channel is closed when reading stops.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
