// Command kirtan serves live line following for Gurmukhi and Devanagari
// recitation: transliteration, corpus line matching and a WebSocket follow
// endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MrWong99/kirtan/internal/app"
	"github.com/MrWong99/kirtan/internal/config"
	"github.com/MrWong99/kirtan/internal/follow"
	"github.com/MrWong99/kirtan/internal/observe"
	"github.com/MrWong99/kirtan/pkg/provider/stt"
	"github.com/MrWong99/kirtan/pkg/provider/stt/linefeed"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	followPath := flag.String("follow", "", `replay a transcript file ("-" for stdin) through the follower; overrides the stt section`)
	language := flag.String("language", "", "recognition language of -follow (default pa-IN)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "kirtan: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "kirtan: %v\n", err)
		}
		return 1
	}
	if *followPath != "" {
		cfg.STT = config.ProviderEntry{
			Name:    "linefeed",
			Options: map[string]any{"path": *followPath},
		}
		if *language != "" {
			cfg.STT.Options["language"] = *language
		}
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(app.SlogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("kirtan starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Registerer:     promReg,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	opts := []app.Option{
		app.WithRegistry(reg),
		app.WithGatherer(promReg),
		app.WithLogLevel(&level),
		app.WithConfigPath(*configPath),
	}
	if *followPath != "" {
		opts = append(opts, app.WithUpdateHandler(printUpdate(os.Stdout)))
	}
	application, err := app.New(ctx, cfg, providers, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready; press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping")

	code := 0
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		code = 1
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return code
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// linefeed replays already-recognized text. options.path names the
	// transcript file; "-" or empty reads stdin.
	reg.RegisterSTT("linefeed", func(entry config.ProviderEntry) (stt.Provider, error) {
		path := entry.StringOption("path", "-")
		if path == "-" {
			return linefeed.New(os.Stdin), nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("linefeed: %w", err)
		}
		return linefeed.New(f), nil
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildProviders instantiates the providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.STT)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("provider not registered; skipping", "kind", "stt", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		} else {
			ps.STT = p
			slog.Info("provider created", "kind", "stt", "name", name)
		}
	}

	return ps, nil
}

// ── Follow output ─────────────────────────────────────────────────────────────

// printUpdate writes one line per matched update: index, score, the matched
// line and the Latin rendering of what was heard.
func printUpdate(w io.Writer) func(follow.Update) {
	return func(u follow.Update) {
		switch {
		case u.Match != nil:
			fmt.Fprintf(w, "%4d  %.2f  %s  (%s)\n", u.Match.Index, u.Match.Score, u.Line, u.Latin)
		case u.Final:
			fmt.Fprintf(w, "      ----  %s\n", u.Transcript)
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         kirtan · startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Listen addr", cfg.Server.ListenAddr)
	printRow("Scorer", string(cfg.Matcher.Scorer))
	printRow("Min score", fmt.Sprintf("%.2f", cfg.Matcher.MinScore))
	printRow("Corpus files", fmt.Sprintf("%d", len(cfg.Corpora)))
	if cfg.Corpus.PostgresDSN != "" {
		printRow("Stored corpora", fmt.Sprintf("%d", len(cfg.Corpus.Names)))
	} else {
		printRow("Stored corpora", "(disabled)")
	}
	if cfg.STT.Name != "" {
		printRow("STT", cfg.STT.Name)
	} else {
		printRow("STT", "(not configured)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}
