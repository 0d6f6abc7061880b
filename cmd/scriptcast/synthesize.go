package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/scriptcast/internal/config"
	"github.com/MrWong99/scriptcast/internal/health"
	"github.com/MrWong99/scriptcast/internal/observe"
	"github.com/MrWong99/scriptcast/internal/voice"
	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/audio/mixer"
)

// shutdownTimeout bounds the metrics server and telemetry shutdown.
const shutdownTimeout = 5 * time.Second

type synthesizeOptions struct {
	script      string
	out         string
	metricsAddr string
}

func newSynthesizeCmd() *cobra.Command {
	var opts synthesizeOptions
	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Render a dialogue script into one WAV file",
		Long: "Render a dialogue script into one WAV file.\n\n" +
			"The script is a YAML or JSON list of turns, each with a speaker, the text\n" +
			"and optional voice_characteristics (tone, pace, emphasis). Real speech\n" +
			"backends are tried in the order local, os, cloud; a synthetic voice is\n" +
			"used when none of them can render a turn.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSynthesize(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.script, "script", "s", "", `script file, or "-" for stdin`)
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output WAV path, relative to output.dir (default: a generated name)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics, /healthz, /readyz and /status on this address during the run")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}

func runSynthesize(cmd *cobra.Command, opts synthesizeOptions) error {
	start := time.Now()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if opts.metricsAddr != "" {
		cfg.Server.MetricsAddr = opts.metricsAddr
	}

	turns, err := loadScript(opts.script, cmd.InOrStdin())
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	out, undoDir, err := resolveOutput(cfg.Output.Dir, opts.out, runID)
	if err != nil {
		return err
	}
	succeeded := false
	defer func() {
		if !succeeded {
			undoDir()
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = observe.WithRunID(ctx, runID)

	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(tel.MeterProvider)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	synthOpts := []voice.SynthesizerOption{
		voice.WithRegistry(voice.NewRegistry(slog.Default())),
		voice.WithSynthetic(newSynthetic(cfg.Backends.Synthetic)),
		voice.WithMetrics(metrics),
	}
	if chain := buildChain(cfg, reg, metrics); chain != nil {
		synthOpts = append(synthOpts, voice.WithChain(chain))
	}

	progress := &health.Progress{}
	mgr := voice.NewManager(voice.NewSynthesizer(synthOpts...),
		voice.WithAssembler(mixer.New(mixer.WithPause(cfg.Output.Pause()))),
		voice.WithProgress(progress),
		voice.WithOutputFormat(audio.Format{SampleRate: cfg.Output.SampleRate, Channels: 1}),
	)
	for _, p := range cfg.Personas {
		mgr.Preload(p.Profile())
	}

	observe.Logger(ctx).Info("synthesis starting",
		"turns", len(turns),
		"out", out,
	)

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	if addr := cfg.Server.MetricsAddr; addr != "" {
		srv := newMetricsServer(gctx, addr, tel, metrics, progress, filepath.Dir(out))
		g.Go(func() error {
			slog.Info("metrics listener started", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Warn("metrics listener stopped, synthesis continues", "addr", addr, "err", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-done:
			case <-gctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	var path string
	g.Go(func() error {
		defer close(done)
		var err error
		path, err = mgr.SynthesizeScript(gctx, turns, out)
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	succeeded = true
	return printSummary(cmd.OutOrStdout(), path, len(turns), time.Since(start))
}

// resolveOutput returns the absolute output path and creates its directory.
// An empty out selects a name derived from the run id. The returned undo
// removes the directories this call created, provided they are still empty.
func resolveOutput(dir, out, runID string) (path string, undo func(), err error) {
	if out == "" {
		out = "scriptcast-" + runID[:8] + ".wav"
	}
	out, err = homedir.Expand(out)
	if err != nil {
		return "", nil, fmt.Errorf("expand output path: %w", err)
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(dir, out)
	}
	if out, err = filepath.Abs(out); err != nil {
		return "", nil, fmt.Errorf("resolve output path: %w", err)
	}

	var created []string
	for d := filepath.Dir(out); ; d = filepath.Dir(d) {
		if _, err := os.Stat(d); err == nil || !errors.Is(err, os.ErrNotExist) {
			break
		}
		created = append(created, d)
		if parent := filepath.Dir(d); parent == d {
			break
		}
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", nil, fmt.Errorf("create output directory: %w", err)
	}
	undo = func() {
		// Leaf first; os.Remove refuses non-empty directories.
		for _, d := range created {
			if err := os.Remove(d); err != nil {
				return
			}
		}
	}
	return out, undo, nil
}

// newMetricsServer builds the HTTP server for /metrics and the health
// endpoints.
func newMetricsServer(ctx context.Context, addr string, tel *observe.Telemetry, metrics *observe.Metrics, progress *health.Progress, outDir string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", tel.MetricsHandler())

	h := health.New(health.Checker{
		Name: "output_dir",
		Check: func(context.Context) error {
			fi, err := os.Stat(outDir)
			if err != nil {
				return err
			}
			if !fi.IsDir() {
				return fmt.Errorf("%s is not a directory", outDir)
			}
			return nil
		},
	}).WithProgress(progress)
	h.Register(mux)

	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

// printSummary reports the written file.
func printSummary(w io.Writer, path string, turns int, elapsed time.Duration) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat output: %w", err)
	}
	fmt.Fprintf(w, "wrote %s (%s, %d turns) in %s\n",
		path, humanize.Bytes(uint64(fi.Size())), turns, elapsed.Round(time.Millisecond))
	return nil
}
