package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/n0madic/go-diffusive-gibbs/chain"
	dgibbs "github.com/n0madic/go-diffusive-gibbs/diffusive-gibbs"
	"github.com/n0madic/go-diffusive-gibbs/rngkey"
	"github.com/n0madic/go-diffusive-gibbs/tree"
)

func runChains(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Run.Seed = seed
	}
	if chains > 0 {
		cfg.Run.Chains = chains
	}
	if transitions > 0 {
		cfg.Run.Transitions = transitions
	}

	runID := uuid.NewString()[:8]
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	})).With("run_id", runID)

	sampler, err := cfg.NewSampler()
	if err != nil {
		return err
	}

	options := []chain.Option{chain.WithLogger(logger)}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		options = append(options, chain.WithMetrics(chain.NewMetrics(reg)))
		srv := serveMetrics(metricsAddr, reg, logger)
		defer shutdown(srv, logger)
	}

	runner, err := chain.NewRunner(sampler, cfg.Run, options...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result *chain.Result
	if resume != "" {
		states, err := readCheckpoint(resume)
		if err != nil {
			return err
		}
		logger.Info("resuming from checkpoint", "path", resume, "chains", len(states))
		result, err = runner.Resume(ctx, states)
		if err != nil {
			return err
		}
	} else {
		result, err = runner.Run(ctx, initialPositions(cfg))
		if err != nil {
			return err
		}
	}

	if checkpoint != "" {
		if err := writeCheckpoint(checkpoint, result.FinalStates()); err != nil {
			return err
		}
		logger.Info("checkpoint written", "path", checkpoint)
	}

	stats := sampler.GetStats()
	logger.Info("sampler stats",
		"transitions", stats["n_transitions"],
		"init_acceptance_rate", stats["init_acceptance_rate"])

	return printSummary(cmd.OutOrStdout(), result)
}

// initialPositions draws standard normal starts. They use the complemented
// seed so that they never share a stream with the chain keys.
func initialPositions(cfg Config) []tree.Tree {
	keys := rngkey.New(^cfg.Run.Seed).Split(cfg.Run.Chains)
	ref := tree.New(make([]float64, cfg.Target.Dim))
	positions := make([]tree.Tree, len(keys))
	for i, k := range keys {
		positions[i] = tree.GaussianNoise(k.Source(), ref, 0, 1)
	}
	return positions
}

func printSummary(w io.Writer, result *chain.Result) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "coord\tmean\tvariance\tr_hat")
	for _, s := range result.Summary() {
		fmt.Fprintf(tw, "%d\t%.4f\t%.4f\t%.4f\n", s.Index, s.Mean, s.Variance, s.RHat)
	}
	return tw.Flush()
}

func readCheckpoint(path string) ([]dgibbs.GibbsState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()
	return dgibbs.LoadStates(f)
}

func writeCheckpoint(path string, states []dgibbs.GibbsState) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	if err := dgibbs.SaveStates(f, states); err != nil {
		f.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return f.Close()
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}

func shutdown(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown", "error", err)
	}
}
