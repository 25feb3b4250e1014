package main

// #region imports
import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/danielpatrickdp/qec-controller/internal/config"
	"github.com/danielpatrickdp/qec-controller/internal/history"
	"github.com/danielpatrickdp/qec-controller/internal/metrics"
	"github.com/danielpatrickdp/qec-controller/internal/orchestrator"
	"github.com/danielpatrickdp/qec-controller/internal/sim"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
)

// #endregion

// #region main

func main() {
	configPath := flag.String("config", envOr("QEC_CONFIG", ""), "controller config YAML (empty = defaults)")
	dbPath := flag.String("db", envOr("QEC_DB", "qec_history.db"), "history database path")
	runs := flag.Int("runs", 1, "repeated runs per logical qubit, for aggregate stats")
	logical := flag.Int("logical", 1, "independent logical qubits to run in parallel")
	flipProb := flag.Float64("flip-prob", 0.0, "simulated per-qubit bit-flip probability per cycle")
	seed := flag.Int64("seed", 0, "simulator RNG seed")
	benchmark := flag.Bool("benchmark", false, "run the per-qubit error-injection scenario sweep instead")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config rejected", "err", err)
		os.Exit(2)
	}

	store, err := history.NewStore(*dbPath)
	if err != nil {
		slog.Error("open history store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *benchmark {
		if err := runBenchmark(ctx, cfg, store, *seed); err != nil {
			slog.Error("benchmark failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := runControllers(ctx, cfg, store, *logical, *runs, *flipProb, *seed); err != nil {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}
}

// #endregion main

// #region run-controllers

// runControllers drives one controller per logical qubit, fully in
// parallel: independent backends, orchestrators, and error models, no
// shared mutable state beyond the history store.
func runControllers(ctx context.Context, cfg config.File, store *history.Store, logical, runs int, flipProb float64, seed int64) error {
	var mu sync.Mutex // serializes store writes and summary collection
	summaries := make([]metrics.Summary, 0, logical*runs)

	g, ctx := errgroup.WithContext(ctx)
	for q := 0; q < logical; q++ {
		q := q
		g.Go(func() error {
			bc := sim.DefaultBackendConfig()
			bc.FlipProb = flipProb
			bc.Seed = seed + int64(q)
			backend := sim.NewBackend(bc)

			ctrl, err := orchestrator.New(backend, cfg.Controller(), slog.With("logical_qubit", q))
			if err != nil {
				return err
			}

			for r := 0; r < runs; r++ {
				result, runErr := ctrl.Run(ctx, cfg.Run.Cycles, cfg.Run.Shots)
				summary := metrics.Summarize(result.Records)

				mu.Lock()
				persistErr := persistRun(store, cfg, result)
				summaries = append(summaries, summary)
				mu.Unlock()
				if persistErr != nil {
					return persistErr
				}
				if runErr != nil {
					return runErr
				}
				if result.Status == orchestrator.StatusStopped {
					return nil
				}
			}
			return nil
		})
	}
	err := g.Wait()

	printStats(metrics.Aggregate(summaries))
	return err
}

// #endregion run-controllers

// #region benchmark

// runBenchmark runs the scenario sweep: one clean run,
// then one run per data qubit with a deterministic flip injected at
// the first cycle, comparing logical error rates.
func runBenchmark(ctx context.Context, cfg config.File, store *history.Store, seed int64) error {
	scenarios := []struct {
		name   string
		inject map[int][]int
	}{
		{"no_error", nil},
		{"error_qubit_0", map[int][]int{0: {0}}},
		{"error_qubit_1", map[int][]int{0: {1}}},
		{"error_qubit_2", map[int][]int{0: {2}}},
	}

	fmt.Println("scenario          logical_err  syndrome_rel  correction_ok  cycles")
	for _, sc := range scenarios {
		bc := sim.DefaultBackendConfig()
		bc.Seed = seed
		bc.InjectAt = sc.inject
		backend := sim.NewBackend(bc)

		ctrl, err := orchestrator.New(backend, cfg.Controller(), slog.With("scenario", sc.name))
		if err != nil {
			return err
		}
		result, runErr := ctrl.Run(ctx, cfg.Run.Cycles, cfg.Run.Shots)
		if err := persistRun(store, cfg, result); err != nil {
			return err
		}
		if runErr != nil {
			return runErr
		}

		s := metrics.Summarize(result.Records)
		fmt.Printf("%-17s %11.4f %13.4f %14.4f %7d\n",
			sc.name, s.LogicalErrorRate, s.SyndromeReliability, s.CorrectionSuccessRate, s.Cycles)
	}
	return nil
}

// #endregion benchmark

// #region persistence

func persistRun(store *history.Store, cfg config.File, result orchestrator.RunResult) error {
	if result.RunID == "" {
		return nil // run rejected before it started
	}
	err := store.InsertRun(history.RunRow{
		RunID:     result.RunID,
		StartedAt: time.Now().UTC(),
		Status:    result.Status,
		NumCycles: cfg.Run.Cycles,
		Shots:     cfg.Run.Shots,
	})
	if err != nil {
		return fmt.Errorf("persist run %s: %w", result.RunID, err)
	}
	if err := store.AppendCycles(result.Records); err != nil {
		return fmt.Errorf("persist cycles for %s: %w", result.RunID, err)
	}
	return nil
}

// #endregion persistence

// #region output

func printStats(stats metrics.RunStats) {
	if stats.Runs == 0 {
		return
	}
	fmt.Printf("runs: %d\n", stats.Runs)
	fmt.Printf("%-24s %8s %8s %8s %8s\n", "metric", "mean", "std", "min", "max")
	printDist := func(name string, d metrics.Distribution) {
		fmt.Printf("%-24s %8.4f %8.4f %8.4f %8.4f\n", name, d.Mean, d.Std, d.Min, d.Max)
	}
	printDist("logical_error_rate", stats.LogicalErrorRate)
	printDist("syndrome_reliability", stats.SyndromeReliability)
	printDist("correction_success_rate", stats.CorrectionSuccessRate)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion output
