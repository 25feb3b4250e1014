package main

// #region imports
import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/qec-controller/internal/history"
	"github.com/danielpatrickdp/qec-controller/internal/metrics"
)

// #endregion

// #region main

func main() {
	dbPath := flag.String("db", "", "path to qec_history.db")
	runID := flag.String("run", "", "show one run's cycles and recomputed metrics")
	last := flag.Int("last", 20, "show N most recent runs")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/qec_history.db [--run id] [--last N] [--json]")
		os.Exit(2)
	}

	store, err := history.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *runID != "" {
		err = runDetailMode(store, *runID, *jsonOut)
	} else {
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type runRowOut struct {
	RunID     string  `json:"run_id"`
	StartedAt string  `json:"started_at"`
	Status    string  `json:"status"`
	NumCycles int     `json:"num_cycles"`
	Shots     int     `json:"shots"`
	LogErr    float64 `json:"logical_error_rate"`
	CorrOK    float64 `json:"correction_success_rate"`
}

func runListMode(store *history.Store, last int, jsonOut bool) error {
	runs, err := store.Runs(last)
	if err != nil {
		return err
	}

	rows := make([]runRowOut, 0, len(runs))
	for _, r := range runs {
		records, err := store.Cycles(r.RunID)
		if err != nil {
			return err
		}
		s := metrics.Summarize(records)
		rows = append(rows, runRowOut{
			RunID:     r.RunID,
			StartedAt: r.StartedAt.Format("2006-01-02 15:04:05"),
			Status:    string(r.Status),
			NumCycles: r.NumCycles,
			Shots:     r.Shots,
			LogErr:    s.LogicalErrorRate,
			CorrOK:    s.CorrectionSuccessRate,
		})
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(rows)
	}
	fmt.Printf("%-36s %-19s %-19s %7s %6s %8s %8s\n",
		"run_id", "started_at", "status", "cycles", "shots", "log_err", "corr_ok")
	for _, row := range rows {
		fmt.Printf("%-36s %-19s %-19s %7d %6d %8.4f %8.4f\n",
			row.RunID, row.StartedAt, row.Status, row.NumCycles, row.Shots, row.LogErr, row.CorrOK)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type cycleRowOut struct {
	Index      int    `json:"index"`
	Timestamp  string `json:"timestamp"`
	Syndrome   string `json:"syndrome"`
	Correction string `json:"correction"`
	WaitBefore string `json:"wait_before"`
	RoundTrip  string `json:"round_trip"`
	Success    bool   `json:"success"`
	Shots      int    `json:"shots"`
	ShotErrors int    `json:"shot_errors"`
}

func runDetailMode(store *history.Store, runID string, jsonOut bool) error {
	records, err := store.Cycles(runID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("run %s has no cycles", runID)
	}
	summary := metrics.Summarize(records)

	if jsonOut {
		rows := make([]cycleRowOut, 0, len(records))
		for _, rec := range records {
			rows = append(rows, cycleRowOut{
				Index:      rec.Index,
				Timestamp:  rec.Timestamp.Format("15:04:05.000000"),
				Syndrome:   rec.Syndrome.String(),
				Correction: string(rec.Correction),
				WaitBefore: rec.WaitBefore.String(),
				RoundTrip:  rec.RoundTrip.String(),
				Success:    rec.Success,
				Shots:      rec.LogicalShots,
				ShotErrors: rec.LogicalErrors,
			})
		}
		out := struct {
			RunID   string          `json:"run_id"`
			Summary metrics.Summary `json:"summary"`
			Cycles  []cycleRowOut   `json:"cycles"`
		}{runID, summary, rows}
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	fmt.Printf("%5s %-15s %-9s %-10s %12s %12s %7s %6s %8s\n",
		"cycle", "time", "syndrome", "correction", "wait", "rtt", "success", "shots", "shot_err")
	for _, rec := range records {
		fmt.Printf("%5d %-15s %-9s %-10s %12s %12s %7v %6d %8d\n",
			rec.Index,
			rec.Timestamp.Format("15:04:05.000000"),
			rec.Syndrome.String(),
			rec.Correction,
			rec.WaitBefore,
			rec.RoundTrip,
			rec.Success,
			rec.LogicalShots,
			rec.LogicalErrors)
	}
	fmt.Printf("\nlogical_error_rate=%.4f syndrome_reliability=%.4f correction_success_rate=%.4f\n",
		summary.LogicalErrorRate, summary.SyndromeReliability, summary.CorrectionSuccessRate)
	return nil
}

// #endregion detail-mode
