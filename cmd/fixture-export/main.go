package main

// #region imports
import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/qec-controller/internal/history"
	"github.com/danielpatrickdp/qec-controller/internal/sim"
	"gopkg.in/yaml.v3"
)

// #endregion

// #region main

// fixture-export turns one stored run's syndrome history into a replay
// fixture, so live traces can be re-run offline against different
// scheduler and error-model settings.
func main() {
	dbPath := flag.String("db", "", "path to qec_history.db")
	runID := flag.String("run", "", "run to export")
	outPath := flag.String("out", "", "output fixture path (default stdout)")
	flag.Parse()

	if *dbPath == "" || *runID == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/qec_history.db --run id [--out fixture.yaml]")
		os.Exit(2)
	}

	store, err := history.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	records, err := store.Cycles(*runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Fprintf(os.Stderr, "run %s has no cycles\n", *runID)
		os.Exit(1)
	}

	fixture := sim.Fixture{
		Description: fmt.Sprintf("exported from run %s", *runID),
	}
	for _, rec := range records {
		if !rec.Success {
			continue // failed cycles carry no measured syndrome
		}
		fixture.Syndromes = append(fixture.Syndromes, [2]uint8{rec.Syndrome.S0, rec.Syndrome.S1})
	}

	raw, err := yaml.Marshal(fixture)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal fixture: %v\n", err)
		os.Exit(1)
	}

	if *outPath == "" {
		os.Stdout.Write(raw)
		return
	}
	if err := os.WriteFile(*outPath, raw, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write fixture: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d syndromes to %s\n", len(fixture.Syndromes), *outPath)
}

// #endregion main
