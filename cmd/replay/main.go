package main

// #region imports
import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/qec-controller/internal/code"
	"github.com/danielpatrickdp/qec-controller/internal/config"
	"github.com/danielpatrickdp/qec-controller/internal/noise"
	"github.com/danielpatrickdp/qec-controller/internal/schedule"
	"github.com/danielpatrickdp/qec-controller/internal/sim"
)

// #endregion

// #region main

// replay runs a recorded syndrome sequence through the decoder, error
// model, and scheduler offline, with no hardware attached. Useful for
// tuning water marks and learning rates against captured traces.
func main() {
	fixturePath := flag.String("fixture", "", "YAML syndrome fixture to replay")
	configPath := flag.String("config", "", "controller config YAML (empty = defaults)")
	t1 := flag.Duration("t1", time.Second, "assumed minimum T1 for the coherence ceiling")
	t2 := flag.Duration("t2", time.Second, "assumed minimum T2 for the coherence ceiling")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture trace.yaml [--config controller.yaml] [--t1 1s] [--t2 1s]")
		os.Exit(2)
	}

	fixture, err := sim.LoadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := replay(fixture, cfg, schedule.Coherence{T1Min: *t1, T2Min: *t2}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region replay

func replay(fixture sim.Fixture, cfg config.File, coh schedule.Coherence) error {
	ctrl := cfg.Controller()
	sched, err := schedule.New(ctrl.Schedule, coh)
	if err != nil {
		return err
	}
	est := noise.NewEstimate(ctrl.Noise)

	if fixture.Description != "" {
		fmt.Printf("# %s\n", fixture.Description)
	}
	fmt.Printf("%5s %-9s %-10s %8s %12s\n", "cycle", "syndrome", "correction", "risk", "next_delay")

	for i, syn := range fixture.Script() {
		correction, err := code.Decode(syn)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", i, err)
		}
		est = noise.Observe(est, syn, ctrl.Noise)
		risk := noise.AggregateRisk(est, ctrl.Noise)

		delay, err := sched.NextDelay(risk, syn.Weight())
		var cohErr *schedule.CoherenceBudgetError
		if errors.As(err, &cohErr) {
			fmt.Printf("%5d %-9s %-10s %8.4f %12s\n", i, syn.String(), correction, risk, "BUDGET")
			return fmt.Errorf("cycle %d: %w", i, cohErr)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%5d %-9s %-10s %8.4f %12s\n", i, syn.String(), correction, risk, delay)
	}

	state := sched.State()
	fmt.Printf("\nfinal: delay=%v weight_ema=%.3f adjust=%.3fx ceiling=%v\n",
		state.Delay, state.WeightEMA, state.AdjustFactor, state.Ceiling)
	return nil
}

// #endregion replay
