package cli

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/vigilab/comptrack/internal/forces"
	"github.com/vigilab/comptrack/internal/model"
	"github.com/vigilab/comptrack/internal/plan"
	"github.com/vigilab/comptrack/internal/pvt"
	"github.com/vigilab/comptrack/internal/recorder"
	"github.com/vigilab/comptrack/internal/store"
	"github.com/vigilab/comptrack/internal/trialindex"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Plan string
	Seed int64
	Hz   float64
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <participant-id>",
		Short: "Run a simulated recording session",
		Long: `Run a full simulated session for an enrolled participant: generate
the probe schedule and buffeting forces from a session plan, drive a
synthetic subject through the tracking loop, and record everything
through the same pipeline a live session uses.

Useful for smoke-testing a deployment and for generating analysis
fixtures. The same seed always produces the same session.

Example:
  comptrack simulate 3 --plan plans/baseline.yaml --seed 42`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Plan, "plan", "", "session plan YAML (required)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "random seed")
	cmd.Flags().Float64Var(&opts.Hz, "hz", 60, "sampling rate")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

// SimulationResult summarizes a simulated session.
type SimulationResult struct {
	Participant model.ParticipantID `json:"participant"`
	Plan        string              `json:"plan"`
	Samples     int                 `json:"samples"`
	Trials      int                 `json:"trials"`
	Probes      int                 `json:"probes"`
	Metrics     pvt.Metrics         `json:"metrics"`
}

func runSimulate(opts *SimulateOptions, arg string, cmd *cobra.Command) error {
	id, err := parseParticipantArg(arg)
	if err != nil {
		return err
	}
	if opts.Hz <= 0 {
		return WrapExitError(ExitCommandError, "sampling rate must be positive", nil)
	}

	p, err := plan.Load(opts.Plan)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load plan", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	rec, err := recorder.New(cmd.Context(), st)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create recorder", err)
	}

	result, err := simulateSession(cmd.Context(), st, rec, id, p, opts.Seed, opts.Hz)
	if err != nil {
		return WrapExitError(ExitFailure, "simulation failed", err)
	}
	result.Plan = p.Name

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return out.Success(result)
	}
	return out.Success(fmt.Sprintf(
		"simulated session %q for participant %d: %d samples, %d trials, %d probes (mean RT %.3fs, %d lapses, %d timeouts)",
		p.Name, id, result.Samples, result.Trials, result.Probes,
		result.Metrics.MeanRT, result.Metrics.Lapses, result.Metrics.Timeouts))
}

// simulateSession drives a synthetic subject through the tracking loop.
// The subject counters a fraction of the perturbation each tick with some
// motor noise, responds to most probes with plausible reaction times, and
// occasionally times out.
func simulateSession(ctx context.Context, st *store.Store, rec *recorder.Recorder,
	id model.ParticipantID, p *plan.Plan, seed int64, hz float64) (*SimulationResult, error) {

	rng := rand.New(rand.NewSource(seed))

	schedule, err := pvt.GenerateSchedule(pvt.ScheduleConfig{
		Duration: p.Duration,
		MinITI:   p.PVT.MinITI,
		MaxITI:   p.PVT.MaxITI,
		Rand:     rng,
	})
	if err != nil {
		return nil, err
	}

	gen := forces.NewGenerator(
		forces.WithAdditionalForces(p.Forces.Additional),
		forces.WithModifierSequence(p.ModifierSequence()))

	index := trialindex.New(st)
	trialIDs := make([]model.TrialID, 0, p.TotalTrials())
	for block := 1; block <= p.Blocks; block++ {
		for trial := 1; trial <= p.TrialsPerBlock; trial++ {
			t, err := index.Record(ctx, id, block, trial)
			if err != nil {
				return nil, err
			}
			trialIDs = append(trialIDs, t.ID)
		}
	}

	result := &SimulationResult{Participant: id, Trials: len(trialIDs)}

	dt := 1 / hz
	steps := int(float64(p.Duration) * hz)
	trialLen := float64(p.Duration) / math.Max(1, float64(len(trialIDs)))
	position := 0.0
	nextProbe := 0

	for i := 0; i < steps; i++ {
		t := float64(i) * dt
		buffeting, additional, total := gen.At(t)

		sample := model.Sample{
			Timestamp:       t,
			BuffetingForce:  buffeting,
			AdditionalForce: additional,
			TotalForce:      total,
			PVTEvent:        model.PVTNone,
		}
		if len(trialIDs) > 0 {
			idx := int(t / trialLen)
			if idx >= len(trialIDs) {
				idx = len(trialIDs) - 1
			}
			sample.TrialID = &trialIDs[idx]
		}

		if nextProbe < len(schedule) && t >= schedule[nextProbe] {
			// Probe tick: no tracking input while the probe is up.
			nextProbe++
			result.Probes++
			if rng.Float64() < 0.05 {
				sample.PVTEvent = model.PVTTimeout
			} else {
				rt := 0.18 + rng.Float64()*0.4
				sample.PVTEvent = model.PVTResponse
				sample.PVTRT = &rt
			}
			if p.ResetTargetAfterPoll {
				position = 0
			}
			sample.Displacement = math.Abs(position)
		} else {
			// The subject counters most of the perturbation, imperfectly.
			input := -0.8*total + rng.NormFloat64()*0.05
			position += total + input
			sample.UserInput = input
			sample.Displacement = math.Abs(position)
		}

		if _, err := rec.Append(ctx, id, sample); err != nil {
			return nil, err
		}
		result.Samples++
	}

	if err := rec.CloseSession(ctx, id); err != nil {
		return nil, err
	}

	samples, err := st.SamplesInRange(ctx, id, 0, float64(p.Duration))
	if err != nil {
		return nil, err
	}
	result.Metrics = pvt.Compute(samples, pvt.MetricsConfig{
		LapseThreshold: p.PVT.LapseThreshold,
		Window:         p.PVT.Window,
	})
	return result, nil
}
