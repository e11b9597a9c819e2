package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/vigilab/comptrack/internal/pvt"
	"github.com/vigilab/comptrack/internal/store"
)

// MetricsOptions holds flags for the metrics command.
type MetricsOptions struct {
	*RootOptions
	From      float64
	To        float64
	Window    int
	Threshold float64
}

// NewMetricsCommand creates the metrics command.
func NewMetricsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MetricsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "metrics <participant-id>",
		Short: "Compute vigilance metrics",
		Long: `Compute psychomotor vigilance metrics over a participant's recorded
probes: mean and standard deviation of reaction time, lapse and timeout
counts, and the hypovigilance fraction.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetrics(opts, args[0], cmd)
		},
	}

	cmd.Flags().Float64Var(&opts.From, "from", 0, "range start timestamp")
	cmd.Flags().Float64Var(&opts.To, "to", math.MaxFloat64, "range end timestamp")
	cmd.Flags().IntVar(&opts.Window, "window", 0, "only the most recent N probes (0 = all)")
	cmd.Flags().Float64Var(&opts.Threshold, "threshold", 0, "lapse threshold in seconds (0 = default)")

	return cmd
}

func runMetrics(opts *MetricsOptions, arg string, cmd *cobra.Command) error {
	id, err := parseParticipantArg(arg)
	if err != nil {
		return err
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	samples, err := st.SamplesInRange(cmd.Context(), id, opts.From, opts.To)
	if err != nil {
		return WrapExitError(ExitFailure, "reading samples failed", err)
	}
	m := pvt.Compute(samples, pvt.MetricsConfig{
		LapseThreshold: opts.Threshold,
		Window:         opts.Window,
	})

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return out.Success(m)
	}
	return out.Success(fmt.Sprintf(
		"probes=%d responses=%d timeouts=%d lapses=%d mean_rt=%.3f stdev_rt=%.3f hypovigilance=%.3f",
		m.Probes, m.Responses, m.Timeouts, m.Lapses, m.MeanRT, m.StdevRT, m.Hypovigilance))
}
