package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vigilab/comptrack/internal/model"
	"github.com/vigilab/comptrack/internal/recorder"
	"github.com/vigilab/comptrack/internal/store"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Timestamp  float64
	Buffeting  float64
	Additional float64
	Total      float64
	Input      float64
	Target     float64
	Disp       float64
	Trial      int64
	Event      string
	RT         float64
}

// NewRecordCommand creates the record command, which appends a single
// sample to a participant's log. Live sessions stream through the HTTP
// API; this exists for scripted fixes and smoke tests.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record <participant-id>",
		Short: "Append one sample to the log",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, args[0], cmd)
		},
	}

	cmd.Flags().Float64Var(&opts.Timestamp, "timestamp", 0, "seconds since session start")
	cmd.Flags().Float64Var(&opts.Buffeting, "buffeting", 0, "buffeting force")
	cmd.Flags().Float64Var(&opts.Additional, "additional", 0, "additional force")
	cmd.Flags().Float64Var(&opts.Total, "total", 0, "total force")
	cmd.Flags().Float64Var(&opts.Input, "input", 0, "user input")
	cmd.Flags().Float64Var(&opts.Target, "target", 0, "target position")
	cmd.Flags().Float64Var(&opts.Disp, "displacement", 0, "distance from target")
	cmd.Flags().Int64Var(&opts.Trial, "trial-id", 0, "trial row to link (0 = none)")
	cmd.Flags().StringVar(&opts.Event, "event", "none", "PVT event (none|response|timeout)")
	cmd.Flags().Float64Var(&opts.RT, "rt", -1, "reaction time in seconds (response events)")
	_ = cmd.MarkFlagRequired("timestamp")

	return cmd
}

func runRecord(opts *RecordOptions, arg string, cmd *cobra.Command) error {
	id, err := parseParticipantArg(arg)
	if err != nil {
		return err
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

	sample := model.Sample{
		Timestamp:       opts.Timestamp,
		BuffetingForce:  opts.Buffeting,
		AdditionalForce: opts.Additional,
		TotalForce:      opts.Total,
		UserInput:       opts.Input,
		TargetPosition:  opts.Target,
		Displacement:    opts.Disp,
		PVTEvent:        model.PVTEvent(opts.Event),
	}
	if opts.Trial != 0 {
		trialID := model.TrialID(opts.Trial)
		sample.TrialID = &trialID
	}
	if opts.RT >= 0 {
		rt := opts.RT
		sample.PVTRT = &rt
	}

	sampleID, err := rec.Append(cmd.Context(), id, sample)
	if err != nil {
		return WrapExitError(ExitFailure, "append failed", err)
	}
	if err := rec.CloseSession(cmd.Context(), id); err != nil {
		return WrapExitError(ExitFailure, "flush failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return out.Success(map[string]any{"id": sampleID})
	}
	return out.Success(fmt.Sprintf("recorded sample %d for participant %d at t=%g", sampleID, id, opts.Timestamp))
}
