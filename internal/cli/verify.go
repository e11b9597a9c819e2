package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vigilab/comptrack/internal/model"
	"github.com/vigilab/comptrack/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Tolerance float64
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <participant-id>",
		Short: "Check force consistency of recorded samples",
		Long: `Check that every recorded sample satisfies
total_force = buffeting_force + additional_force within tolerance.

The log does not enforce the identity on write; this audits it after
the fact. Exit code 1 means violations were found.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}

	cmd.Flags().Float64Var(&opts.Tolerance, "tolerance", model.ForceTolerance, "allowed slack")

	return cmd
}

func runVerify(opts *VerifyOptions, arg string, cmd *cobra.Command) error {
	id, err := parseParticipantArg(arg)
	if err != nil {
		return err
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	violations, err := st.VerifyForces(cmd.Context(), id, opts.Tolerance)
	if err != nil {
		return WrapExitError(ExitFailure, "verification failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if len(violations) == 0 {
		if opts.Format == "json" {
			return out.Success(map[string]any{"violations": []store.ForceViolation{}})
		}
		return out.Success(fmt.Sprintf("participant %d: all samples consistent", id))
	}

	if opts.Format == "json" {
		if err := out.Success(map[string]any{"violations": violations}); err != nil {
			return err
		}
	} else {
		for _, v := range violations {
			fmt.Fprintf(cmd.OutOrStdout(),
				"sample %d at t=%g: total=%g expected=%g\n",
				v.SampleID, v.Timestamp, v.Actual, v.Expected)
		}
	}
	return WrapExitError(ExitFailure,
		fmt.Sprintf("found %d inconsistent samples", len(violations)), nil)
}
