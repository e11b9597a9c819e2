package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vigilab/comptrack/internal/store"
	"github.com/vigilab/comptrack/internal/trialindex"
)

// TrialOptions holds flags for the trial command.
type TrialOptions struct {
	*RootOptions
	BlockNum int
	TrialNum int
}

// NewTrialCommand creates the trial command, which records one
// (block, trial) coordinate for a participant.
func NewTrialCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrialOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trial <participant-id>",
		Short: "Record a trial coordinate",
		Long: `Record one (block, trial) coordinate in a participant's trial index.

Each coordinate may be recorded once; re-recording it is an error.

Example:
  comptrack trial 3 --block 1 --trial 2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrial(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.BlockNum, "block", 0, "block number")
	cmd.Flags().IntVar(&opts.TrialNum, "trial", 0, "trial number within the block")
	_ = cmd.MarkFlagRequired("block")
	_ = cmd.MarkFlagRequired("trial")

	return cmd
}

func runTrial(opts *TrialOptions, arg string, cmd *cobra.Command) error {
	id, err := parseParticipantArg(arg)
	if err != nil {
		return err
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	t, err := trialindex.New(st).Record(cmd.Context(), id, opts.BlockNum, opts.TrialNum)
	if err != nil {
		return WrapExitError(ExitFailure, "recording trial failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return out.Success(t)
	}
	return out.Success(fmt.Sprintf("recorded trial %d (participant %d, block %d, trial %d)",
		t.ID, t.ParticipantID, t.BlockNum, t.TrialNum))
}

// NewTrialsCommand creates the trials command, which lists a
// participant's trial index.
func NewTrialsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trials <participant-id>",
		Short: "List a participant's trials",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrials(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runTrials(opts *RootOptions, arg string, cmd *cobra.Command) error {
	id, err := parseParticipantArg(arg)
	if err != nil {
		return err
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	trials, err := trialindex.New(st).List(cmd.Context(), id)
	if err != nil {
		return WrapExitError(ExitFailure, "listing trials failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return out.Success(trials)
	}
	if len(trials) == 0 {
		return out.Success(fmt.Sprintf("participant %d has no recorded trials", id))
	}
	for _, t := range trials {
		fmt.Fprintf(cmd.OutOrStdout(), "trial %d: block %d, trial %d\n", t.ID, t.BlockNum, t.TrialNum)
	}
	return nil
}
