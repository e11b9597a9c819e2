package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vigilab/comptrack/internal/model"
	"github.com/vigilab/comptrack/internal/registry"
	"github.com/vigilab/comptrack/internal/store"
)

// NewParticipantCommand creates the participant lookup command.
func NewParticipantCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participant <id>",
		Short: "Show an enrolled participant",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParticipant(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func parseParticipantArg(arg string) (model.ParticipantID, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "participant id must be an integer", err)
	}
	return model.ParticipantID(id), nil
}

func runParticipant(opts *RootOptions, arg string, cmd *cobra.Command) error {
	id, err := parseParticipantArg(arg)
	if err != nil {
		return err
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	p, err := registry.New(st).Lookup(cmd.Context(), id)
	if err != nil {
		return WrapExitError(ExitFailure, "lookup failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return out.Success(p)
	}
	return out.Success(fmt.Sprintf("participant %d: userhash=%s gender=%s age=%d handedness=%s created=%s",
		p.ID, p.UserHash, p.Gender, p.Age, p.Handedness, p.Created.Format("2006-01-02 15:04:05")))
}
