package cli

import (
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/vigilab/comptrack/internal/export"
	"github.com/vigilab/comptrack/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	What   string
	From   float64
	To     float64
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <participant-id>",
		Short: "Export recorded data as CSV",
		Long: `Export a participant's recorded data as CSV.

--what selects samples (the continuous log) or trials (the trial index).
Sample exports can be restricted to a timestamp range.

Example:
  comptrack export 3 --what samples --from 0 --to 300 -o p3.csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.What, "what", "samples", "what to export (samples|trials)")
	cmd.Flags().Float64Var(&opts.From, "from", 0, "range start timestamp (samples only)")
	cmd.Flags().Float64Var(&opts.To, "to", math.MaxFloat64, "range end timestamp (samples only)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func runExport(opts *ExportOptions, arg string, cmd *cobra.Command) error {
	id, err := parseParticipantArg(arg)
	if err != nil {
		return err
	}
	if opts.What != "samples" && opts.What != "trials" {
		return WrapExitError(ExitCommandError,
			fmt.Sprintf("invalid --what %q: must be samples or trials", opts.What), nil)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	w := cmd.OutOrStdout()
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create output file", err)
		}
		defer f.Close()
		w = f
	}

	switch opts.What {
	case "samples":
		err = export.Samples(cmd.Context(), st, id, opts.From, opts.To, w)
	case "trials":
		err = export.Trials(cmd.Context(), st, id, w)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "export failed", err)
	}
	return nil
}
