package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vigilab/comptrack/internal/registry"
	"github.com/vigilab/comptrack/internal/store"
)

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	UserHash   string
	Gender     string
	Age        int
	Handedness string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Enroll a participant",
		Long: `Enroll a participant in the experiment database.

A userhash is minted automatically unless one is supplied.

Example:
  comptrack register --db ./study.db --gender f --age 29 --handedness right`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.UserHash, "userhash", "", "anonymized identifier (minted if empty)")
	cmd.Flags().StringVar(&opts.Gender, "gender", "", "participant gender")
	cmd.Flags().IntVar(&opts.Age, "age", 0, "participant age")
	cmd.Flags().StringVar(&opts.Handedness, "handedness", "", "left, right, or ambidextrous")
	_ = cmd.MarkFlagRequired("gender")
	_ = cmd.MarkFlagRequired("age")
	_ = cmd.MarkFlagRequired("handedness")

	return cmd
}

func runRegister(opts *RegisterOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	reg := registry.New(st)
	p, err := reg.Register(cmd.Context(), registry.Enrollment{
		UserHash:   opts.UserHash,
		Gender:     opts.Gender,
		Age:        opts.Age,
		Handedness: opts.Handedness,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "registration failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return out.Success(p)
	}
	return out.Success(fmt.Sprintf("registered participant %d (userhash %s)", p.ID, p.UserHash))
}
