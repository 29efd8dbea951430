package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/store"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	Aci   string
	Phone string
	Trust string
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Record an observed ACI / phone number association",
		Long: `Feed one observation through the recipient merger and print the
resulting row. At least one of --aci and --phone is required.

High trust observations may move a phone number from one recipient to
another; low trust observations only fill empty slots.

Example:
  recon merge --db ./recon.db --aci 5b2c... --phone +16505550001
  recon merge --db ./recon.db --phone +16505550001 --trust low`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Aci, "aci", "", "account identifier (UUID)")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number in E.164")
	cmd.Flags().StringVar(&opts.Trust, "trust", "high", "trust level (high|low)")

	return cmd
}

func runMerge(opts *MergeOptions, cmd *cobra.Command) error {
	trust, err := ids.ParseTrust(opts.Trust)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --trust", err)
	}
	addr, err := ids.ParseAddress(opts.Aci, opts.Phone)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid address", err)
	}

	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	var rec store.Recipient
	if err := a.Store.Write(ctx, func(tx *store.WriteTx) error {
		var err error
		rec, err = a.Merger.Merge(ctx, tx, trust, addr)
		return err
	}); err != nil {
		return WrapExitError(ExitFailure, "merge failed", err)
	}
	return formatterFor(cmd, opts.RootOptions).Success(newRecipientView(rec))
}
