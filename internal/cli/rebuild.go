package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/recon/internal/store"
)

// RebuildResult reports a rebuild run.
type RebuildResult struct {
	Ran     bool   `json:"ran"`
	Version uint64 `json:"version"`
}

func (r RebuildResult) String() string {
	if !r.Ran {
		return "group rosters already up to date"
	}
	return "group rosters rebuilt"
}

// NewRebuildCommand creates the rebuild command.
func NewRebuildCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Repair group rosters after learned associations",
		Long: `Walk every recipient holding both an ACI and a phone number and fold
duplicate group roster entries together. Only runs when associations were
learned since the last completed rebuild.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(rootOpts, cmd)
		},
	}
}

func runRebuild(opts *RootOptions, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	var needs bool
	if err := a.Store.Read(ctx, func(tx *store.ReadTx) error {
		var err error
		needs, err = a.AuthorMerge.NeedsRebuild(ctx, tx)
		return err
	}); err != nil {
		return WrapExitError(ExitCommandError, "failed to read rebuild state", err)
	}

	result := RebuildResult{Ran: needs}
	if needs {
		if err := a.RunAuthorMergeRebuild(ctx); err != nil {
			return WrapExitError(ExitFailure, "rebuild failed", err)
		}
	}
	if err := a.Store.Read(ctx, func(tx *store.ReadTx) error {
		var err error
		result.Version, err = a.AuthorMerge.FinishedVersion(ctx, tx)
		return err
	}); err != nil {
		return WrapExitError(ExitCommandError, "failed to read rebuild state", err)
	}
	return formatterFor(cmd, opts).Success(result)
}
