package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/recon/internal/directory"
	"github.com/roach88/recon/internal/ids"
)

// DirectoryReport is the output of the directory subcommands.
type DirectoryReport struct {
	Applied      int                `json:"applied"`
	Unregistered int                `json:"unregistered"`
	Failures     []DirectoryFailure `json:"failures,omitempty"`
}

// DirectoryFailure names one result that could not be applied.
type DirectoryFailure struct {
	Aci   string `json:"aci"`
	Phone string `json:"phone"`
	Error string `json:"error"`
}

func newDirectoryReport(r directory.Report) DirectoryReport {
	out := DirectoryReport{Applied: r.Applied, Unregistered: r.Unregistered}
	for _, f := range r.Failures {
		out.Failures = append(out.Failures, DirectoryFailure{
			Aci:   f.Result.Aci.String(),
			Phone: f.Result.Phone.String(),
			Error: f.Err.Error(),
		})
	}
	return out
}

// RenderText writes a summary and one line per failure.
func (r DirectoryReport) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "applied %d, unregistered %d, failed %d\n", r.Applied, r.Unregistered, len(r.Failures))
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  %s %s: %s\n", f.Aci, f.Phone, f.Error)
	}
	return nil
}

// NewDirectoryCommand creates the directory command group.
func NewDirectoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Apply contact-discovery results",
	}
	cmd.AddCommand(newDirectoryImportCommand(rootOpts))
	cmd.AddCommand(newDirectoryRefreshCommand(rootOpts))
	return cmd
}

func newDirectoryImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <results.yaml>",
		Short: "Merge every result in a YAML file",
		Long: `Merge every (aci, phone) result in the file, one transaction each.
A result that fails is reported and the rest still apply.

Example:
  recon directory import --db ./recon.db ./results.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := directory.LoadResults(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load results", err)
			}
			return applyDirectory(rootOpts, cmd, func(a *directory.Applier) (directory.Report, error) {
				return a.Apply(commandContext(cmd), results)
			})
		},
	}
}

func newDirectoryRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	var resultsPath string
	cmd := &cobra.Command{
		Use:   "refresh <phone>...",
		Short: "Look up phone numbers and apply the answers",
		Long: `Look up the given phone numbers in a directory answered from
--results, apply what was found and mark the rest unregistered.

Example:
  recon directory refresh --db ./recon.db --results ./results.yaml +16505550001`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			phones := make([]ids.E164, 0, len(args))
			for _, arg := range args {
				p, err := ids.ParseE164(arg)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid phone number", err)
				}
				phones = append(phones, p)
			}
			results, err := directory.LoadResults(resultsPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load results", err)
			}
			return applyDirectory(rootOpts, cmd, func(a *directory.Applier) (directory.Report, error) {
				return a.Refresh(commandContext(cmd), directory.StaticLookup(results), phones)
			})
		},
	}
	cmd.Flags().StringVar(&resultsPath, "results", "", "YAML file answering lookups (required)")
	_ = cmd.MarkFlagRequired("results")
	return cmd
}

func applyDirectory(opts *RootOptions, cmd *cobra.Command, run func(*directory.Applier) (directory.Report, error)) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer closeApp(a)

	report, err := run(a.Directory)
	if err != nil {
		return WrapExitError(ExitFailure, "directory update failed", err)
	}
	out := newDirectoryReport(report)
	if err := formatterFor(cmd, opts).Success(out); err != nil {
		return err
	}
	if len(out.Failures) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d directory results failed", len(out.Failures)))
	}
	return nil
}
