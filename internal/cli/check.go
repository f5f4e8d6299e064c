package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/OpenTreeMap/OTM2-tiler/internal/sqlcheck"
)

// CheckResult is the outcome of validating a condition.
type CheckResult struct {
	Condition   string `json:"condition" yaml:"condition"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check CONDITION",
		Short: "Validate a WHERE condition with the PostgreSQL parser",
		Long: `Validate that CONDITION parses as a single boolean expression of a
WHERE clause and print its fingerprint. Conditions that differ only in their
literal values share a fingerprint.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runCheck(opts *RootOptions, condition string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
	}

	fp, err := sqlcheck.Fingerprint(condition)
	if err != nil {
		return formatter.Error(nil, &ExitError{Code: ExitRejected, Message: "invalid condition", Err: err})
	}

	result := CheckResult{Condition: condition, Fingerprint: fp}
	return formatter.Success(result, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "ok %s\n", result.Fingerprint)
		return err
	})
}
