package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// TablesResult is the join set a filter needs.
type TablesResult struct {
	JoinSet string `json:"join_set" yaml:"join_set"`
	SQL     string `json:"sql" yaml:"sql"`
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables FILTER",
		Short: "Print the join set a filter needs",
		Long: `Print the narrowest registered join set that reaches every model the
filter references. The FROM clause of a query using the compiled condition
must be at least this wide.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runTables(opts *RootOptions, query string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
	}

	converter, err := opts.Converter()
	if err != nil {
		return err
	}

	js, err := converter.ResolveTables([]byte(query))
	if err != nil {
		return formatter.Error(nil, rejectionExitError("filter rejected", err))
	}
	opts.Logger.Debug().Str("join_set", js.Name).Msg("resolved tables")

	result := TablesResult{JoinSet: js.Name, SQL: js.SQL}
	return formatter.Success(result, func(w io.Writer) error {
		if result.JoinSet == "" {
			_, err := fmt.Fprintln(w, "(no join sets registered)")
			return err
		}
		_, err := fmt.Fprintf(w, "%s\n%s\n", result.JoinSet, result.SQL)
		return err
	})
}
