package cli

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/OpenTreeMap/OTM2-tiler/internal/config"
)

// ModelsResult describes the model registry.
type ModelsResult struct {
	Models   []config.Model   `json:"models" yaml:"models"`
	JoinSets []config.JoinSet `json:"join_sets" yaml:"join_sets"`
}

// NewModelsCommand creates the models command.
func NewModelsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "models",
		Short:         "Print the model registry",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModels(rootOpts, cmd)
		},
	}
	return cmd
}

func runModels(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
	}

	registry, err := opts.Registry()
	if err != nil {
		return err
	}

	result := ModelsResult{
		Models:   []config.Model{},
		JoinSets: []config.JoinSet{},
	}
	for _, m := range registry.All() {
		result.Models = append(result.Models, config.Model{Name: m.Name, Table: m.Table, JoinSet: m.JoinSet})
	}
	for _, js := range registry.JoinSets() {
		result.JoinSets = append(result.JoinSets, config.JoinSet{Name: js.Name, SQL: js.SQL})
	}

	return formatter.Success(result, func(w io.Writer) error {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Model", "Table", "Join Set"})
		for _, m := range result.Models {
			t.AppendRow(table.Row{m.Name, m.Table, m.JoinSet})
		}
		t.Render()
		return nil
	})
}
