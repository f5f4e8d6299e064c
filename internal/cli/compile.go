package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/OpenTreeMap/OTM2-tiler/internal/sqlcheck"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Files []string // filter files, "-" reads stdin
	Check bool     // parse every condition with the PostgreSQL parser
}

// CompileResult is the outcome of compiling one filter.
type CompileResult struct {
	Source      string `json:"source" yaml:"source"`
	Conditions  string `json:"conditions" yaml:"conditions"`
	Fingerprint string `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

type compileInput struct {
	source string
	data   []byte
	path   string
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [FILTER...]",
		Short: "Compile filters into SQL conditions",
		Long: `Compile filters given as arguments, files or on stdin into SQL
conditions, one per line in input order.

An empty condition means the filter places no restriction on the query.`,
		Example: `  treefilter compile '{"tree.height": {"MIN": 10}}'
  treefilter compile -f saved.json --check
  echo '["OR", {"plot.width": 1}, {"tree.height": 2}]' | treefilter compile`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Files, "file", "f", nil, "read a filter from a file (repeatable, - for stdin)")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "validate every condition with the PostgreSQL parser")

	return cmd
}

func runCompile(opts *CompileOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
	}

	converter, err := opts.Converter()
	if err != nil {
		return err
	}

	inputs := make([]compileInput, 0, len(args)+len(opts.Files))
	for i, arg := range args {
		inputs = append(inputs, compileInput{source: fmt.Sprintf("arg %d", i+1), data: []byte(arg)})
	}
	for _, path := range opts.Files {
		inputs = append(inputs, compileInput{source: path, path: path})
	}
	if len(inputs) == 0 {
		inputs = append(inputs, compileInput{source: "stdin", path: "-"})
	}

	stdin := cmd.InOrStdin()
	for i, in := range inputs {
		if in.path != "-" {
			continue
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return &ExitError{Code: ExitFailure, Message: "failed to read stdin", Err: err}
		}
		inputs[i].data = data
		inputs[i].source = "stdin"
		inputs[i].path = ""
		stdin = eofReader{}
	}

	results := make([]CompileResult, len(inputs))
	errs := make([]error, len(inputs))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, in := range inputs {
		g.Go(func() error {
			data := in.data
			if in.path != "" {
				var err error
				if data, err = os.ReadFile(in.path); err != nil {
					return &ExitError{Code: ExitFailure, Message: "failed to read filter", Err: err}
				}
			}

			start := time.Now()
			result := CompileResult{Source: in.source}
			conditions, err := converter.Convert(data)
			if err != nil {
				result.Error = err.Error()
				results[i], errs[i] = result, err
				opts.Logger.Info().Str("source", in.source).Err(err).Msg("filter rejected")
				return nil
			}
			result.Conditions = conditions

			if opts.Check && conditions != "" {
				fp, err := sqlcheck.Fingerprint(conditions)
				if err != nil {
					return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%s: generated an invalid condition", in.source), Err: err}
				}
				result.Fingerprint = fp
			}

			results[i] = result
			opts.Logger.Debug().Str("source", in.source).Dur("took", time.Since(start)).Msg("compiled filter")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rejected := 0
	for _, err := range errs {
		if err != nil {
			rejected++
		}
	}

	if rejected == 0 {
		return formatter.Success(results, func(w io.Writer) error {
			for _, r := range results {
				fmt.Fprintln(w, r.Conditions)
			}
			return nil
		})
	}

	var first error
	for _, err := range errs {
		if err != nil {
			first = err
			break
		}
	}
	exitErr := rejectionExitError(fmt.Sprintf("%d of %d filters rejected", rejected, len(inputs)), first)
	if formatter.Format == "text" {
		for i, r := range results {
			if errs[i] != nil {
				fmt.Fprintf(formatter.errWriter(), "%s: %s\n", r.Source, r.Error)
				continue
			}
			fmt.Fprintln(formatter.Writer, r.Conditions)
		}
		return exitErr
	}
	if formatter.Format == "yaml" {
		if err := formatter.Success(results, nil); err != nil {
			return err
		}
		return exitErr
	}
	return formatter.Error(results, exitErr)
}

// eofReader stands in for stdin once it has been consumed.
type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
