// Package cli implements the treefilter command line tool.
package cli

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/OpenTreeMap/OTM2-tiler/filter"
	"github.com/OpenTreeMap/OTM2-tiler/internal/config"
)

// EnvPrefix is the prefix of environment variables bound to global flags,
// e.g. TREEFILTER_MAX_DEPTH.
const EnvPrefix = "TREEFILTER"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Models    string // registry file, models.yaml in the working directory when empty
	Strict    bool   // reject empty filters
	Tiler     bool   // enable spatial predicates, UDF columns and the geom rename
	MaxDepth  int    // 0 keeps the registry file setting
	LogLevel  string
	LogFormat string // "json" | "console"
	Format    string // "text" | "json" | "yaml"

	Logger zerolog.Logger

	once      sync.Once
	converter *filter.Converter
	registry  *filter.Models
	err       error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// ValidLogFormats defines the allowed log formats.
var ValidLogFormats = []string{"json", "console"}

// NewRootCommand creates the root command for the treefilter CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Logger: zerolog.Nop()}
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "treefilter",
		Short: "Compile tree map filters into SQL conditions",
		Long: `treefilter compiles the JSON filter grammar used by the tree map tiler
into SQL WHERE conditions, resolves the tables a filter needs and validates
conditions with the PostgreSQL parser.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadSettings(v, configFile); err != nil {
				return &ExitError{Code: ExitFailure, Message: "failed to load settings", Err: err}
			}
			opts.Models = v.GetString("models")
			opts.Strict = v.GetBool("strict")
			opts.Tiler = v.GetBool("tiler")
			opts.MaxDepth = v.GetInt("max-depth")
			opts.LogLevel = v.GetString("log-level")
			opts.LogFormat = v.GetString("log-format")
			opts.Format = v.GetString("format")

			if !contains(ValidFormats, opts.Format) {
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)}
			}
			logger, err := NewLogger(cmd.ErrOrStderr(), opts.LogLevel, opts.LogFormat)
			if err != nil {
				return &ExitError{Code: ExitFailure, Message: "invalid logging flags", Err: err}
			}
			opts.Logger = logger
			if f := v.ConfigFileUsed(); f != "" {
				opts.Logger.Debug().Str("file", f).Msg("loaded settings")
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "settings file (yaml, json or toml)")
	flags.String("models", "", "model registry file (default models.yaml in the working directory)")
	flags.Bool("strict", false, "reject empty filters")
	flags.Bool("tiler", false, "enable spatial predicates, user defined fields and the geom column rename")
	flags.Int("max-depth", 0, "maximum combinator nesting (default from the registry file)")
	flags.String("log-level", "warn", "log level (debug|info|warn|error)")
	flags.String("log-format", "console", "log format (json|console)")
	flags.String("format", "text", "output format (text|json|yaml)")
	_ = v.BindPFlags(flags)

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewTablesCommand(opts))
	cmd.AddCommand(NewModelsCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))

	return cmd
}

// loadSettings reads the optional settings file and binds TREEFILTER_*
// environment variables. Flags set on the command line win over both.
func loadSettings(v *viper.Viper, configFile string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		return nil
	}
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", configFile, err)
	}
	return nil
}

// Converter returns the converter described by the registry file and the
// global flags. It is built once per process.
func (o *RootOptions) Converter() (*filter.Converter, error) {
	o.once.Do(func() {
		o.converter, o.registry, o.err = o.buildConverter()
	})
	return o.converter, o.err
}

// Registry returns the model registry the converter resolves fields against.
func (o *RootOptions) Registry() (*filter.Models, error) {
	if _, err := o.Converter(); err != nil {
		return nil, err
	}
	return o.registry, nil
}

func (o *RootOptions) buildConverter() (*filter.Converter, *filter.Models, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.Models == "" {
		cfg, err = config.LoadFromDir(".")
	} else {
		cfg, err = config.Load(o.Models)
	}
	if err != nil {
		return nil, nil, &ExitError{Code: ExitFailure, Message: "failed to load model registry", Err: err}
	}
	registry, err := cfg.Registry()
	if err != nil {
		return nil, nil, &ExitError{Code: ExitFailure, Message: "invalid model registry", Err: err}
	}

	// Tiler defaults go first so a geometry column from the registry wins.
	var options []filter.Option
	if o.Tiler {
		options = append(options, filter.WithTilerDefaults())
	}
	options = append(options, cfg.Options(registry)...)
	if o.Strict {
		options = append(options, filter.WithStrictEmptyInput())
	}
	if o.MaxDepth > 0 {
		options = append(options, filter.WithMaxDepth(o.MaxDepth))
	}

	o.Logger.Debug().
		Str("registry", cfg.File).
		Int("models", len(cfg.Models)).
		Int("join_sets", len(cfg.JoinSets)).
		Bool("tiler", o.Tiler).
		Msg("built converter")

	return filter.NewConverter(options...), registry, nil
}

// contains reports whether v is one of values.
func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
