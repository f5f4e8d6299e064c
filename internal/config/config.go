// Package config loads the model registry and converter settings from a YAML
// file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/OpenTreeMap/OTM2-tiler/filter"
)

// FileName is the name of the registry file.
const FileName = "models.yaml"

// FileNameAlt is the alternate name of the registry file.
const FileNameAlt = "models.yml"

// EnvPrefix is the prefix of environment variables overriding converter
// settings, e.g. TREEFILTER_CONVERTER_SRID=3857.
const EnvPrefix = "TREEFILTER_CONVERTER_"

// Model is a model registry entry.
type Model struct {
	Name    string `koanf:"name" yaml:"name" json:"name"`
	Table   string `koanf:"table" yaml:"table" json:"table"`
	JoinSet string `koanf:"join_set" yaml:"join_set" json:"join_set"`
}

// JoinSet is a named FROM clause.
type JoinSet struct {
	Name string `koanf:"name" yaml:"name" json:"name"`
	SQL  string `koanf:"sql" yaml:"sql" json:"sql"`
}

// Converter holds the settings passed to filter.NewConverter.
type Converter struct {
	Spatial          bool   `koanf:"spatial" yaml:"spatial"`
	UDFColumns       bool   `koanf:"udf_columns" yaml:"udf_columns"`
	GeometryColumn   string `koanf:"geometry_column" yaml:"geometry_column"`
	StrictEmptyInput bool   `koanf:"strict_empty_input" yaml:"strict_empty_input"`
	MaxDepth         int    `koanf:"max_depth" yaml:"max_depth"`
	SRID             int    `koanf:"srid" yaml:"srid"`
	BoundaryTable    string `koanf:"boundary_table" yaml:"boundary_table"`
	BoundaryColumn   string `koanf:"boundary_geometry_column" yaml:"boundary_geometry_column"`
}

// Config is the content of a registry file.
//
//	models:
//	  - {name: plot, table: treemap_plot, join_set: plot}
//	join_sets:
//	  - {name: plot, sql: treemap_mapfeature LEFT OUTER JOIN treemap_plot ON ...}
//	converter:
//	  spatial: true
//	  srid: 3857
type Config struct {
	Models    []Model   `koanf:"models" yaml:"models"`
	JoinSets  []JoinSet `koanf:"join_sets" yaml:"join_sets"`
	Converter Converter `koanf:"converter" yaml:"converter"`

	// File is the registry file the config was read from, if any.
	File string `koanf:"-" yaml:"-"`
}

// Load reads the registry file at path, then applies TREEFILTER_CONVERTER_*
// environment variables. An empty path loads the built-in registry.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"converter.max_depth":                filter.DefaultMaxDepth,
		"converter.srid":                     filter.DefaultSRID,
		"converter.boundary_table":           filter.DefaultBoundaryTable,
		"converter.boundary_geometry_column": filter.DefaultGeometryColumn,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading registry file %s: %w", path, err)
		}
	}

	// TREEFILTER_CONVERTER_MAX_DEPTH -> converter.max_depth
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return "converter." + strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode registry: %w", err)
	}
	cfg.File = path
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromDir loads models.yaml or models.yml from dir, falling back to the
// built-in registry when neither exists.
func LoadFromDir(dir string) (*Config, error) {
	return Load(FindFile(dir))
}

// FindFile returns the registry file in dir, or an empty string.
func FindFile(dir string) string {
	for _, name := range []string{FileName, FileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ApplyDefaults fills in the built-in OpenTreeMap registry when the file
// declares no models.
func (c *Config) ApplyDefaults() {
	if len(c.Models) > 0 {
		return
	}
	defaults := filter.DefaultModels()
	for _, m := range defaults.All() {
		c.Models = append(c.Models, Model{Name: m.Name, Table: m.Table, JoinSet: m.JoinSet})
	}
	if len(c.JoinSets) == 0 {
		for _, js := range defaults.JoinSets() {
			c.JoinSets = append(c.JoinSets, JoinSet{Name: js.Name, SQL: js.SQL})
		}
	}
}

// Validate checks the converter settings. The registry itself is validated
// when it is built.
func (c *Config) Validate() error {
	if c.Converter.MaxDepth < 0 {
		return fmt.Errorf("converter.max_depth must not be negative, got %d", c.Converter.MaxDepth)
	}
	if c.Converter.SRID < 0 {
		return fmt.Errorf("converter.srid must not be negative, got %d", c.Converter.SRID)
	}
	if strings.ContainsAny(c.Converter.BoundaryTable, `;"`) {
		return fmt.Errorf("invalid converter.boundary_table %q", c.Converter.BoundaryTable)
	}
	if strings.ContainsAny(c.Converter.GeometryColumn, `;"`) {
		return fmt.Errorf("invalid converter.geometry_column %q", c.Converter.GeometryColumn)
	}
	if strings.ContainsAny(c.Converter.BoundaryColumn, `;"`) {
		return fmt.Errorf("invalid converter.boundary_geometry_column %q", c.Converter.BoundaryColumn)
	}
	return nil
}

// Registry builds the filter model registry.
func (c *Config) Registry() (*filter.Models, error) {
	models := make([]filter.Model, 0, len(c.Models))
	for _, m := range c.Models {
		models = append(models, filter.Model{Name: m.Name, Table: m.Table, JoinSet: m.JoinSet})
	}
	joinSets := make([]filter.JoinSet, 0, len(c.JoinSets))
	for _, js := range c.JoinSets {
		joinSets = append(joinSets, filter.JoinSet{Name: js.Name, SQL: js.SQL})
	}

	registry, err := filter.NewModels(models, joinSets)
	if err != nil {
		if c.File != "" {
			return nil, fmt.Errorf("%s: %w", c.File, err)
		}
		return nil, err
	}
	return registry, nil
}

// Options returns the converter options described by the config, resolving
// fields against registry, which is usually the result of Registry.
func (c *Config) Options(registry *filter.Models) []filter.Option {
	opts := []filter.Option{
		filter.WithModels(registry),
		filter.WithMaxDepth(c.Converter.MaxDepth),
		filter.WithSRID(c.Converter.SRID),
		filter.WithBoundaryTable(c.Converter.BoundaryTable),
		filter.WithBoundaryGeometryColumn(c.Converter.BoundaryColumn),
	}
	if c.Converter.Spatial {
		opts = append(opts, filter.WithSpatialPredicates())
	}
	if c.Converter.UDFColumns {
		opts = append(opts, filter.WithUDFColumns())
	}
	if c.Converter.GeometryColumn != "" {
		opts = append(opts, filter.WithGeometryColumn(c.Converter.GeometryColumn))
	}
	if c.Converter.StrictEmptyInput {
		opts = append(opts, filter.WithStrictEmptyInput())
	}
	return opts
}
