package filter

import (
	"bytes"
	"fmt"
	"strings"
)

// Converter compiles filter JSON into SQL conditions. A Converter is immutable
// once created and safe for concurrent use. The zero value is usable and
// behaves like NewConverter() without options.
type Converter struct {
	models           *Models
	spatial          bool
	udfColumns       bool
	geometryColumn   string
	strictEmptyInput bool
	maxDepth         int
	srid             int
	boundaryTable    string
	boundaryColumn   string
}

// NewConverter creates a new Converter. Without options it resolves fields
// against DefaultModels and supports the IS, IN, LIKE, MIN and MAX predicates.
func NewConverter(options ...Option) *Converter {
	converter := &Converter{}
	for _, option := range options {
		if option != nil {
			option(converter)
		}
	}
	return converter
}

// Convert converts filter JSON into a SQL condition for a WHERE clause.
//
// Empty input returns an empty condition, or a GrammarError wrapping
// ErrEmptyFilter when the converter was created with WithStrictEmptyInput. An
// empty condition means "no restriction" and must not be appended to a query.
func (c *Converter) Convert(query []byte) (string, error) {
	if len(bytes.TrimSpace(query)) == 0 {
		if c.strictEmptyInput {
			return "", &GrammarError{Msg: "filter: " + ErrEmptyFilter.Error(), Err: ErrEmptyFilter}
		}
		return "", nil
	}

	f, err := Parse(query, c.maxDepth)
	if err != nil {
		return "", err
	}
	return c.Compile(f)
}

// Compile compiles an already parsed filter.
func (c *Converter) Compile(f Filter) (string, error) {
	return c.compile(f, 0)
}

func (c *Converter) compile(f Filter, depth int) (string, error) {
	switch f := f.(type) {
	case *PredicateSet:
		if f == nil {
			return "", grammarErrorf("filter must be an object or array")
		}
		return c.compilePredicateSet(f)
	case *Combinator:
		if f == nil {
			return "", grammarErrorf("filter must be an object or array")
		}
		return c.compileCombinator(f, depth+1)
	default:
		return "", grammarErrorf("filter must be an object or array")
	}
}

func (c *Converter) compileCombinator(comb *Combinator, depth int) (string, error) {
	if depth > c.maxDepthOrDefault() {
		return "", grammarErrorf("combinators nested deeper than %d levels", c.maxDepthOrDefault())
	}
	if comb.Op != "AND" && comb.Op != "OR" {
		return "", grammarErrorf("invalid combinator %q (must be one of AND, OR)", comb.Op)
	}

	// An empty clause places no restriction: it drops out of AND and makes
	// the whole OR unrestricted.
	clauses := make([]string, 0, len(comb.Filters))
	unrestricted := false
	for _, child := range comb.Filters {
		clause, err := c.compile(child, depth)
		if err != nil {
			return "", err
		}
		if clause == "" {
			unrestricted = true
			continue
		}
		clauses = append(clauses, clause)
	}
	if unrestricted && (comb.Op == "OR" || len(clauses) == 0) {
		return "", nil
	}
	return "(" + strings.Join(clauses, " "+comb.Op+" ") + ")", nil
}

func (c *Converter) compilePredicateSet(ps *PredicateSet) (string, error) {
	clauses := make([]string, 0, len(ps.Fields))
	for _, field := range ps.Fields {
		column, err := c.resolveField(field.Name)
		if err != nil {
			return "", err
		}
		clause, err := c.compilePredicate(column, field.Predicates)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", field.Name, err)
		}
		clauses = append(clauses, clause)
	}
	return strings.Join(clauses, " AND "), nil
}

func (c *Converter) registry() *Models {
	if c.models == nil {
		return DefaultModels()
	}
	return c.models
}

func (c *Converter) maxDepthOrDefault() int {
	if c.maxDepth <= 0 {
		return DefaultMaxDepth
	}
	return c.maxDepth
}

func (c *Converter) sridOrDefault() int {
	if c.srid == 0 {
		return DefaultSRID
	}
	return c.srid
}

func (c *Converter) boundaryTableName() string {
	if c.boundaryTable == "" {
		return DefaultBoundaryTable
	}
	return c.boundaryTable
}

func (c *Converter) boundaryGeometryColumn() string {
	if c.boundaryColumn == "" {
		return DefaultGeometryColumn
	}
	return c.boundaryColumn
}
