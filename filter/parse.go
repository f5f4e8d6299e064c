package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DefaultMaxDepth is the combinator nesting limit used when none is configured.
const DefaultMaxDepth = 32

// Filter is a parsed filter: either a PredicateSet or a Combinator.
type Filter interface {
	filterMarker()
}

// PredicateSet is a set of field predicates that are AND'ed together.
// Fields are ordered by name.
type PredicateSet struct {
	Fields []Field
}

// Field is a single `model.column` entry of a PredicateSet. Predicates maps
// predicate keys to their (decoded JSON) values; a bare value in the input is
// stored as {"IS": value}.
type Field struct {
	Name       string
	Predicates map[string]any
}

// Combinator joins its filters with AND or OR.
type Combinator struct {
	Op      string
	Filters []Filter
}

func (*PredicateSet) filterMarker() {}
func (*Combinator) filterMarker()   {}

// Parse decodes filter JSON into a Filter. Numbers are kept as json.Number so
// they can be written back exactly as they were given. maxDepth limits
// combinator nesting; values <= 0 use DefaultMaxDepth.
//
// Parse checks the shape of the grammar only. Field names and predicate keys
// are validated when the filter is compiled.
func Parse(data []byte, maxDepth int) (Filter, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("filter: %w: %w", ErrInvalidJSON, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("filter: %w: unexpected data after top-level value", ErrInvalidJSON)
	}

	return parseFilter(raw, 0, maxDepth)
}

func parseFilter(raw any, depth, maxDepth int) (Filter, error) {
	switch v := raw.(type) {
	case []any:
		return parseCombinator(v, depth+1, maxDepth)
	case map[string]any:
		return parsePredicateSet(v)
	default:
		return nil, grammarErrorf("filter must be an object or array")
	}
}

func parseCombinator(v []any, depth, maxDepth int) (*Combinator, error) {
	if len(v) == 0 {
		return nil, grammarErrorf("empty combinator")
	}
	if depth > maxDepth {
		return nil, grammarErrorf("combinators nested deeper than %d levels", maxDepth)
	}

	op, _ := v[0].(string)
	if op != "AND" && op != "OR" {
		return nil, grammarErrorf("invalid combinator %s (must be one of AND, OR)", describe(v[0]))
	}

	c := &Combinator{
		Op:      op,
		Filters: make([]Filter, 0, len(v)-1),
	}
	for _, e := range v[1:] {
		f, err := parseFilter(e, depth, maxDepth)
		if err != nil {
			return nil, err
		}
		c.Filters = append(c.Filters, f)
	}
	return c, nil
}

func parsePredicateSet(v map[string]any) (*PredicateSet, error) {
	ps := &PredicateSet{
		Fields: make([]Field, 0, len(v)),
	}
	for _, name := range sortedKeys(v) {
		predicates, ok := v[name].(map[string]any)
		if !ok {
			predicates = map[string]any{"IS": v[name]}
		}
		if len(predicates) == 0 {
			return nil, grammarErrorf("empty predicate for field %q", name)
		}
		ps.Fields = append(ps.Fields, Field{Name: name, Predicates: predicates})
	}
	return ps, nil
}

// walkFields calls fn for every field in f, depth first.
func walkFields(f Filter, fn func(Field)) {
	switch f := f.(type) {
	case *PredicateSet:
		for _, field := range f.Fields {
			fn(field)
		}
	case *Combinator:
		for _, child := range f.Filters {
			walkFields(child, fn)
		}
	}
}
