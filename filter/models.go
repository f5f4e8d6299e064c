package filter

import (
	"fmt"
	"sort"
	"strings"
)

// Model maps a short model name used in filter field names to its physical
// table and to the join set a query needs to reach that table.
type Model struct {
	Name    string
	Table   string
	JoinSet string
}

// JoinSet is a named FROM clause fragment. Join sets are ordered from the
// narrowest to the widest; a filter touching several models needs the widest
// of their join sets.
type JoinSet struct {
	Name string
	SQL  string
}

// Models is the read-only model registry consulted when resolving field names.
// It is built once and can be shared between converters and goroutines.
type Models struct {
	byName   map[string]Model
	names    []string
	joinSets []JoinSet
	joinRank map[string]int
}

// NewModels validates and copies the given models and join sets into a
// registry.
func NewModels(models []Model, joinSets []JoinSet) (*Models, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("NewModels: at least one model is required")
	}

	r := &Models{
		byName:   make(map[string]Model, len(models)),
		joinRank: make(map[string]int, len(joinSets)),
	}
	for i, js := range joinSets {
		if js.Name == "" {
			return nil, fmt.Errorf("NewModels: join set %d has no name", i)
		}
		if _, ok := r.joinRank[js.Name]; ok {
			return nil, fmt.Errorf("NewModels: duplicate join set %q", js.Name)
		}
		r.joinRank[js.Name] = i
		r.joinSets = append(r.joinSets, js)
	}
	for _, m := range models {
		switch {
		case m.Name == "" || strings.ContainsAny(m.Name, `.;"`):
			return nil, fmt.Errorf("NewModels: invalid model name %q", m.Name)
		case m.Table == "":
			return nil, fmt.Errorf("NewModels: model %q has no table", m.Name)
		}
		if _, ok := r.byName[m.Name]; ok {
			return nil, fmt.Errorf("NewModels: duplicate model %q", m.Name)
		}
		if len(joinSets) > 0 {
			if _, ok := r.joinRank[m.JoinSet]; !ok {
				return nil, fmt.Errorf("NewModels: model %q references unknown join set %q", m.Name, m.JoinSet)
			}
		}
		r.byName[m.Name] = m
		r.names = append(r.names, m.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

var defaultModels = mustModels(
	[]Model{
		{Name: "mapFeature", Table: "treemap_mapfeature", JoinSet: "plot"},
		{Name: "plot", Table: "treemap_plot", JoinSet: "plot"},
		{Name: "tree", Table: "treemap_tree", JoinSet: "tree"},
		{Name: "species", Table: "treemap_species", JoinSet: "tree"},
	},
	[]JoinSet{
		{
			Name: "plot",
			SQL: "treemap_mapfeature" +
				" LEFT OUTER JOIN treemap_plot ON treemap_mapfeature.id = treemap_plot.mapfeature_ptr_id",
		},
		{
			Name: "tree",
			SQL: "treemap_mapfeature" +
				" LEFT OUTER JOIN treemap_plot ON treemap_mapfeature.id = treemap_plot.mapfeature_ptr_id" +
				" LEFT OUTER JOIN treemap_tree ON treemap_plot.mapfeature_ptr_id = treemap_tree.plot_id" +
				" LEFT OUTER JOIN treemap_species ON treemap_tree.species_id = treemap_species.id",
		},
	},
)

// DefaultModels returns the built-in OpenTreeMap registry: mapFeature, plot,
// tree and species, with the "plot" and "tree" join sets.
func DefaultModels() *Models {
	return defaultModels
}

func mustModels(models []Model, joinSets []JoinSet) *Models {
	r, err := NewModels(models, joinSets)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the model registered under name.
func (r *Models) Lookup(name string) (Model, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Names returns the registered model names in sorted order.
func (r *Models) Names() []string {
	return append([]string(nil), r.names...)
}

// All returns the registered models sorted by name.
func (r *Models) All() []Model {
	out := make([]Model, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

// JoinSets returns the join sets from narrowest to widest.
func (r *Models) JoinSets() []JoinSet {
	return append([]JoinSet(nil), r.joinSets...)
}

func (r *Models) joinRankOf(model string) int {
	rank, ok := r.joinRank[r.byName[model].JoinSet]
	if !ok {
		return -1
	}
	return rank
}
