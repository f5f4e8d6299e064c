package filter

import (
	"bytes"
	"strings"
)

// ResolveTables returns the join set a query must select FROM so that every
// field referenced by the filter can be resolved. Filters without fields, and
// empty input, get the narrowest join set.
//
// The join set is derived from the parsed field names, so string values that
// happen to contain a model name (`"tree."`) don't widen the join.
func (c *Converter) ResolveTables(query []byte) (JoinSet, error) {
	models := c.registry()
	joinSets := models.JoinSets()
	if len(joinSets) == 0 {
		return JoinSet{}, nil
	}
	if len(bytes.TrimSpace(query)) == 0 {
		return joinSets[0], nil
	}

	f, err := Parse(query, c.maxDepth)
	if err != nil {
		return JoinSet{}, err
	}

	rank := 0
	walkFields(f, func(field Field) {
		if err != nil {
			return
		}
		var modelName string
		modelName, _, err = splitField(field.Name)
		if err != nil {
			return
		}
		if _, ok := models.Lookup(modelName); !ok {
			err = grammarErrorf("invalid model %q in field %q (must be one of %s)",
				modelName, field.Name, strings.Join(models.Names(), ", "))
			return
		}
		if r := models.joinRankOf(modelName); r > rank {
			rank = r
		}
	})
	if err != nil {
		return JoinSet{}, err
	}
	return joinSets[rank], nil
}
