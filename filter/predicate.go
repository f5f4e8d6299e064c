package filter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// DefaultSRID is the SRID of WITHIN_RADIUS points.
const DefaultSRID = 3587

// DefaultBoundaryTable holds the geometries IN_BOUNDARY refers to.
const DefaultBoundaryTable = "treemap_boundary"

type valueKind int

const (
	scalarValue valueKind = iota
	arrayValue
	boundValue
	boundaryValue
	radiusValue
)

// predicateSpec describes one predicate key.
type predicateSpec struct {
	key              string
	matcher          string
	exclusiveMatcher string
	combinable       []string
	kind             valueKind
	spatial          bool
}

// predicateSpecs is ordered: predicates of one field are compiled in this order.
var predicateSpecs = []predicateSpec{
	{key: "IS", matcher: "=", combinable: []string{"IS"}, kind: scalarValue},
	{key: "IN", matcher: "IN", combinable: []string{"IN"}, kind: arrayValue},
	{key: "LIKE", matcher: "ILIKE", combinable: []string{"LIKE"}, kind: scalarValue},
	{key: "MIN", matcher: ">=", exclusiveMatcher: ">", combinable: []string{"MIN", "MAX"}, kind: boundValue},
	{key: "MAX", matcher: "<=", exclusiveMatcher: "<", combinable: []string{"MIN", "MAX"}, kind: boundValue},
	{key: "IN_BOUNDARY", combinable: []string{"IN_BOUNDARY"}, kind: boundaryValue, spatial: true},
	{key: "WITHIN_RADIUS", combinable: []string{"WITHIN_RADIUS"}, kind: radiusValue, spatial: true},
}

func predicateSpecFor(key string) (int, *predicateSpec) {
	for i := range predicateSpecs {
		if predicateSpecs[i].key == key {
			return i, &predicateSpecs[i]
		}
	}
	return -1, nil
}

// supportedPredicates lists the keys usable with or without spatial predicates.
func supportedPredicates(spatial bool) []string {
	keys := make([]string, 0, len(predicateSpecs))
	for _, spec := range predicateSpecs {
		if spec.spatial && !spatial {
			continue
		}
		keys = append(keys, spec.key)
	}
	return keys
}

func (s *predicateSpec) combinableWith(key string) bool {
	for _, k := range s.combinable {
		if k == key {
			return true
		}
	}
	return false
}

// validatePredicateKeys checks that every key is known and that all keys can
// be used together. It returns the specs in compile order.
func validatePredicateKeys(predicates map[string]any, spatial bool) ([]*predicateSpec, error) {
	type indexed struct {
		index int
		spec  *predicateSpec
	}
	found := make([]indexed, 0, len(predicates))
	for _, key := range sortedKeys(predicates) {
		i, spec := predicateSpecFor(key)
		if spec == nil || (spec.spatial && !spatial) {
			return nil, grammarErrorf("unknown predicate %q (must be one of %s)",
				key, strings.Join(supportedPredicates(spatial), ", "))
		}
		found = append(found, indexed{index: i, spec: spec})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })

	specs := make([]*predicateSpec, len(found))
	for i, a := range found {
		for _, b := range found[i+1:] {
			if !a.spec.combinableWith(b.spec.key) || !b.spec.combinableWith(a.spec.key) {
				return nil, grammarErrorf("predicates %s and %s cannot be combined", a.spec.key, b.spec.key)
			}
		}
		specs[i] = a.spec
	}
	return specs, nil
}

// compilePredicate compiles the predicates of one field into a parenthesized
// clause.
func (c *Converter) compilePredicate(column string, predicates map[string]any) (string, error) {
	specs, err := validatePredicateKeys(predicates, c.spatial)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(specs))
	for _, spec := range specs {
		part, err := c.compilePredicateKey(column, spec, predicates[spec.key])
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func (c *Converter) compilePredicateKey(column string, spec *predicateSpec, value any) (string, error) {
	switch spec.kind {
	case scalarValue:
		if spec.key == "IS" && value == nil {
			return column + " IS NULL", nil
		}
		lit, err := literal(spec.key, value)
		if err != nil {
			return "", err
		}
		return column + " " + spec.matcher + " " + lit, nil

	case arrayValue:
		list, err := arrayLiteral(spec.key, value)
		if err != nil {
			return "", err
		}
		return column + " " + spec.matcher + " " + list, nil

	case boundValue:
		matcher := spec.matcher
		if bound, ok := value.(map[string]any); ok {
			v, ok := lookup(bound, "VALUE", "value")
			if !ok {
				return "", &ValueError{Predicate: spec.key, Value: value, Msg: "bound object needs a VALUE"}
			}
			if excl, ok := lookup(bound, "EXCLUSIVE", "exclusive"); ok {
				exclusive, ok := excl.(bool)
				if !ok {
					return "", &ValueError{Predicate: spec.key, Value: excl, Msg: "EXCLUSIVE must be a boolean"}
				}
				if exclusive {
					matcher = spec.exclusiveMatcher
				}
			}
			value = v
		}
		lit, err := literal(spec.key, value)
		if err != nil {
			return "", err
		}
		return column + " " + matcher + " " + lit, nil

	case boundaryValue:
		id, ok := asNumber(value)
		if !ok {
			return "", &ValueError{Predicate: spec.key, Value: value, Msg: "must be a boundary id"}
		}
		if _, err := strconv.ParseInt(id.String(), 10, 64); err != nil {
			return "", &ValueError{Predicate: spec.key, Value: value, Msg: "must be an integer boundary id"}
		}
		return fmt.Sprintf("ST_Contains((SELECT %s FROM %s WHERE id=%s), %s)",
			c.boundaryGeometryColumn(), c.boundaryTableName(), id, column), nil

	case radiusValue:
		point, radius, err := parseRadius(spec.key, value)
		if err != nil {
			return "", err
		}
		ewkt := fmt.Sprintf("SRID=%d;%s", c.sridOrDefault(), pointWKT(point))
		return fmt.Sprintf("ST_DWithin(%s, ST_GeomFromEWKT(%s), %s)", column, quoteLiteral(ewkt), radius), nil
	}

	return "", fmt.Errorf("filter: unhandled predicate %s", spec.key)
}

// pointWKT renders p as `POINT(x y)` in plain decimal notation. Web mercator
// coordinates are in the millions and must not switch to exponent form.
func pointWKT(p orb.Point) string {
	return "POINT(" + strconv.FormatFloat(p.X(), 'f', -1, 64) + " " + strconv.FormatFloat(p.Y(), 'f', -1, 64) + ")"
}

// parseRadius reads {"POINT": {"x": .., "y": ..}, "RADIUS": ..}.
func parseRadius(key string, value any) (orb.Point, json.Number, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return orb.Point{}, "", &ValueError{Predicate: key, Value: value, Msg: "must be an object with POINT and RADIUS"}
	}

	rawPoint, _ := lookup(obj, "POINT", "point")
	point, ok := rawPoint.(map[string]any)
	if !ok {
		return orb.Point{}, "", &ValueError{Predicate: key, Value: value, Msg: "POINT must be an object with x and y"}
	}

	var coords [2]float64
	for i, axis := range []string{"x", "y"} {
		raw, _ := lookup(point, axis, strings.ToUpper(axis))
		n, ok := asNumber(raw)
		if !ok {
			return orb.Point{}, "", &ValueError{Predicate: key, Value: raw, Msg: "POINT." + axis + " must be a number"}
		}
		f, err := n.Float64()
		if err != nil {
			return orb.Point{}, "", &ValueError{Predicate: key, Value: raw, Msg: "POINT." + axis + " is out of range"}
		}
		coords[i] = f
	}

	rawRadius, _ := lookup(obj, "RADIUS", "radius")
	radius, ok := asNumber(rawRadius)
	if !ok {
		return orb.Point{}, "", &ValueError{Predicate: key, Value: rawRadius, Msg: "RADIUS must be a number"}
	}

	return orb.Point{coords[0], coords[1]}, radius, nil
}
