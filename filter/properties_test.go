package filter_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/OpenTreeMap/OTM2-tiler/filter"
)

var propertyValues = []any{1, 2.5, -3, "Oak", "O'Neil", "2013-07-15", "2013-07-15 10:11:12", true}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestShorthandEqualsExplicitIS(t *testing.T) {
	c := filter.NewConverter(filter.WithTilerDefaults())
	for _, model := range filter.DefaultModels().Names() {
		for _, field := range []string{"id", "height", "geom", "udf:Condition"} {
			for _, v := range propertyValues {
				name := model + "." + field
				shorthand := mustJSON(t, map[string]any{name: v})
				explicit := mustJSON(t, map[string]any{name: map[string]any{"IS": v}})

				a, err := c.Convert([]byte(shorthand))
				if err != nil {
					t.Fatalf("%s: %v", shorthand, err)
				}
				b, err := c.Convert([]byte(explicit))
				if err != nil {
					t.Fatalf("%s: %v", explicit, err)
				}
				if a != b {
					t.Errorf("%s compiled to %s, %s compiled to %s", shorthand, a, explicit, b)
				}
			}
		}
	}
}

func TestConvertIsDeterministic(t *testing.T) {
	inputs := []string{
		`{"tree.height": 1, "plot.width": 2, "species.common_name": {"IN": ["a", "b"]}, "tree.dbh": {"MAX": 3, "MIN": 1}}`,
		`["OR", {"tree.height": 1}, ["AND", {"plot.width": 2}, {"tree.dbh": {"MIN": {"VALUE": 1, "EXCLUSIVE": true}}}]]`,
	}

	c := filter.NewConverter(filter.WithTilerDefaults())
	for _, in := range inputs {
		first, err := c.Convert([]byte(in))
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 20; i++ {
			again, err := c.Convert([]byte(in))
			if err != nil {
				t.Fatal(err)
			}
			if again != first {
				t.Fatalf("Convert(%s) is not deterministic:\n%s\n%s", in, first, again)
			}
		}
	}
}

func TestConvertConcurrently(t *testing.T) {
	c := filter.NewConverter(filter.WithTilerDefaults())
	in := []byte(`["AND", {"tree.height": {"MIN": 1}}, ["OR", {"plot.type": {"IN": [1,2]}}, {"tree.dbh": {"MIN": 3}}]]`)
	want, err := c.Convert(in)
	if err != nil {
		t.Fatal(err)
	}

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				got, err := c.Convert(in)
				if err != nil {
					return err
				}
				if got != want {
					return fmt.Errorf("got %s, want %s", got, want)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestInjectedStatementsAreRemoved(t *testing.T) {
	suffixes := []string{
		"; DROP TABLE treemap_tree",
		"; DROP TABLE treemap_tree;",
		";DELETE FROM treemap_plot WHERE 1=1; --",
		"; SELECT pg_sleep(10)",
		";'",
		";",
	}

	c := filter.NewConverter()
	for _, prefix := range []string{"Oak", "O'Neil", ""} {
		for _, suffix := range suffixes {
			for _, key := range []string{"IS", "LIKE"} {
				in := mustJSON(t, map[string]any{"species.common_name": map[string]any{key: prefix + suffix}})
				conditions, err := c.Convert([]byte(in))
				if err != nil {
					t.Fatal(err)
				}
				want := "'" + strings.ReplaceAll(prefix, "'", "''") + "'"
				if !strings.HasSuffix(conditions, " "+want+")") {
					t.Errorf("Convert(%s) = %s, want literal %s", in, conditions, want)
				}
			}
		}
	}
}

func TestBoundsMatchers(t *testing.T) {
	c := filter.NewConverter()

	conditions, err := c.Convert([]byte(`{"tree.dbh": {"MIN": 1, "MAX": 9}}`))
	if err != nil {
		t.Fatal(err)
	}
	if want := `("treemap_tree"."dbh" >= 1 AND "treemap_tree"."dbh" <= 9)`; conditions != want {
		t.Errorf("inclusive bounds = %s, want %s", conditions, want)
	}

	conditions, err = c.Convert([]byte(`{"tree.dbh": {"MAX": {"VALUE": 9, "EXCLUSIVE": true}, "MIN": {"VALUE": 1, "EXCLUSIVE": true}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if want := `("treemap_tree"."dbh" > 1 AND "treemap_tree"."dbh" < 9)`; conditions != want {
		t.Errorf("exclusive bounds = %s, want %s", conditions, want)
	}

	conditions, err = c.Convert([]byte(`{"tree.dbh": {"MAX": {"value": 9, "exclusive": true}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if want := `("treemap_tree"."dbh" < 9)`; conditions != want {
		t.Errorf("lowercase bound object = %s, want %s", conditions, want)
	}

	_, err = c.Convert([]byte(`{"tree.dbh": {"MAX": {"VALUE": 9, "EXCLUSIVE": "yes"}}}`))
	if want := `field tree.dbh: invalid value for MAX predicate (EXCLUSIVE must be a boolean): "yes"`; err == nil || err.Error() != want {
		t.Errorf("error = %v, want %q", err, want)
	}
}

func TestInAndISNeverCombine(t *testing.T) {
	c := filter.NewConverter()
	for _, in := range propertyValues {
		for _, is := range propertyValues {
			q := mustJSON(t, map[string]any{"plot.type": map[string]any{"IN": []any{in}, "IS": is}})
			_, err := c.Convert([]byte(q))
			if want := "field plot.type: predicates IS and IN cannot be combined"; err == nil || err.Error() != want {
				t.Errorf("Convert(%s) error = %v, want %q", q, err, want)
			}
		}
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"height":                      "height",
		"height; DROP TABLE x;":       "height",
		"a;b;c":                       "a",
		";":                           "",
		"no semicolon 'quoted' value": "no semicolon 'quoted' value",
	}
	for in, want := range tests {
		if got := filter.Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}
