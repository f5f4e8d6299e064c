package filter

import (
	"strings"
)

// DefaultGeometryColumn is the physical geometry column of the tiler tables.
const DefaultGeometryColumn = "the_geom_webmercator"

const (
	geometryAlias = "geom"
	udfPrefix     = "udf:"
	udfColumn     = "udf_scalar_values"
)

// splitField splits `model.column` at the first dot.
func splitField(name string) (model, column string, err error) {
	model, column, ok := strings.Cut(name, ".")
	if !ok || model == "" || column == "" {
		return "", "", grammarErrorf("invalid field name %q (must be of the form model.field)", name)
	}
	return model, column, nil
}

// resolveField turns a `model.column` field name into a quoted, table
// qualified column reference.
func (c *Converter) resolveField(name string) (string, error) {
	modelName, column, err := splitField(name)
	if err != nil {
		return "", err
	}

	models := c.registry()
	model, ok := models.Lookup(modelName)
	if !ok {
		return "", grammarErrorf("invalid model %q in field %q (must be one of %s)",
			modelName, name, strings.Join(models.Names(), ", "))
	}

	column = Sanitize(column)
	if column == "" {
		return "", grammarErrorf("invalid field name %q (empty column)", name)
	}

	table := quoteIdentifier(model.Table)

	if c.udfColumns && strings.HasPrefix(column, udfPrefix) {
		label := strings.TrimPrefix(column, udfPrefix)
		if label == "" {
			return "", grammarErrorf("invalid field name %q (empty user defined field name)", name)
		}
		return table + "." + quoteIdentifier(udfColumn) + "->" + quoteLiteral(label), nil
	}

	if column == geometryAlias && c.geometryColumn != "" {
		column = c.geometryColumn
	}

	return table + "." + quoteIdentifier(column), nil
}
