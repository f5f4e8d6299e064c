package filter

// Option configures a Converter.
type Option func(*Converter)

// WithModels is the option to resolve field names against a custom registry
// instead of DefaultModels.
func WithModels(models *Models) Option {
	return func(c *Converter) {
		c.models = models
	}
}

// WithSpatialPredicates enables the IN_BOUNDARY and WITHIN_RADIUS predicates.
func WithSpatialPredicates() Option {
	return func(c *Converter) {
		c.spatial = true
	}
}

// WithUDFColumns enables user defined field references of the form
// `model.udf:Label`, which are read from the model's udf_scalar_values column.
func WithUDFColumns() Option {
	return func(c *Converter) {
		c.udfColumns = true
	}
}

// WithGeometryColumn is the option to rewrite the reserved `geom` column to the
// physical geometry column (e.g. `the_geom_webmercator`).
func WithGeometryColumn(column string) Option {
	return func(c *Converter) {
		c.geometryColumn = column
	}
}

// WithStrictEmptyInput makes Convert fail on empty input instead of returning an
// empty condition.
func WithStrictEmptyInput() Option {
	return func(c *Converter) {
		c.strictEmptyInput = true
	}
}

// WithMaxDepth limits how deeply combinators can be nested. Filters nested
// deeper are rejected with a GrammarError.
func WithMaxDepth(depth int) Option {
	return func(c *Converter) {
		c.maxDepth = depth
	}
}

// WithSRID sets the SRID used for the WITHIN_RADIUS point.
func WithSRID(srid int) Option {
	return func(c *Converter) {
		c.srid = srid
	}
}

// WithBoundaryTable sets the table IN_BOUNDARY looks boundary geometries up in.
func WithBoundaryTable(table string) Option {
	return func(c *Converter) {
		c.boundaryTable = table
	}
}

// WithBoundaryGeometryColumn sets the geometry column IN_BOUNDARY reads from the
// boundary table. It defaults to DefaultGeometryColumn and is independent of
// WithGeometryColumn.
func WithBoundaryGeometryColumn(column string) Option {
	return func(c *Converter) {
		c.boundaryColumn = column
	}
}

// WithTilerDefaults enables everything the tile server needs: spatial
// predicates, UDF columns and the `geom` to `the_geom_webmercator` rename. A
// geometry column set earlier with WithGeometryColumn is kept.
//
// Example:
//
//	c := filter.NewConverter(filter.WithTilerDefaults(), filter.WithStrictEmptyInput())
func WithTilerDefaults() Option {
	return func(c *Converter) {
		c.spatial = true
		c.udfColumns = true
		if c.geometryColumn == "" {
			c.geometryColumn = DefaultGeometryColumn
		}
	}
}
