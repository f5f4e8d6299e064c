// This package converts OpenTreeMap map filters into PostgreSQL WHERE clauses.
//
// A filter is either a predicate set, an object mapping `model.field` names
// to predicates:
//
//	{"tree.height": {"MIN": 10, "MAX": {"VALUE": 20, "EXCLUSIVE": true}}, "species.common_name": "Oak"}
//
// or a combinator, an array whose first element is "AND" or "OR" followed by
// nested filters:
//
//	["OR", {"tree.dbh": {"MIN": 3}}, {"plot.address": {"LIKE": "%Market St%"}}]
//
// Values are written into the SQL as escaped literals, not as parameters. Field
// names are checked against a model registry and string values are cut at the
// first semicolon.
package filter
