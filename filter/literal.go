package filter

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// datetimePattern matches `YYYY-MM-DD HH:mm:ss` and `YYYY-MM-DDTHH:mm:ss`. A
// date without a time is deliberately not matched.
var datetimePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[ T](\d{2}:\d{2}:\d{2})$`)

// Sanitize cuts s at its first semicolon, dropping any statement appended to
// an identifier or string value. It is a textual heuristic, not a SQL parser.
func Sanitize(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		return s[:i]
	}
	return s
}

// literal converts a scalar value to a SQL literal.
func literal(predicate string, v any) (string, error) {
	switch v := v.(type) {
	case json.Number:
		return v.String(), nil
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		if date, clock, ok := parseDatetime(v); ok {
			return "(DATE '" + date + "' + TIME '" + clock + "')", nil
		}
		return quoteLiteral(Sanitize(v)), nil
	case nil:
		return "", &ValueError{Predicate: predicate, Value: v, Msg: "null is only allowed for IS"}
	default:
		return "", &ValueError{Predicate: predicate, Value: v, Msg: "must be a number, string or boolean"}
	}
}

// arrayLiteral converts an array of scalars to a parenthesized SQL list.
func arrayLiteral(predicate string, v any) (string, error) {
	values, ok := v.([]any)
	if !ok {
		return "", &ValueError{Predicate: predicate, Value: v, Msg: "must be an array"}
	}

	items := make([]string, 0, len(values))
	for _, e := range values {
		item, err := literal(predicate, e)
		if err != nil {
			return "", err
		}
		items = append(items, item)
	}
	return "(" + strings.Join(items, ",") + ")", nil
}

// parseDatetime splits a full datetime string into its date and time parts.
// Strings that match the pattern but are not real dates (2013-02-30) are
// treated as plain strings.
func parseDatetime(s string) (date, clock string, ok bool) {
	m := datetimePattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	if _, err := time.Parse(time.DateTime, m[1]+" "+m[2]); err != nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// quoteLiteral returns a SQL string literal with single quotes doubled.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteIdentifier always quotes, so reserved words and mixed case column names
// keep working.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
