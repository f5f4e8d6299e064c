package filter

import (
	"encoding/json"
	"sort"
)

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// lookup returns the value of the first key present in m.
func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func asNumber(v any) (json.Number, bool) {
	n, ok := v.(json.Number)
	return n, ok
}
