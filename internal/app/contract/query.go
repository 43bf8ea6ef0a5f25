package contract

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseQuery decodes a raw query string into parameters. A parameter given once maps to its
// string value, a repeated one to the list of its values, and bracketed names such as
// a[b]=c nest into objects.
func ParseQuery(raw string) map[string]interface{} {
	values := make(map[string]interface{})
	parsed, err := url.ParseQuery(raw)
	if err != nil {
		return values
	}
	for name, vs := range parsed {
		switch len(vs) {
		case 0:
		case 1:
			escapeValue(values, name, vs[0])
		default:
			list := make([]interface{}, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			escapeValue(values, name, list)
		}
	}
	return values
}

func escapeValue(values map[string]interface{}, name string, val interface{}) {
	open := strings.Index(name, "[")
	if open > 0 {
		key := name[:open]
		rest := name[open+1:]
		closing := strings.Index(rest, "]")
		if closing < 0 {
			values[name] = val
			return
		}

		subKey := rest[:closing]
		next := rest[closing+1:]
		if subKey == "" {
			values[key] = val
			return
		}

		valueMap, ok := values[key].(map[string]interface{})
		if !ok {
			valueMap = make(map[string]interface{})
			values[key] = valueMap
		}
		escapeValue(valueMap, subKey+next, val)
		return
	}
	values[name] = val
}

// FormatQuery renders a generated query expectation as a query string. Strings are used as
// they are; objects are encoded with nested keys in bracket form and lists as repeated keys.
func FormatQuery(query interface{}) string {
	switch q := query.(type) {
	case nil:
		return ""
	case string:
		return q
	case map[string]interface{}:
		values := url.Values{}
		flattenQuery(values, "", q)
		return values.Encode()
	}
	return fmt.Sprintf("%v", query)
}

func flattenQuery(values url.Values, prefix string, m map[string]interface{}) {
	for k, v := range m {
		name := k
		if prefix != "" {
			name = prefix + "[" + k + "]"
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flattenQuery(values, name, val)
		case []interface{}:
			for _, item := range val {
				values.Add(name, fmt.Sprintf("%v", item))
			}
		default:
			values.Add(name, fmt.Sprintf("%v", val))
		}
	}
}
