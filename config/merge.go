package config

// MergeDeep returns a new tree with overrides applied onto defaults.
//
// For every key in overrides: when both sides hold a nested map the merge
// recurses, otherwise the override value replaces the default wholesale
// (slices and scalars included). Keys missing from overrides keep their
// default. Neither argument is modified.
func MergeDeep(defaults, overrides map[string]any) map[string]any {
	out := cloneMap(defaults)
	for key, override := range overrides {
		overrideMap, overrideIsMap := asMap(override)
		defaultMap, defaultIsMap := asMap(out[key])
		if overrideIsMap && defaultIsMap {
			out[key] = MergeDeep(defaultMap, overrideMap)
			continue
		}
		out[key] = cloneValue(override)
	}
	return out
}

// asMap accepts the map shapes produced by Go literals, encoding/json and
// yaml.v3 decoding.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case map[string]string:
		m, _ := asMap(t)
		return m
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
