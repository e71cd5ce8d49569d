package memory

// DeepMerge merges src into dst. Nested maps merge recursively, anything
// else in src overwrites the leaf in dst, so an empty slice clears a list.
// dst is returned, allocated if nil.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, srcVal := range src {
		dstVal, exists := dst[key]
		if !exists {
			dst[key] = copyValue(srcVal)
			continue
		}

		srcMap, srcIsMap := asMap(srcVal)
		dstMap, dstIsMap := asMap(dstVal)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = copyValue(srcVal)
	}
	return dst
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return DeepMerge(nil, t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	default:
		return v
	}
}
