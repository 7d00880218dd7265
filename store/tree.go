package store

import "reflect"

// lookup returns the value at path inside node.
func lookup(node interface{}, path []string) (interface{}, bool) {
	cur := node
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// writeIn rebuilds the spine of node along path, leaving every other subtree
// shared with the previous version. Intermediate maps are created as needed,
// except for removals, which never create structure.
func writeIn(node map[string]interface{}, path []string, m mutation) (map[string]interface{}, bool) {
	key := path[0]
	if len(path) == 1 {
		old, exists := node[key]
		if m.remove && !exists {
			return node, false
		}
		value, keep := m.update(old, exists)
		out := shallowCopy(node)
		if keep {
			out[key] = value
		} else {
			delete(out, key)
		}
		return out, true
	}

	child, _ := node[key].(map[string]interface{})
	if child == nil && m.remove {
		return node, false
	}
	next, changed := writeIn(child, path[1:], m)
	if !changed {
		return node, false
	}
	out := shallowCopy(node)
	out[key] = next
	return out, true
}

// merge folds partial into dst. Maps on both sides merge key by key; any
// other value in partial replaces what was there.
func merge(dst interface{}, partial map[string]interface{}) map[string]interface{} {
	base, _ := dst.(map[string]interface{})
	out := shallowCopy(base)
	for k, v := range partial {
		if pv, ok := v.(map[string]interface{}); ok {
			if existing, ok := out[k].(map[string]interface{}); ok {
				out[k] = merge(existing, pv)
				continue
			}
		}
		out[k] = Clone(v)
	}
	return out
}

func shallowCopy(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Clone deep-copies the container types the store understands. Other values
// are returned as-is and are expected to be immutable.
func Clone(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

func related(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equal(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}

// Merge returns a deep-merged copy of dst with partial folded in, following
// the same rules as DeepMerge. dst is not modified.
func Merge(dst interface{}, partial map[string]interface{}) map[string]interface{} {
	return merge(Clone(dst), partial)
}
