// Package tcms defines the object model shared by every synchronization
// component: the closed set of server object classes, the static reference
// table between them, the Session interface to a live server, and the
// object-status matcher used during import.
package tcms

// Object is the attribute dictionary of one server-side object. Attribute
// values carry whatever the transport or document decoder produced: int64 for
// ids, string, bool, []any for list attributes.
type Object map[string]any

// Filter selects objects by attribute equality. List-valued attributes match
// when the filter value is an element of the list.
type Filter map[string]any

// ObjectID returns the object's numeric id, or 0 if absent.
func ObjectID(o Object) int64 {
	id, _ := AsID(o["id"])
	return id
}

// AsID coerces a decoded attribute value to an object id. TOML and JSON
// decoders produce int64 or float64 for numbers depending on the path taken.
func AsID(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// AsIDList coerces a decoded attribute value to a list of object ids.
// Returns nil if the value is not a list.
func AsIDList(v any) ([]int64, bool) {
	switch l := v.(type) {
	case []int64:
		return l, true
	case []any:
		ids := make([]int64, 0, len(l))
		for _, e := range l {
			id, ok := AsID(e)
			if !ok {
				return nil, false
			}
			ids = append(ids, id)
		}
		return ids, true
	}
	return nil, false
}

// ValueEqual reports whether two attribute values denote the same value,
// tolerating the numeric and list representations different decoders
// produce. Values of unrecognized types never compare equal.
func ValueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ai, ok := AsID(a); ok {
		bi, ok := AsID(b)
		return ok && ai == bi
	}
	if al, ok := asList(a); ok {
		bl, ok := asList(b)
		if !ok || len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !ValueEqual(al[i], bl[i]) {
				return false
			}
		}
		return true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []int64:
		vs := make([]any, len(l))
		for i, e := range l {
			vs[i] = e
		}
		return vs, true
	case []string:
		vs := make([]any, len(l))
		for i, e := range l {
			vs[i] = e
		}
		return vs, true
	}
	return nil, false
}

// AsString returns the attribute value as a string, or "" if it is not one.
func AsString(v any) string {
	s, _ := v.(string)
	return s
}

// Clone returns a shallow copy of the object. List attributes are copied so
// that rewrites on the clone do not leak into the original.
func (o Object) Clone() Object {
	c := make(Object, len(o))
	for k, v := range o {
		if l, ok := v.([]any); ok {
			cp := make([]any, len(l))
			copy(cp, l)
			c[k] = cp
			continue
		}
		if l, ok := v.([]int64); ok {
			cp := make([]int64, len(l))
			copy(cp, l)
			c[k] = cp
			continue
		}
		c[k] = v
	}
	return c
}
