package tcms

import (
	"context"
	"fmt"
	"sort"
)

// MatchKind is the tri-state result of comparing a container object against
// the live server.
type MatchKind int

const (
	// NoMatch: no equivalent object exists on the server.
	NoMatch MatchKind = iota
	// ExactMatch: the server holds the object under the same id and
	// identifying value.
	ExactMatch
	// OtherNameMatch: the server holds an object with the same identifying
	// value under a different id; the container's id is foreign and must be
	// rewritten.
	OtherNameMatch
)

func (k MatchKind) String() string {
	switch k {
	case ExactMatch:
		return "exact"
	case OtherNameMatch:
		return "other-id"
	}
	return "none"
}

// ObjectStatus carries the match result for one container object. It is a
// transient value produced during import and never persisted.
type ObjectStatus struct {
	Kind   MatchKind
	Class  Class
	Object Object
	// Server is the server-side counterpart, set for ExactMatch and
	// OtherNameMatch.
	Server Object
}

// Match determines the ObjectStatus of one container object. The server is
// queried for the object's identifying value, scoped by the class's scope
// attributes (a build within its version, a category within its product).
// Scope attribute values are taken from the object as-is, so callers must
// have resolved scope references to server ids first; MatchBatch in class
// dependency order guarantees that.
func Match(ctx context.Context, s Session, c Class, obj Object) (ObjectStatus, error) {
	ident := IdentifyingAttr(c)
	name := AsString(obj[ident])
	filter := Filter{ident: obj[ident]}
	for _, attr := range ScopeAttrs(c) {
		if v, ok := obj[attr]; ok && v != nil {
			filter[attr] = v
		}
	}

	found, err := s.FindObjects(ctx, c, filter)
	if err != nil {
		return ObjectStatus{}, &StatusCheckError{Class: c, Name: name, Err: err}
	}
	switch len(found) {
	case 0:
		return ObjectStatus{Kind: NoMatch, Class: c, Object: obj}, nil
	case 1:
		st := ObjectStatus{Kind: OtherNameMatch, Class: c, Object: obj, Server: found[0]}
		if ObjectID(found[0]) == ObjectID(obj) {
			st.Kind = ExactMatch
		}
		return st, nil
	}
	return ObjectStatus{}, &StatusCheckError{
		Class: c, Name: name,
		Err: fmt.Errorf("%w: %d objects share %s=%q", ErrAmbiguous, len(found), ident, name),
	}
}

// MatchBatch matches every object of one collection, in ascending id order
// for determinism. Callers iterating multiple classes must follow
// DependencyOrder so scope references are resolved before they are used in
// filters. Users are deliberately not matched here; user identity follows a
// configurable policy, not a plain name match.
func MatchBatch(ctx context.Context, s Session, c Class, objs map[int64]Object) ([]ObjectStatus, error) {
	ids := make([]int64, 0, len(objs))
	for id := range objs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	statuses := make([]ObjectStatus, 0, len(objs))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st, err := Match(ctx, s, c, objs[id])
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
