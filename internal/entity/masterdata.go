package entity

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
)

var (
	// ErrInvalidMasterDataType is returned for a collection type outside
	// the recognized set. This indicates a programming error, not bad
	// input data.
	ErrInvalidMasterDataType = errors.New("invalid master data type")
	// ErrInvalidExecutionStatus is returned when a status name cannot be
	// resolved against the execution-statuses collection. Status names are
	// a per-installation customization point.
	ErrInvalidExecutionStatus = errors.New("invalid execution status")
)

// MasterDataStore holds the auxiliary reference objects a container's
// specification objects point to, one id-keyed collection per master-data
// type.
type MasterDataStore struct {
	types map[string]map[int64]tcms.Object
}

// NewMasterDataStore returns an empty store with every recognized
// collection present.
func NewMasterDataStore() *MasterDataStore {
	s := &MasterDataStore{types: make(map[string]map[int64]tcms.Object)}
	for _, t := range tcms.MasterDataTypes() {
		s.types[t] = make(map[int64]tcms.Object)
	}
	return s
}

// AddObject merges one object into the named collection. Most collections
// are last-write-wins per id; case-components instead unions the "cases"
// id set into any existing object, keeping component merges idempotent.
func (s *MasterDataStore) AddObject(mdType string, obj tcms.Object) error {
	coll, ok := s.types[mdType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidMasterDataType, mdType)
	}
	id := tcms.ObjectID(obj)
	if mdType == tcms.MDComponents {
		if prev, ok := coll[id]; ok {
			obj = mergeComponentCases(prev, obj)
		} else {
			obj = normalizeComponentCases(obj)
		}
	}
	coll[id] = obj
	return nil
}

// mergeComponentCases unions the case id sets of two component objects;
// the newer object's other attributes win.
func mergeComponentCases(prev, next tcms.Object) tcms.Object {
	merged := next.Clone()
	set := make(map[int64]struct{})
	for _, src := range []tcms.Object{prev, next} {
		if ids, ok := tcms.AsIDList(src["cases"]); ok {
			for _, id := range ids {
				set[id] = struct{}{}
			}
		}
	}
	merged["cases"] = sortedIDSet(set)
	return merged
}

// normalizeComponentCases deduplicates and sorts the "cases" attribute so
// the list always denotes a set.
func normalizeComponentCases(obj tcms.Object) tcms.Object {
	ids, ok := tcms.AsIDList(obj["cases"])
	if !ok {
		return obj
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	normalized := obj.Clone()
	normalized["cases"] = sortedIDSet(set)
	return normalized
}

func sortedIDSet(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Object returns the object with the given id, or nil if absent. An
// unrecognized collection type is an error; an absent id is not.
func (s *MasterDataStore) Object(mdType string, id int64) (tcms.Object, error) {
	coll, ok := s.types[mdType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMasterDataType, mdType)
	}
	return coll[id], nil
}

// ObjectsOfType returns the live collection for a master-data type; it may
// be empty. An unrecognized type is an error.
func (s *MasterDataStore) ObjectsOfType(mdType string) (map[int64]tcms.Object, error) {
	coll, ok := s.types[mdType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMasterDataType, mdType)
	}
	return coll, nil
}

// SortedIDs returns the ids of a collection in ascending order.
func (s *MasterDataStore) SortedIDs(mdType string) []int64 {
	coll := s.types[mdType]
	ids := make([]int64, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ExecutionStatusIDOf resolves an execution status name case-insensitively.
// Installations rename statuses, so an unresolvable name is reported as a
// configuration problem rather than silently defaulted.
func (s *MasterDataStore) ExecutionStatusIDOf(name string) (int64, error) {
	for _, obj := range s.types[tcms.MDExecutionStatuses] {
		if strings.EqualFold(tcms.AsString(obj["name"]), name) {
			return tcms.ObjectID(obj), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidExecutionStatus, name)
}

// Count returns the total number of objects across all collections.
func (s *MasterDataStore) Count() int {
	n := 0
	for _, coll := range s.types {
		n += len(coll)
	}
	return n
}

// install places obj under its own id in the collection, removing the entry
// at oldID. A different object already holding the new id is a collision.
func (s *MasterDataStore) install(mdType string, oldID int64, obj tcms.Object) error {
	coll, ok := s.types[mdType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidMasterDataType, mdType)
	}
	newID := tcms.ObjectID(obj)
	if newID != oldID {
		if _, occupied := coll[newID]; occupied {
			return fmt.Errorf("%w: %s id %d", ErrIDCollision, mdType, newID)
		}
	}
	delete(coll, oldID)
	coll[newID] = obj
	return nil
}

// drop removes the entry at id, used when two container objects collapse
// onto one server object.
func (s *MasterDataStore) drop(mdType string, id int64) {
	if coll, ok := s.types[mdType]; ok {
		delete(coll, id)
	}
}
