// Package entity holds the portable in-memory snapshot of one product, test
// plan, test case or plan result: the Container, its master-data store, and
// the reference rewriter that propagates id changes through the object graph.
package entity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
)

// Type is the entity kind a container snapshots.
type Type string

const (
	TypeProduct    Type = "product"
	TypeCase       Type = "test-case"
	TypePlan       Type = "test-plan"
	TypePlanResult Type = "plan-result"
)

// Types returns every supported entity type.
func Types() []Type {
	return []Type{TypeProduct, TypeCase, TypePlan, TypePlanResult}
}

// Group names one object collection inside a container.
type Group string

const (
	GroupEnvironments   Group = "environments"
	GroupTestPlans      Group = "test-plans"
	GroupTestRuns       Group = "test-runs"
	GroupTestCases      Group = "test-cases"
	GroupTestExecutions Group = "test-executions"
	GroupCaseResults    Group = "test-case-results"
	GroupPlanResults    Group = "test-plan-results"
)

var (
	// ErrInvalidGroup is returned when objects are added to a group the
	// container's entity type does not carry.
	ErrInvalidGroup = errors.New("invalid entity group")
	// ErrUnknownAttribute is returned when a group is requested that does
	// not exist for the container's entity type.
	ErrUnknownAttribute = errors.New("unknown entity attribute")
	// ErrUnknownPart is returned when a requested object id is absent from
	// an existing group.
	ErrUnknownPart = errors.New("unknown entity part")
	// ErrIDCollision is returned when a rewrite would install an object
	// under an id already occupied by a different object.
	ErrIDCollision = errors.New("object id collision")
)

// allowedGroups lists the object collections each entity type carries.
var allowedGroups = map[Type][]Group{
	TypeProduct:    {GroupEnvironments, GroupTestPlans, GroupTestRuns, GroupTestCases, GroupTestExecutions},
	TypePlan:       {GroupEnvironments, GroupTestPlans, GroupTestRuns, GroupTestCases, GroupTestExecutions},
	TypeCase:       {GroupTestCases, GroupTestExecutions},
	TypePlanResult: {GroupCaseResults, GroupPlanResults},
}

// groupForClass maps specification classes to their container group.
var groupForClass = map[tcms.Class]Group{
	tcms.ClassEnvironment: GroupEnvironments,
	tcms.ClassTestPlan:    GroupTestPlans,
	tcms.ClassTestRun:     GroupTestRuns,
	tcms.ClassTestCase:    GroupTestCases,
	tcms.ClassExecution:   GroupTestExecutions,
}

// GroupFor returns the container group holding objects of the given
// specification class, or false for master data and the product singleton.
func GroupFor(c tcms.Class) (Group, bool) {
	g, ok := groupForClass[c]
	return g, ok
}

// ClassFor is the inverse of GroupFor.
func ClassFor(g Group) (tcms.Class, bool) {
	for c, grp := range groupForClass {
		if grp == g {
			return c, true
		}
	}
	return 0, false
}

// Container is the root entity snapshot: one (type, id, name) header, a
// product singleton, a master-data store, and one id-keyed collection per
// applicable group. A container exclusively owns everything nested in it.
type Container struct {
	Type Type
	ID   int64
	Name string

	// Product is the owning product object; may be nil for result
	// containers.
	Product tcms.Object

	MasterData *MasterDataStore

	groups map[Group]map[int64]tcms.Object
}

// New creates an empty container for the given entity type and identity.
func New(t Type, id int64, name string) *Container {
	return &Container{
		Type:       t,
		ID:         id,
		Name:       name,
		MasterData: NewMasterDataStore(),
		groups:     make(map[Group]map[int64]tcms.Object),
	}
}

// Groups returns the groups applicable to the container's entity type.
func (c *Container) Groups() []Group {
	return allowedGroups[c.Type]
}

func (c *Container) groupAllowed(g Group) bool {
	for _, allowed := range allowedGroups[c.Type] {
		if allowed == g {
			return true
		}
	}
	return false
}

// Add merges objects into the named group, keyed by object id. Adding to a
// group the entity type does not carry fails with ErrInvalidGroup.
func (c *Container) Add(g Group, objs ...tcms.Object) error {
	if !c.groupAllowed(g) {
		return fmt.Errorf("%w: %s for %s entity", ErrInvalidGroup, g, c.Type)
	}
	coll := c.groups[g]
	if coll == nil {
		coll = make(map[int64]tcms.Object)
		c.groups[g] = coll
	}
	for _, obj := range objs {
		coll[tcms.ObjectID(obj)] = obj
	}
	return nil
}

// AddObjects merges objects of a specification class into its group.
func (c *Container) AddObjects(class tcms.Class, objs ...tcms.Object) error {
	g, ok := GroupFor(class)
	if !ok {
		return fmt.Errorf("%w: class %s has no entity group", ErrInvalidGroup, class)
	}
	return c.Add(g, objs...)
}

// Get returns one object's attributes from a group. The id -1 is shorthand
// for the container's own id. An id absent from an existing group fails
// with ErrUnknownPart; a group the entity type does not carry fails with
// ErrUnknownAttribute.
func (c *Container) Get(g Group, id int64) (tcms.Object, error) {
	if !c.groupAllowed(g) {
		return nil, fmt.Errorf("%w: %s for %s entity", ErrUnknownAttribute, g, c.Type)
	}
	if id == -1 {
		id = c.ID
	}
	obj, ok := c.groups[g][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", ErrUnknownPart, g, id)
	}
	return obj, nil
}

// Objects returns the live collection for a group; nil if empty. Callers
// iterating it must not add or remove entries.
func (c *Container) Objects(g Group) map[int64]tcms.Object {
	return c.groups[g]
}

// SortedIDs returns the ids present in a group in ascending order, for
// deterministic iteration.
func (c *Container) SortedIDs(g Group) []int64 {
	coll := c.groups[g]
	ids := make([]int64, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ObjectCount returns the total number of objects held by the container:
// the product singleton, all master data, and every group collection. Used
// to size progress reporting.
func (c *Container) ObjectCount() int {
	n := c.MasterData.Count()
	if c.Product != nil {
		n++
	}
	for _, coll := range c.groups {
		n += len(coll)
	}
	return n
}

// MasterDataObjectCount returns the number of master-data objects only.
func (c *Container) MasterDataObjectCount() int {
	return c.MasterData.Count()
}

// Attachments gathers every attachment reference in the container: a
// two-level map {class → {object id → urls}} for objects carrying an
// "attachments" or "output-files" attribute. The container is not mutated;
// the result is empty when nothing qualifies.
func (c *Container) Attachments() map[tcms.Class]map[int64][]string {
	result := make(map[tcms.Class]map[int64][]string)
	for g, coll := range c.groups {
		class, ok := ClassFor(g)
		if !ok {
			continue
		}
		for id, obj := range coll {
			urls := attachmentURLs(obj)
			if len(urls) == 0 {
				continue
			}
			if result[class] == nil {
				result[class] = make(map[int64][]string)
			}
			result[class][id] = urls
		}
	}
	return result
}

func attachmentURLs(obj tcms.Object) []string {
	var urls []string
	for _, attr := range []string{"attachments", "output-files"} {
		v, ok := obj[attr]
		if !ok {
			continue
		}
		switch l := v.(type) {
		case []string:
			urls = append(urls, l...)
		case []any:
			for _, e := range l {
				if s, ok := e.(string); ok {
					urls = append(urls, s)
				}
			}
		}
	}
	return urls
}
