package tcms

// Class enumerates the server object classes. The numeric order is a fixed
// topological order: classes with no outgoing references come first, so
// walking DependencyOrder guarantees that an object is never created or
// matched before the objects it references.
type Class int

const (
	ClassClassification Class = iota + 1
	ClassPlanType
	ClassPriority
	ClassCaseStatus
	ClassExecutionStatus
	ClassUser
	ClassTag
	ClassEnvironment
	ClassProduct
	ClassVersion
	ClassBuild
	ClassCategory
	ClassComponent
	ClassTestPlan
	ClassTestCase
	ClassTestRun
	ClassExecution
	ClassComment
)

var classNames = map[Class]string{
	ClassClassification:  "Classification",
	ClassPlanType:        "PlanType",
	ClassPriority:        "Priority",
	ClassCaseStatus:      "TestCaseStatus",
	ClassExecutionStatus: "TestExecutionStatus",
	ClassUser:            "User",
	ClassTag:             "Tag",
	ClassEnvironment:     "Environment",
	ClassProduct:         "Product",
	ClassVersion:         "Version",
	ClassBuild:           "Build",
	ClassCategory:        "Category",
	ClassComponent:       "Component",
	ClassTestPlan:        "TestPlan",
	ClassTestCase:        "TestCase",
	ClassTestRun:         "TestRun",
	ClassExecution:       "TestExecution",
	ClassComment:         "Comment",
}

func (c Class) String() string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return "Unknown"
}

// DependencyOrder returns every class in creation/matching order.
func DependencyOrder() []Class {
	order := make([]Class, 0, len(classNames))
	for c := ClassClassification; c <= ClassComment; c++ {
		order = append(order, c)
	}
	return order
}

// identifyingAttrs lists the attribute used for name-based matching per
// class. Classes not listed identify by "name".
var identifyingAttrs = map[Class]string{
	ClassVersion:  "value",
	ClassPriority: "value",
	ClassUser:     "username",
	ClassTestCase: "summary",
	ClassTestRun:  "summary",
	ClassComment:  "comment",
}

// IdentifyingAttr returns the attribute holding the class's identifying
// value.
func IdentifyingAttr(c Class) string {
	if a, ok := identifyingAttrs[c]; ok {
		return a
	}
	return "name"
}

// Master-data collection types as they appear in entity documents.
const (
	MDCategories        = "case-categories"
	MDComponents        = "case-components"
	MDPriorities        = "case-priorities"
	MDCaseStatuses      = "case-statuses"
	MDExecutionStatuses = "execution-statuses"
	MDPlanTypes         = "plan-types"
	MDBuilds            = "product-builds"
	MDClassifications   = "product-classifications"
	MDVersions          = "product-versions"
	MDUsers             = "tcms-users"
)

var mdTypeForClass = map[Class]string{
	ClassCategory:        MDCategories,
	ClassComponent:       MDComponents,
	ClassPriority:        MDPriorities,
	ClassCaseStatus:      MDCaseStatuses,
	ClassExecutionStatus: MDExecutionStatuses,
	ClassPlanType:        MDPlanTypes,
	ClassBuild:           MDBuilds,
	ClassClassification:  MDClassifications,
	ClassVersion:         MDVersions,
	ClassUser:            MDUsers,
}

var classForMDType = func() map[string]Class {
	m := make(map[string]Class, len(mdTypeForClass))
	for c, t := range mdTypeForClass {
		m[t] = c
	}
	return m
}()

// MasterDataTypes returns every master-data collection type, in class
// dependency order.
func MasterDataTypes() []string {
	types := make([]string, 0, len(mdTypeForClass))
	for _, c := range DependencyOrder() {
		if t, ok := mdTypeForClass[c]; ok {
			types = append(types, t)
		}
	}
	return types
}

// MasterDataTypeFor returns the master-data collection type holding objects
// of the given class, or false if the class is specification data.
func MasterDataTypeFor(c Class) (string, bool) {
	t, ok := mdTypeForClass[c]
	return t, ok
}

// ClassForMasterDataType is the inverse of MasterDataTypeFor.
func ClassForMasterDataType(t string) (Class, bool) {
	c, ok := classForMDType[t]
	return c, ok
}

// IsMasterData reports whether objects of the class are auxiliary reference
// data rather than specification data.
func IsMasterData(c Class) bool {
	_, ok := mdTypeForClass[c]
	return ok
}

// Ref describes one attribute of a referencing class that points at objects
// of a referenced class. List is true when the attribute holds a list of ids.
type Ref struct {
	Class Class
	Attr  string
	List  bool
}

// referenceTable maps a referenced class to every attribute anywhere in the
// model that can hold an id of that class. It drives cascading id rewrites.
var referenceTable = map[Class][]Ref{
	ClassClassification: {
		{Class: ClassProduct, Attr: "classification"},
	},
	ClassPlanType: {
		{Class: ClassTestPlan, Attr: "type"},
	},
	ClassPriority: {
		{Class: ClassTestCase, Attr: "priority"},
	},
	ClassCaseStatus: {
		{Class: ClassTestCase, Attr: "case_status"},
	},
	ClassExecutionStatus: {
		{Class: ClassExecution, Attr: "status"},
	},
	ClassUser: {
		{Class: ClassTestPlan, Attr: "author"},
		{Class: ClassTestCase, Attr: "author"},
		{Class: ClassTestCase, Attr: "default_tester"},
		{Class: ClassTestCase, Attr: "reviewer"},
		{Class: ClassTestRun, Attr: "manager"},
		{Class: ClassTestRun, Attr: "default_tester"},
		{Class: ClassExecution, Attr: "assignee"},
		{Class: ClassExecution, Attr: "tester"},
	},
	ClassTag: {
		{Class: ClassTestPlan, Attr: "tags", List: true},
		{Class: ClassTestCase, Attr: "tags", List: true},
		{Class: ClassTestRun, Attr: "tags", List: true},
	},
	ClassProduct: {
		{Class: ClassVersion, Attr: "product"},
		{Class: ClassCategory, Attr: "product"},
		{Class: ClassComponent, Attr: "product"},
		{Class: ClassTestPlan, Attr: "product"},
	},
	ClassVersion: {
		{Class: ClassBuild, Attr: "version"},
		{Class: ClassTestPlan, Attr: "product_version"},
	},
	ClassBuild: {
		{Class: ClassTestRun, Attr: "build"},
		{Class: ClassExecution, Attr: "build"},
	},
	ClassCategory: {
		{Class: ClassTestCase, Attr: "category"},
	},
	ClassTestPlan: {
		{Class: ClassTestPlan, Attr: "parent"},
		{Class: ClassTestRun, Attr: "plan"},
		{Class: ClassTestCase, Attr: "plan", List: true},
	},
	ClassTestCase: {
		{Class: ClassExecution, Attr: "case"},
		{Class: ClassComponent, Attr: "cases", List: true},
		{Class: ClassTestRun, Attr: "cases", List: true},
	},
	ClassTestRun: {
		{Class: ClassExecution, Attr: "run"},
	},
}

// ReferencesTo returns every attribute in the model that can reference an
// object of class c. The returned slice must not be mutated.
func ReferencesTo(c Class) []Ref {
	return referenceTable[c]
}

// scopeAttrs lists the attributes that scope a class's identifying value.
// A build summary is only unique within its version, a category name within
// its product, and so on. The matcher includes these in its server filter.
var scopeAttrs = map[Class][]string{
	ClassVersion:   {"product"},
	ClassBuild:     {"version"},
	ClassCategory:  {"product"},
	ClassComponent: {"product"},
	ClassTestCase:  {"category"},
	ClassTestPlan:  {"product", "product_version"},
	ClassTestRun:   {"build", "plan"},
	ClassExecution: {"case", "run"},
}

// ScopeAttrs returns the attributes that must accompany the identifying
// attribute for a unique server lookup of class c.
func ScopeAttrs(c Class) []string {
	return scopeAttrs[c]
}

// AttachmentDir returns the attachment subdirectory for a class: cases,
// plans, runs and executions have their own, everything else shares a
// generic fallback.
func AttachmentDir(c Class) string {
	switch c {
	case ClassTestCase:
		return "case"
	case ClassTestPlan:
		return "plan"
	case ClassTestRun:
		return "run"
	case ClassExecution:
		return "execution"
	}
	return "entity"
}
