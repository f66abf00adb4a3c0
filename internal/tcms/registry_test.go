package tcms

import "testing"

func TestDependencyOrder(t *testing.T) {
	t.Parallel()

	order := DependencyOrder()
	if len(order) != len(classNames) {
		t.Fatalf("DependencyOrder returned %d classes, want %d", len(order), len(classNames))
	}
	seen := make(map[Class]bool, len(order))
	for i, c := range order {
		if seen[c] {
			t.Errorf("class %s appears twice", c)
		}
		seen[c] = true
		if i > 0 && order[i-1] >= c {
			t.Errorf("order not strictly ascending at index %d: %s then %s", i, order[i-1], c)
		}
	}
	if order[0] != ClassClassification {
		t.Errorf("order starts with %s, want Classification", order[0])
	}
	if order[len(order)-1] != ClassComment {
		t.Errorf("order ends with %s, want Comment", order[len(order)-1])
	}

	// Scope attributes only work if the scoping class is resolved first.
	pos := make(map[Class]int, len(order))
	for i, c := range order {
		pos[c] = i
	}
	scopePairs := []struct{ scoped, scoping Class }{
		{ClassVersion, ClassProduct},
		{ClassBuild, ClassVersion},
		{ClassCategory, ClassProduct},
		{ClassComponent, ClassProduct},
		{ClassTestCase, ClassCategory},
		{ClassTestPlan, ClassProduct},
		{ClassTestRun, ClassBuild},
		{ClassExecution, ClassTestCase},
	}
	for _, p := range scopePairs {
		if pos[p.scoping] >= pos[p.scoped] {
			t.Errorf("%s must come before %s in dependency order", p.scoping, p.scoped)
		}
	}
}

func TestIdentifyingAttr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		class Class
		want  string
	}{
		{ClassProduct, "name"},
		{ClassVersion, "value"},
		{ClassPriority, "value"},
		{ClassUser, "username"},
		{ClassTestCase, "summary"},
		{ClassTestRun, "summary"},
		{ClassComment, "comment"},
		{ClassBuild, "name"},
		{ClassEnvironment, "name"},
	}
	for _, tt := range tests {
		if got := IdentifyingAttr(tt.class); got != tt.want {
			t.Errorf("IdentifyingAttr(%s) = %q, want %q", tt.class, got, tt.want)
		}
	}
}

func TestMasterDataTypes(t *testing.T) {
	t.Parallel()

	types := MasterDataTypes()
	if len(types) != 10 {
		t.Fatalf("MasterDataTypes returned %d types, want 10", len(types))
	}
	for _, mdType := range types {
		class, ok := ClassForMasterDataType(mdType)
		if !ok {
			t.Errorf("ClassForMasterDataType(%q) not found", mdType)
			continue
		}
		back, ok := MasterDataTypeFor(class)
		if !ok || back != mdType {
			t.Errorf("MasterDataTypeFor(%s) = %q, want %q", class, back, mdType)
		}
		if !IsMasterData(class) {
			t.Errorf("IsMasterData(%s) = false for master data class", class)
		}
	}
	for _, class := range []Class{ClassProduct, ClassTestPlan, ClassTestCase, ClassTestRun, ClassExecution, ClassEnvironment, ClassTag} {
		if IsMasterData(class) {
			t.Errorf("IsMasterData(%s) = true for specification class", class)
		}
	}
}

func TestReferencesTo(t *testing.T) {
	t.Parallel()

	// Spot-check the slots that drive the cascading rewrites.
	hasRef := func(c Class, refClass Class, attr string, list bool) bool {
		for _, r := range ReferencesTo(c) {
			if r.Class == refClass && r.Attr == attr && r.List == list {
				return true
			}
		}
		return false
	}
	if !hasRef(ClassProduct, ClassTestPlan, "product", false) {
		t.Error("plans must reference their product")
	}
	if !hasRef(ClassTestPlan, ClassTestCase, "plan", true) {
		t.Error("cases must reference plans as a list")
	}
	if !hasRef(ClassTestCase, ClassComponent, "cases", true) {
		t.Error("components must reference cases as a list")
	}
	if !hasRef(ClassUser, ClassExecution, "tester", false) {
		t.Error("executions must reference their tester")
	}
	if !hasRef(ClassTestPlan, ClassTestPlan, "parent", false) {
		t.Error("plans must reference their parent plan")
	}
	if refs := ReferencesTo(ClassComment); len(refs) != 0 {
		t.Errorf("comments are referenced by nothing, got %d refs", len(refs))
	}
}

func TestAttachmentDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		class Class
		want  string
	}{
		{ClassTestCase, "case"},
		{ClassTestPlan, "plan"},
		{ClassTestRun, "run"},
		{ClassExecution, "execution"},
		{ClassProduct, "entity"},
		{ClassEnvironment, "entity"},
	}
	for _, tt := range tests {
		if got := AttachmentDir(tt.class); got != tt.want {
			t.Errorf("AttachmentDir(%s) = %q, want %q", tt.class, got, tt.want)
		}
	}
}
