package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/FrankSommer-64/issai-sub000/internal/entity"
	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
)

func hierarchyServer(t *testing.T) *tcms.OfflineSession {
	t.Helper()
	s := tcms.NewOfflineSession(tcms.Object{"id": int64(601), "username": "bob"})
	s.Seed(tcms.ClassProduct, tcms.Object{"id": int64(1), "name": "Demo"})
	s.Seed(tcms.ClassVersion, tcms.Object{"id": int64(700), "value": "1.0", "product": int64(1)})
	s.Seed(tcms.ClassPlanType, tcms.Object{"id": int64(200), "name": "Unit"})
	return s
}

func hierarchyContainer(t *testing.T, plans ...tcms.Object) *entity.Container {
	t.Helper()
	c := entity.New(entity.TypeProduct, 1, "Demo")
	c.Product = tcms.Object{"id": int64(1), "name": "Demo"}
	if err := c.MasterData.AddObject(tcms.MDVersions, tcms.Object{"id": int64(700), "value": "1.0", "product": int64(1)}); err != nil {
		t.Fatalf("AddObject: %v", err)
	}
	if err := c.MasterData.AddObject(tcms.MDPlanTypes, tcms.Object{"id": int64(200), "name": "Unit"}); err != nil {
		t.Fatalf("AddObject: %v", err)
	}
	if err := c.AddObjects(tcms.ClassTestPlan, plans...); err != nil {
		t.Fatalf("AddObjects: %v", err)
	}
	return c
}

func planObj(id int64, name string, parent int64) tcms.Object {
	obj := tcms.Object{
		"id": id, "name": name,
		"product": int64(1), "product_version": int64(700), "type": int64(200),
	}
	if parent != 0 {
		obj["parent"] = parent
	}
	return obj
}

func TestImportPlanHierarchy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := hierarchyServer(t)
	c := hierarchyContainer(t,
		planObj(12, "Regression", 11), // child last in the chain, first by nothing
		planObj(10, "Root", 0),
		planObj(11, "Smoke", 10),
	)

	o, err := New(s, c, Options{}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !o.Succeeded() {
		t.Fatalf("outcome errors: %v", o.Errors)
	}
	if o.Created != 3 {
		t.Errorf("created %d plans, want 3", o.Created)
	}

	root := serverObject(t, s, tcms.ClassTestPlan, tcms.Filter{"name": "Root"})
	smoke := serverObject(t, s, tcms.ClassTestPlan, tcms.Filter{"name": "Smoke"})
	regression := serverObject(t, s, tcms.ClassTestPlan, tcms.Filter{"name": "Regression"})

	if _, hasParent := root["parent"]; hasParent {
		t.Error("root plan gained a parent")
	}
	if got, _ := tcms.AsID(smoke["parent"]); got != tcms.ObjectID(root) {
		t.Errorf("Smoke parent = %d, want server id of Root %d", got, tcms.ObjectID(root))
	}
	if got, _ := tcms.AsID(regression["parent"]); got != tcms.ObjectID(smoke) {
		t.Errorf("Regression parent = %d, want server id of Smoke %d", got, tcms.ObjectID(smoke))
	}
}

func TestImportPlanHierarchyOrphans(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := hierarchyServer(t)
	// A parent cycle can never resolve.
	c := hierarchyContainer(t,
		planObj(10, "A", 11),
		planObj(11, "B", 10),
	)

	_, err := New(s, c, Options{}).Run(ctx)
	if !errors.Is(err, ErrOrphanedPlans) {
		t.Fatalf("error = %v, want ErrOrphanedPlans", err)
	}
	if s.CreateCount() != 0 {
		t.Errorf("orphaned plans were partially created: %d creates", s.CreateCount())
	}
}

func TestImportPlanResolvedParentOutsideContainer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := hierarchyServer(t)
	s.Seed(tcms.ClassTestPlan, planObj(10, "Root", 0))

	// The child's parent is not part of the container but exists on the
	// server under the recorded id, so the fixed point resolves at once.
	c := hierarchyContainer(t, planObj(11, "Smoke", 10))
	o, err := New(s, c, Options{}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !o.Succeeded() {
		t.Fatalf("outcome errors: %v", o.Errors)
	}
	smoke := serverObject(t, s, tcms.ClassTestPlan, tcms.Filter{"name": "Smoke"})
	if got, _ := tcms.AsID(smoke["parent"]); got != 10 {
		t.Errorf("Smoke parent = %d, want 10", got)
	}
}
