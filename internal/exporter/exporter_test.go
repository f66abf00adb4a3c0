package exporter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FrankSommer-64/issai-sub000/internal/document"
	"github.com/FrankSommer-64/issai-sub000/internal/entity"
	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
)

// seedServer populates a session with one product and a small specification
// tree underneath it.
func seedServer(t *testing.T) *tcms.OfflineSession {
	t.Helper()
	s := tcms.NewOfflineSession(tcms.Object{"id": int64(601), "username": "bob"})
	objs := []struct {
		class tcms.Class
		obj   tcms.Object
	}{
		{tcms.ClassClassification, tcms.Object{"id": int64(100), "name": "web"}},
		{tcms.ClassPlanType, tcms.Object{"id": int64(200), "name": "Unit"}},
		{tcms.ClassPriority, tcms.Object{"id": int64(300), "value": "P1"}},
		{tcms.ClassCaseStatus, tcms.Object{"id": int64(400), "name": "CONFIRMED"}},
		{tcms.ClassExecutionStatus, tcms.Object{"id": int64(500), "name": "PASSED"}},
		{tcms.ClassExecutionStatus, tcms.Object{"id": int64(501), "name": "FAILED"}},
		{tcms.ClassUser, tcms.Object{"id": int64(600), "username": "alice"}},
		{tcms.ClassEnvironment, tcms.Object{"id": int64(30), "name": "staging"}},
		{tcms.ClassProduct, tcms.Object{"id": int64(1), "name": "Demo", "classification": int64(100)}},
		{tcms.ClassVersion, tcms.Object{"id": int64(700), "value": "1.0", "product": int64(1)}},
		{tcms.ClassBuild, tcms.Object{"id": int64(800), "name": "b1", "version": int64(700)}},
		{tcms.ClassCategory, tcms.Object{"id": int64(900), "name": "General", "product": int64(1)}},
		{tcms.ClassTestPlan, tcms.Object{"id": int64(10), "name": "Smoke", "product": int64(1), "product_version": int64(700), "type": int64(200), "author": int64(600)}},
		{tcms.ClassTestCase, tcms.Object{"id": int64(1100), "summary": "Login Test", "category": int64(900), "priority": int64(300), "case_status": int64(400), "plan": []int64{10}}},
		{tcms.ClassTestRun, tcms.Object{"id": int64(1200), "summary": "Smoke run", "plan": int64(10), "build": int64(800), "manager": int64(600)}},
		{tcms.ClassExecution, tcms.Object{"id": int64(1300), "case": int64(1100), "run": int64(1200), "status": int64(500), "build": int64(800)}},
	}
	for _, o := range objs {
		s.Seed(o.class, o.obj)
	}
	return s
}

func TestExportProduct(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := seedServer(t)
	dir := t.TempDir()

	exp := New(s, Options{OutputDir: dir, IncludeEnvironments: true}, nil)
	path, err := exp.ExportProduct(ctx, 1)
	if err != nil {
		t.Fatalf("ExportProduct: %v", err)
	}
	if filepath.Base(path) != "Demo.toml" {
		t.Errorf("document name = %q, want Demo.toml", filepath.Base(path))
	}

	c, report, err := document.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(report.Issues) != 0 {
		t.Errorf("exported document has issues: %v", report.Issues)
	}
	if c.Type != entity.TypeProduct || tcms.ObjectID(c.Product) != 1 {
		t.Fatalf("header = %s product %d, want product snapshot of 1", c.Type, tcms.ObjectID(c.Product))
	}

	groups := map[entity.Group][]int64{
		entity.GroupTestPlans:      {10},
		entity.GroupTestCases:      {1100},
		entity.GroupTestRuns:       {1200},
		entity.GroupTestExecutions: {1300},
		entity.GroupEnvironments:   {30},
	}
	for g, want := range groups {
		if diff := cmp.Diff(want, c.SortedIDs(g)); diff != "" {
			t.Errorf("group %s (-want +got):\n%s", g, diff)
		}
	}

	mdIDs := map[string][]int64{
		tcms.MDClassifications:   {100},
		tcms.MDPlanTypes:         {200},
		tcms.MDPriorities:        {300},
		tcms.MDCaseStatuses:      {400},
		tcms.MDExecutionStatuses: {500}, // FAILED is unreferenced and stays home
		tcms.MDUsers:             {600},
		tcms.MDVersions:          {700},
		tcms.MDBuilds:            {800},
		tcms.MDCategories:        {900},
	}
	for mdType, want := range mdIDs {
		if diff := cmp.Diff(want, c.MasterData.SortedIDs(mdType)); diff != "" {
			t.Errorf("master data %s (-want +got):\n%s", mdType, diff)
		}
	}
}

func TestExportPlanWithDescendants(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := seedServer(t)
	s.Seed(tcms.ClassTestPlan, tcms.Object{
		"id": int64(11), "name": "Smoke child", "parent": int64(10),
		"product": int64(1), "product_version": int64(700), "type": int64(200),
	})
	dir := t.TempDir()

	exp := New(s, Options{OutputDir: dir, IncludeDescendants: true, IncludeRuns: true}, nil)
	path, err := exp.ExportPlan(ctx, 10)
	if err != nil {
		t.Fatalf("ExportPlan: %v", err)
	}
	if filepath.Base(path) != "testplan_10.toml" {
		t.Errorf("document name = %q, want testplan_10.toml", filepath.Base(path))
	}

	c, _, err := document.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]int64{10, 11}, c.SortedIDs(entity.GroupTestPlans)); diff != "" {
		t.Errorf("plan subtree (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{1200}, c.SortedIDs(entity.GroupTestRuns)); diff != "" {
		t.Errorf("runs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{1300}, c.SortedIDs(entity.GroupTestExecutions)); diff != "" {
		t.Errorf("executions (-want +got):\n%s", diff)
	}
}

func TestExportPlanWithoutRuns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := seedServer(t)
	dir := t.TempDir()

	exp := New(s, Options{OutputDir: dir}, nil)
	path, err := exp.ExportPlan(ctx, 10)
	if err != nil {
		t.Fatalf("ExportPlan: %v", err)
	}
	c, _, err := document.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.SortedIDs(entity.GroupTestRuns); len(got) != 0 {
		t.Errorf("runs exported without IncludeRuns: %v", got)
	}
	if diff := cmp.Diff([]int64{1100}, c.SortedIDs(entity.GroupTestCases)); diff != "" {
		t.Errorf("cases (-want +got):\n%s", diff)
	}
}

func TestExportCase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := seedServer(t)
	dir := t.TempDir()

	exp := New(s, Options{OutputDir: dir}, nil)
	path, err := exp.ExportCase(ctx, 1100)
	if err != nil {
		t.Fatalf("ExportCase: %v", err)
	}

	c, _, err := document.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Type != entity.TypeCase || c.ID != 1100 || c.Name != "Login Test" {
		t.Errorf("header = %s/%d/%q", c.Type, c.ID, c.Name)
	}
	// The owning category and product come along even for a single case.
	if tcms.ObjectID(c.Product) != 1 {
		t.Errorf("product id = %d, want 1", tcms.ObjectID(c.Product))
	}
	if diff := cmp.Diff([]int64{900}, c.MasterData.SortedIDs(tcms.MDCategories)); diff != "" {
		t.Errorf("categories (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{300}, c.MasterData.SortedIDs(tcms.MDPriorities)); diff != "" {
		t.Errorf("priorities (-want +got):\n%s", diff)
	}
}

func TestExportMissingObject(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := seedServer(t)
	dir := t.TempDir()

	exp := New(s, Options{OutputDir: dir}, nil)
	_, err := exp.ExportPlan(ctx, 999)
	if !errors.Is(err, tcms.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	// A failed export leaves no document behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("output directory not empty after failed export: %v", entries)
	}
}
