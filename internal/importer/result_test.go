package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FrankSommer-64/issai-sub000/internal/entity"
	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
)

func resultServer(t *testing.T) *tcms.OfflineSession {
	t.Helper()
	s := tcms.NewOfflineSession(tcms.Object{"id": int64(601), "username": "bob"})
	s.Seed(tcms.ClassTestPlan, tcms.Object{"id": int64(77), "name": "Nightly"})
	s.Seed(tcms.ClassTestRun, tcms.Object{"id": int64(42), "summary": "Nightly run", "plan": int64(77)})
	s.Seed(tcms.ClassTestCase, tcms.Object{"id": int64(5), "summary": "Login Test"})
	s.Seed(tcms.ClassExecution, tcms.Object{"id": int64(9), "case": int64(5), "run": int64(42)})
	return s
}

func resultContainer(t *testing.T, planName, caseName string) *entity.Container {
	t.Helper()
	c := entity.NewResultContainer(77, planName)
	if err := c.MasterData.AddObject(tcms.MDExecutionStatuses, tcms.Object{"id": int64(500), "name": "PASSED"}); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	started := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	pr := entity.NewPlanResult(42, 77, planName)
	entity.StampResult(pr, started, started.Add(time.Minute), "")
	pr[entity.AttrSummary] = "1 passed, 0 failed, 0 not run"
	if err := c.Add(entity.GroupPlanResults, pr); err != nil {
		t.Fatalf("Add: %v", err)
	}

	cr := entity.NewCaseResult(9, 5, caseName)
	entity.StampResult(cr, started, started.Add(30*time.Second), "OK")
	if err := c.Add(entity.GroupCaseResults, cr); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return c
}

func TestImportResults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := resultServer(t)

	// Recorded statuses use this installation's custom names.
	statusMap := func(name string) string {
		if name == "OK" {
			return "PASSED"
		}
		return name
	}
	o, err := New(s, resultContainer(t, "Nightly", "Login Test"), Options{StatusMap: statusMap}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !o.Succeeded() {
		t.Fatalf("outcome errors: %v", o.Errors)
	}
	if o.Updated != 2 {
		t.Errorf("updated %d objects, want 2 (execution and run)", o.Updated)
	}

	exec := serverObject(t, s, tcms.ClassExecution, tcms.Filter{"id": int64(9)})
	if got, _ := tcms.AsID(exec["status"]); got != 500 {
		t.Errorf("execution status = %d, want 500", got)
	}
	if tcms.AsString(exec["start"]) == "" || tcms.AsString(exec["stop"]) == "" {
		t.Error("execution window not recorded")
	}

	run := serverObject(t, s, tcms.ClassTestRun, tcms.Filter{"id": int64(42)})
	if got := tcms.AsString(run["summary"]); got != "1 passed, 0 failed, 0 not run" {
		t.Errorf("run summary = %q", got)
	}
}

func TestImportResultsPlanMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := resultServer(t)

	// Run 42 belongs to the Nightly plan, the result claims Smoke. Nothing
	// may be written: only the case result references run state indirectly,
	// so isolate the plan mismatch with a plan-result-only container.
	c := entity.NewResultContainer(77, "Smoke")
	pr := entity.NewPlanResult(42, 77, "Smoke")
	if err := c.Add(entity.GroupPlanResults, pr); err != nil {
		t.Fatalf("Add: %v", err)
	}

	o, err := New(s, c, Options{}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if o.Succeeded() {
		t.Fatal("mismatched plan name must fail the import")
	}
	msg := strings.Join(o.Errors, "\n")
	if !strings.Contains(msg, "Nightly") || !strings.Contains(msg, "Smoke") {
		t.Errorf("error does not name both plans: %q", msg)
	}
	if s.UpdateCount() != 0 {
		t.Errorf("server saw %d updates despite the mismatch", s.UpdateCount())
	}
}

func TestImportResultsCaseMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := resultServer(t)

	o, err := New(s, resultContainer(t, "Nightly", "Logout Test"), Options{}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if o.Succeeded() {
		t.Fatal("mismatched case name must fail the import")
	}
	// The case result is rejected; the consistent plan result still lands.
	exec := serverObject(t, s, tcms.ClassExecution, tcms.Filter{"id": int64(9)})
	if _, written := exec["status"]; written {
		t.Error("rejected case result wrote a status")
	}
}

func TestImportResultsDryRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := resultServer(t)

	o, err := New(s, resultContainer(t, "Nightly", "Login Test"), Options{
		DryRun: true,
		StatusMap: func(name string) string {
			return "PASSED"
		},
	}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !o.Succeeded() {
		t.Fatalf("outcome errors: %v", o.Errors)
	}
	if s.UpdateCount() != 0 {
		t.Errorf("dry run updated the server %d times", s.UpdateCount())
	}
}

func TestImportResultsOutputFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := resultServer(t)

	baseDir := t.TempDir()
	local := filepath.Join(baseDir, "attachments", "execution", "9", "run.log")
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(local, []byte("case output"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c := resultContainer(t, "Nightly", "Login Test")
	cr, err := c.Get(entity.GroupCaseResults, 9)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	cr[entity.AttrOutputFiles] = []string{"offline://execution/9/run.log"}

	o, err := New(s, c, Options{
		WithAttachments: true,
		BaseDir:         baseDir,
		StatusMap:       func(string) string { return "PASSED" },
	}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !o.Succeeded() {
		t.Fatalf("outcome errors: %v", o.Errors)
	}
	ups := s.Uploads()
	if len(ups) != 1 {
		t.Fatalf("got %d uploads, want 1", len(ups))
	}
	// Output files land on the owning run, execution id prefixed.
	if ups[0].Class != tcms.ClassTestRun || ups[0].ObjectID != 42 || ups[0].Filename != "9_run.log" {
		t.Errorf("upload = %+v, want run 42 file 9_run.log", ups[0])
	}
	if o.Uploaded != 1 {
		t.Errorf("outcome uploaded = %d, want 1", o.Uploaded)
	}
}
