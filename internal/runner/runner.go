// Package runner executes a test plan's cases against local script
// drivers, sequentially, producing a plan-result container and recording
// outcomes in the local result store. It runs either against a live
// session or fully offline against a session seeded from an exported
// document.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/FrankSommer-64/issai-sub000/internal/entity"
	"github.com/FrankSommer-64/issai-sub000/internal/results"
	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
	"github.com/FrankSommer-64/issai-sub000/internal/telemetry"
)

// Status names recorded for case outcomes.
const (
	StatusPassed = "PASSED"
	StatusFailed = "FAILED"
	StatusIdle   = "IDLE"
)

// Options controls plan execution.
type Options struct {
	// ScriptDir is prepended to relative script paths.
	ScriptDir string
	// OutputDir receives one output file per executed case.
	OutputDir string
	// Timeout bounds one case execution; zero means no bound.
	Timeout time.Duration
}

// Runner executes plans. The store is optional; when set, every run is
// recorded locally regardless of later upload.
type Runner struct {
	store *results.Store
	opts  Options

	Logger    *slog.Logger
	Telemetry *telemetry.Emitter
}

// New returns a runner.
func New(store *results.Store, opts Options) *Runner {
	return &Runner{store: store, opts: opts, Logger: slog.Default()}
}

// OfflineSessionFor seeds an in-memory session from an exported container,
// letting a plan run without a live server.
func OfflineSessionFor(c *entity.Container) *tcms.OfflineSession {
	s := tcms.NewOfflineSession(nil)
	if c.Product != nil {
		s.Seed(tcms.ClassProduct, c.Product)
	}
	for _, mdType := range tcms.MasterDataTypes() {
		class, _ := tcms.ClassForMasterDataType(mdType)
		objs, err := c.MasterData.ObjectsOfType(mdType)
		if err != nil {
			continue
		}
		for _, obj := range objs {
			s.Seed(class, obj)
		}
	}
	for _, g := range c.Groups() {
		class, ok := entity.ClassFor(g)
		if !ok {
			continue
		}
		for _, obj := range c.Objects(g) {
			s.Seed(class, obj)
		}
	}
	return s
}

// RunPlan executes every case of the container's plan and returns the
// plan-result container. The run id is taken from an included test run of
// the plan when present, otherwise the plan id stands in (offline runs
// have no server-assigned run).
func (r *Runner) RunPlan(ctx context.Context, c *entity.Container) (*entity.Container, error) {
	planID := c.ID
	runID := planID
	for id, run := range c.Objects(entity.GroupTestRuns) {
		if pid, ok := tcms.AsID(run["plan"]); ok && pid == planID {
			runID = id
			break
		}
	}

	r.Telemetry.Record(telemetry.KindRunStart, string(entity.TypePlan), planID, c.Name)
	started := time.Now()

	result := entity.NewResultContainer(planID, c.Name)
	planResult := entity.NewPlanResult(runID, planID, c.Name)

	// Carry the execution-status catalog along so a later upload can
	// resolve the recorded status names.
	if statuses, err := c.MasterData.ObjectsOfType(tcms.MDExecutionStatuses); err == nil {
		for _, st := range statuses {
			if err := result.MasterData.AddObject(tcms.MDExecutionStatuses, st); err != nil {
				return nil, err
			}
		}
	}

	var caseResults []tcms.Object
	passed, failed, idle := 0, 0, 0
	for _, caseID := range c.SortedIDs(entity.GroupTestCases) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tc, err := c.Get(entity.GroupTestCases, caseID)
		if err != nil {
			return nil, err
		}
		cr := r.runCase(ctx, tc, caseID, runID, c)
		caseResults = append(caseResults, cr)
		switch tcms.AsString(cr[entity.AttrStatus]) {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		default:
			idle++
		}
	}

	stopped := time.Now()
	summary := fmt.Sprintf("%d passed, %d failed, %d not run", passed, failed, idle)
	entity.StampResult(planResult, started, stopped, "")
	planResult[entity.AttrSummary] = summary

	if err := result.Add(entity.GroupPlanResults, planResult); err != nil {
		return nil, err
	}
	if err := result.Add(entity.GroupCaseResults, caseResults...); err != nil {
		return nil, err
	}
	if err := r.record(ctx, result, planResult, caseResults); err != nil {
		return nil, err
	}

	r.Logger.Info("plan run complete", "plan", planID, "name", c.Name, "summary", summary)
	r.Telemetry.Record(telemetry.KindRunDone, string(entity.TypePlan), planID, summary)
	return result, nil
}

// executionID resolves the execution belonging to (case, run) from the
// container, falling back to the case id for offline runs that carry no
// executions.
func executionID(c *entity.Container, caseID, runID int64) int64 {
	for id, ex := range c.Objects(entity.GroupTestExecutions) {
		cid, _ := tcms.AsID(ex["case"])
		rid, _ := tcms.AsID(ex["run"])
		if cid == caseID && rid == runID {
			return id
		}
	}
	return caseID
}

// runCase executes one case's script and builds its result object. A case
// without a script is recorded as not run.
func (r *Runner) runCase(ctx context.Context, tc tcms.Object, caseID, runID int64, c *entity.Container) tcms.Object {
	name := tcms.AsString(tc["summary"])
	execID := executionID(c, caseID, runID)
	cr := entity.NewCaseResult(execID, caseID, name)

	script := tcms.AsString(tc["script"])
	if script == "" {
		cr[entity.AttrStatus] = StatusIdle
		cr[entity.AttrComment] = "no script attached"
		return cr
	}
	if r.opts.ScriptDir != "" && !filepath.IsAbs(script) {
		script = filepath.Join(r.opts.ScriptDir, script)
	}
	if args := tcms.AsString(tc["arguments"]); args != "" {
		script += " " + args
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if r.opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
	}
	defer cancel()

	started := time.Now()
	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", script)
	output, err := cmd.CombinedOutput()
	stopped := time.Now()

	status := StatusPassed
	if err != nil {
		status = StatusFailed
		cr[entity.AttrComment] = err.Error()
	}
	entity.StampResult(cr, started, stopped, status)

	if r.opts.OutputDir != "" && len(output) > 0 {
		file := filepath.Join(r.opts.OutputDir, fmt.Sprintf("%d_%d.log", runID, caseID))
		if werr := os.MkdirAll(r.opts.OutputDir, 0o755); werr == nil {
			if werr := os.WriteFile(file, output, 0o644); werr == nil {
				cr[entity.AttrOutputFiles] = []string{file}
			} else {
				r.Logger.Warn("case output not written", "case", caseID, "error", werr)
			}
		}
	}
	r.Logger.Debug("case executed", "case", caseID, "name", name, "status", status)
	return cr
}

// record persists the run in the local result store.
func (r *Runner) record(ctx context.Context, result *entity.Container, planResult tcms.Object, caseResults []tcms.Object) error {
	if r.store == nil {
		return nil
	}
	started, _ := time.Parse(time.RFC3339, tcms.AsString(planResult[entity.AttrStartedAt]))
	stopped, _ := time.Parse(time.RFC3339, tcms.AsString(planResult[entity.AttrStoppedAt]))
	rowID, err := r.store.RecordRun(ctx, results.PlanRun{
		RunID:     tcms.ObjectID(planResult),
		PlanID:    result.ID,
		PlanName:  result.Name,
		StartedAt: started,
		StoppedAt: stopped,
		Summary:   tcms.AsString(planResult[entity.AttrSummary]),
	})
	if err != nil {
		return err
	}
	for _, cr := range caseResults {
		cs, _ := time.Parse(time.RFC3339, tcms.AsString(cr[entity.AttrStartedAt]))
		ce, _ := time.Parse(time.RFC3339, tcms.AsString(cr[entity.AttrStoppedAt]))
		outputFile := ""
		if files, ok := tcmsOutputFiles(cr); ok && len(files) > 0 {
			outputFile = files[0]
		}
		caseID, _ := tcms.AsID(cr[entity.AttrCase])
		execID, _ := tcms.AsID(cr[entity.AttrExecution])
		err := r.store.RecordCaseResult(ctx, results.CaseResult{
			PlanRun:     rowID,
			ExecutionID: execID,
			CaseID:      caseID,
			CaseName:    tcms.AsString(cr[entity.AttrCaseName]),
			Status:      tcms.AsString(cr[entity.AttrStatus]),
			StartedAt:   cs,
			StoppedAt:   ce,
			Comment:     tcms.AsString(cr[entity.AttrComment]),
			OutputFile:  outputFile,
		})
		if err != nil {
			return err
		}
		r.Telemetry.Record(telemetry.KindResultRecorded, tcms.ClassTestCase.String(), caseID,
			tcms.AsString(cr[entity.AttrCaseName]))
	}
	return nil
}

func tcmsOutputFiles(obj tcms.Object) ([]string, bool) {
	switch l := obj[entity.AttrOutputFiles].(type) {
	case []string:
		return l, true
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}
