package importer

import (
	"context"
	"fmt"
	"os"

	"github.com/FrankSommer-64/issai-sub000/internal/attach"
	"github.com/FrankSommer-64/issai-sub000/internal/entity"
	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
	"github.com/FrankSommer-64/issai-sub000/internal/telemetry"
)

// runResults pushes recorded execution and run outcomes to the server. A
// result document records owning objects by id and by name; both must agree
// with the live server before anything is written, protecting against
// importing a result file against the wrong server state.
func (imp *Importer) runResults(ctx context.Context, o *Outcome) error {
	objs := imp.c.Objects(entity.GroupCaseResults)
	for _, id := range imp.c.SortedIDs(entity.GroupCaseResults) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := imp.importCaseResult(ctx, o, objs[id]); err != nil {
			return err
		}
	}
	planObjs := imp.c.Objects(entity.GroupPlanResults)
	for _, id := range imp.c.SortedIDs(entity.GroupPlanResults) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := imp.importPlanResult(ctx, o, planObjs[id]); err != nil {
			return err
		}
	}
	return nil
}

func (imp *Importer) importCaseResult(ctx context.Context, o *Outcome, res tcms.Object) error {
	execID, _ := tcms.AsID(res[entity.AttrExecution])
	exec, err := imp.session.FindObject(ctx, tcms.ClassExecution, tcms.Filter{"id": execID})
	if err != nil {
		return fmt.Errorf("locating execution %d: %w", execID, err)
	}
	if exec == nil {
		o.errorf("execution %d recorded in result does not exist on the server", execID)
		return nil
	}

	// The live execution's case must be the case the result was recorded
	// for.
	caseID, _ := tcms.AsID(exec["case"])
	liveCase, err := imp.session.FindObject(ctx, tcms.ClassTestCase, tcms.Filter{"id": caseID})
	if err != nil {
		return fmt.Errorf("locating case %d: %w", caseID, err)
	}
	recordedName := tcms.AsString(res[entity.AttrCaseName])
	liveName := ""
	if liveCase != nil {
		liveName = tcms.AsString(liveCase["summary"])
	}
	if liveName != recordedName {
		o.errorf("execution %d belongs to case %q but the result was recorded for %q",
			execID, liveName, recordedName)
		return nil
	}

	attrs := tcms.Object{}
	if v, ok := res[entity.AttrStartedAt]; ok {
		attrs["start"] = v
	}
	if v, ok := res[entity.AttrStoppedAt]; ok {
		attrs["stop"] = v
	}
	if v, ok := res[entity.AttrComment]; ok {
		attrs["comment"] = v
	}
	if statusName := tcms.AsString(res[entity.AttrStatus]); statusName != "" {
		statusID, err := imp.c.MasterData.ExecutionStatusIDOf(imp.opts.StatusMap(statusName))
		if err != nil {
			o.errorf("execution %d: %v", execID, err)
			return nil
		}
		attrs["status"] = statusID
	}
	testerID, err := imp.resolveTester(ctx, o, tcms.AsString(res[entity.AttrTesterName]))
	if err != nil {
		return err
	}
	if testerID != 0 {
		attrs["tester"] = testerID
	}

	if imp.opts.DryRun {
		o.Updated++
		imp.Logger.Info("dry-run: would push case result", "execution", execID)
		return nil
	}
	if _, err := imp.session.UpdateObject(ctx, tcms.ClassExecution, execID, attrs); err != nil {
		return fmt.Errorf("pushing result of execution %d: %w", execID, err)
	}
	o.Updated++
	imp.Telemetry.Record(telemetry.KindObjectUpdated, tcms.ClassExecution.String(), execID, recordedName)

	if imp.opts.WithAttachments {
		runID, _ := tcms.AsID(exec["run"])
		return imp.uploadOutputFiles(ctx, o, res, execID, runID)
	}
	return nil
}

func (imp *Importer) importPlanResult(ctx context.Context, o *Outcome, res tcms.Object) error {
	runID, _ := tcms.AsID(res[entity.AttrRun])
	run, err := imp.session.FindObject(ctx, tcms.ClassTestRun, tcms.Filter{"id": runID})
	if err != nil {
		return fmt.Errorf("locating run %d: %w", runID, err)
	}
	if run == nil {
		o.errorf("run %d recorded in result does not exist on the server", runID)
		return nil
	}
	planID, _ := tcms.AsID(run["plan"])
	livePlan, err := imp.session.FindObject(ctx, tcms.ClassTestPlan, tcms.Filter{"id": planID})
	if err != nil {
		return fmt.Errorf("locating plan %d: %w", planID, err)
	}
	recordedName := tcms.AsString(res[entity.AttrPlanName])
	liveName := ""
	if livePlan != nil {
		liveName = tcms.AsString(livePlan["name"])
	}
	if liveName != recordedName {
		o.errorf("run %d belongs to plan %q but the result was recorded for %q",
			runID, liveName, recordedName)
		return nil
	}

	attrs := tcms.Object{}
	if v, ok := res[entity.AttrStartedAt]; ok {
		attrs["start"] = v
	}
	if v, ok := res[entity.AttrStoppedAt]; ok {
		attrs["stop"] = v
	}
	if v, ok := res[entity.AttrNotes]; ok {
		attrs["notes"] = v
	}
	if v, ok := res[entity.AttrSummary]; ok {
		attrs["summary"] = v
	}

	if imp.opts.DryRun {
		o.Updated++
		imp.Logger.Info("dry-run: would push plan result", "run", runID)
		return nil
	}
	if _, err := imp.session.UpdateObject(ctx, tcms.ClassTestRun, runID, attrs); err != nil {
		return fmt.Errorf("pushing result of run %d: %w", runID, err)
	}
	o.Updated++
	imp.Telemetry.Record(telemetry.KindObjectUpdated, tcms.ClassTestRun.String(), runID, recordedName)
	return nil
}

// uploadOutputFiles uploads a case result's output files. The server only
// accepts attachments on runs, not executions, so files are uploaded
// against the owning run with the execution id prefixed to the name to
// disambiguate.
func (imp *Importer) uploadOutputFiles(ctx context.Context, o *Outcome, res tcms.Object, execID, runID int64) error {
	files, ok := tcmsStringList(res[entity.AttrOutputFiles])
	if !ok {
		return nil
	}
	for _, rawURL := range files {
		name := attach.FileName(rawURL)
		if imp.opts.UploadPatterns != nil && !imp.opts.UploadPatterns.Allows(name) {
			continue
		}
		local := attach.LocalPath(imp.opts.BaseDir, tcms.ClassExecution, execID, rawURL)
		data, err := os.ReadFile(local)
		if err != nil {
			o.warnf("output file %s of execution %d not readable, skipped: %v", local, execID, err)
			continue
		}
		uploadName := fmt.Sprintf("%d_%s", execID, name)
		if imp.opts.DryRun {
			imp.Logger.Info("dry-run: would upload", "run", runID, "file", uploadName)
			continue
		}
		if _, err := imp.session.UploadAttachment(ctx, tcms.ClassTestRun, runID, uploadName, data); err != nil {
			return fmt.Errorf("uploading %s to run %d: %w", uploadName, runID, err)
		}
		o.Uploaded++
		imp.Telemetry.Record(telemetry.KindAttachmentUploaded, tcms.ClassTestRun.String(), runID, uploadName)
	}
	return nil
}

func tcmsStringList(v any) ([]string, bool) {
	switch l := v.(type) {
	case []string:
		return l, true
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
