package importer

import (
	"context"
	"fmt"
	"sort"

	"github.com/FrankSommer-64/issai-sub000/internal/entity"
	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
	"github.com/FrankSommer-64/issai-sub000/internal/telemetry"
)

// importEnvironments reconciles the environments group by name.
func (imp *Importer) importEnvironments(ctx context.Context, o *Outcome) error {
	for _, g := range imp.c.Groups() {
		if g == entity.GroupEnvironments {
			return imp.importGroup(ctx, o, tcms.ClassEnvironment, imp.c.SortedIDs(g))
		}
	}
	return nil
}

// importCases reconciles every test case. Cases are matched by summary
// within their category (the multi-attribute key), never by summary alone.
func (imp *Importer) importCases(ctx context.Context, o *Outcome) error {
	return imp.importGroup(ctx, o, tcms.ClassTestCase, imp.c.SortedIDs(entity.GroupTestCases))
}

// importRuns reconciles every test run, matched within (build, plan).
func (imp *Importer) importRuns(ctx context.Context, o *Outcome) error {
	return imp.importGroup(ctx, o, tcms.ClassTestRun, imp.c.SortedIDs(entity.GroupTestRuns))
}

// importGroup runs the shared match/create/rewrite sequence for the
// objects of one specification class.
func (imp *Importer) importGroup(ctx context.Context, o *Outcome, class tcms.Class, ids []int64) error {
	g, _ := entity.GroupFor(class)
	objs := imp.c.Objects(g)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, ok := objs[id]
		if !ok {
			continue // rewritten away during this sweep
		}
		if err := imp.importObject(ctx, o, class, id, obj); err != nil {
			return err
		}
	}
	return nil
}

func (imp *Importer) importObject(ctx context.Context, o *Outcome, class tcms.Class, id int64, obj tcms.Object) error {
	st, err := tcms.Match(ctx, imp.session, class, obj)
	if err != nil {
		return err
	}
	name := tcms.AsString(obj[tcms.IdentifyingAttr(class)])
	switch st.Kind {
	case tcms.ExactMatch:
		o.Skipped++
		imp.skip(class, obj, "exists")
		return nil
	case tcms.OtherNameMatch:
		imp.matched(class, obj, st.Server)
		if err := imp.c.ReplaceObject(class, id, st.Server); err != nil {
			o.errorf("replacing %s %q: %v", class, name, err)
		}
		return nil
	}
	created, err := imp.create(ctx, o, class, obj)
	if err != nil || created == nil {
		return err
	}
	if err := imp.c.ReplaceObject(class, id, created); err != nil {
		o.errorf("installing created %s %q: %v", class, name, err)
	}
	return nil
}

// importPlans reconciles the plan hierarchy with a worklist fixed point: a
// child plan cannot be imported before its parent's real server id is
// known, so each sweep processes only plans whose parent is absent or
// already resolved. A sweep that makes no progress means the remaining
// plans have unresolvable parents; that is an error naming them, never a
// silent drop.
func (imp *Importer) importPlans(ctx context.Context, o *Outcome) error {
	objs := imp.c.Objects(entity.GroupTestPlans)
	pending := make(map[int64]tcms.Object, len(objs))
	for id, obj := range objs {
		pending[id] = obj
	}

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		progressed := false
		for _, id := range sortedKeys(pending) {
			obj := pending[id]
			if parentID, ok := tcms.AsID(obj["parent"]); ok && parentID != 0 && parentID != id {
				if _, waiting := pending[parentID]; waiting {
					continue
				}
			}
			if err := imp.importObject(ctx, o, tcms.ClassTestPlan, id, obj); err != nil {
				return err
			}
			delete(pending, id)
			progressed = true
		}
		if !progressed {
			return fmt.Errorf("%w: %v", ErrOrphanedPlans, sortedKeys(pending))
		}
	}
	return nil
}

func sortedKeys(m map[int64]tcms.Object) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// importExecutions reconciles test executions, matched by (case, run). An
// execution is never created from scratch: attaching a case to a run
// created it server-side, so an unmatched execution is updated after its
// id is resolved, and a truly absent one is an error. Only attributes that
// differ from the server's current values are pushed; an execution whose
// recorded values are all current is skipped.
func (imp *Importer) importExecutions(ctx context.Context, o *Outcome) error {
	objs := imp.c.Objects(entity.GroupTestExecutions)
	for _, id := range imp.c.SortedIDs(entity.GroupTestExecutions) {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, ok := objs[id]
		if !ok {
			continue
		}
		caseID, _ := tcms.AsID(obj["case"])
		runID, _ := tcms.AsID(obj["run"])
		found, err := imp.session.FindObject(ctx, tcms.ClassExecution, tcms.Filter{"case": caseID, "run": runID})
		if err != nil {
			return &tcms.StatusCheckError{Class: tcms.ClassExecution, Name: fmt.Sprintf("case %d run %d", caseID, runID), Err: err}
		}
		if found == nil {
			o.errorf("execution of case %d in run %d does not exist on the server", caseID, runID)
			continue
		}
		serverID := tcms.ObjectID(found)
		if serverID != id {
			imp.matched(tcms.ClassExecution, obj, found)
			// The container object keeps its recorded attributes but now
			// lives under the server id.
			obj["id"] = serverID
			if err := imp.c.ReplaceObject(tcms.ClassExecution, id, obj); err != nil {
				o.errorf("rewriting execution %d: %v", id, err)
				continue
			}
		}
		attrs := obj.Clone()
		delete(attrs, "id")
		delete(attrs, "case")
		delete(attrs, "run")
		for k, v := range attrs {
			if tcms.ValueEqual(v, found[k]) {
				delete(attrs, k)
			}
		}
		if len(attrs) == 0 {
			o.Skipped++
			imp.skip(tcms.ClassExecution, obj, "server values already current")
			continue
		}
		if imp.opts.DryRun {
			o.Updated++
			imp.Logger.Info("dry-run: would update execution", "id", serverID)
			continue
		}
		if _, err := imp.session.UpdateObject(ctx, tcms.ClassExecution, serverID, attrs); err != nil {
			return fmt.Errorf("updating execution %d: %w", serverID, err)
		}
		o.Updated++
		imp.Telemetry.Record(telemetry.KindObjectUpdated, tcms.ClassExecution.String(), serverID, "")
	}
	return nil
}
