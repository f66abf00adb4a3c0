package entity

import (
	"time"

	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
)

// Result attribute names. Result objects record outcomes textually (status
// and tester by name, not id) so a result document stays meaningful when
// imported against a server with different master-data ids.
const (
	AttrPlan        = "plan"
	AttrPlanName    = "plan_name"
	AttrRun         = "run"
	AttrCase        = "case"
	AttrCaseName    = "case_name"
	AttrExecution   = "execution"
	AttrStatus      = "status"
	AttrTesterName  = "tester_name"
	AttrComment     = "comment"
	AttrNotes       = "notes"
	AttrSummary     = "summary"
	AttrStartedAt   = "started_at"
	AttrStoppedAt   = "stopped_at"
	AttrOutputFiles = "output-files"
)

// NewPlanResult builds a test-plan result object for the run of planID. The
// object id is the live run id, which is how a result container re-locates
// the run during import.
func NewPlanResult(runID, planID int64, planName string) tcms.Object {
	return tcms.Object{
		"id":         runID,
		AttrRun:      runID,
		AttrPlan:     planID,
		AttrPlanName: planName,
	}
}

// NewCaseResult builds a test-case result object for the execution of
// caseID within a run.
func NewCaseResult(executionID, caseID int64, caseName string) tcms.Object {
	return tcms.Object{
		"id":          executionID,
		AttrExecution: executionID,
		AttrCase:      caseID,
		AttrCaseName:  caseName,
	}
}

// StampResult records the execution window and outcome on a result object.
func StampResult(obj tcms.Object, started, stopped time.Time, status string) {
	obj[AttrStartedAt] = started.UTC().Format(time.RFC3339)
	obj[AttrStoppedAt] = stopped.UTC().Format(time.RFC3339)
	if status != "" {
		obj[AttrStatus] = status
	}
}

// NewResultContainer creates a plan-result container for the given plan.
func NewResultContainer(planID int64, planName string) *Container {
	return New(TypePlanResult, planID, planName)
}
