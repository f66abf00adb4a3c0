package importer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrImportFailed is wrapped by Outcome.Err when business-rule errors
// accumulated during an import.
var ErrImportFailed = errors.New("import failed")

// Outcome is the explicit result of an import and of each of its sub-steps.
// Business-rule violations accumulate here instead of aborting the run;
// the import as a whole succeeded only when zero errors accumulated, even
// if nothing was raised along the way. Hard technical failures (server
// communication, an unusable container) do not land here, they abort
// immediately.
type Outcome struct {
	Errors   []string
	Warnings []string

	Created  int
	Updated  int
	Skipped  int
	Uploaded int
}

func (o *Outcome) errorf(format string, args ...any) {
	o.Errors = append(o.Errors, fmt.Sprintf(format, args...))
}

func (o *Outcome) warnf(format string, args ...any) {
	o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...))
}

// Succeeded reports whether zero errors accumulated.
func (o *Outcome) Succeeded() bool {
	return len(o.Errors) == 0
}

// Err returns nil on success, or an error naming every accumulated issue.
func (o *Outcome) Err() error {
	if o.Succeeded() {
		return nil
	}
	return fmt.Errorf("%w with %d error(s):\n  %s", ErrImportFailed,
		len(o.Errors), strings.Join(o.Errors, "\n  "))
}

// Summary renders a one-line account of the import.
func (o *Outcome) Summary() string {
	return fmt.Sprintf("created %d, updated %d, skipped %d, uploaded %d, errors %d, warnings %d",
		o.Created, o.Updated, o.Skipped, o.Uploaded, len(o.Errors), len(o.Warnings))
}
