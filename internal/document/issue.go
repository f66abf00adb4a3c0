// Package document converts containers to and from their on-disk TOML
// representation, one document per exported entity. Reading validates the
// document exhaustively and reports every issue found in one aggregated
// report; only unsupported-attribute issues are warnings, everything else
// renders the document unusable for import.
package document

import (
	"errors"
	"fmt"
	"strings"
)

// IssueKind classifies one validation finding.
type IssueKind string

const (
	// KindMissing: a mandatory attribute or group is absent.
	KindMissing IssueKind = "missing"
	// KindInvalidType: an attribute has the wrong declared type.
	KindInvalidType IssueKind = "invalid-type"
	// KindInvalidValue: the type is right but the value is outside the
	// allowed set.
	KindInvalidValue IssueKind = "invalid-value"
	// KindMismatch: two attributes that must agree, disagree.
	KindMismatch IssueKind = "mismatch"
	// KindMultiple: a group that holds at most one element has more.
	KindMultiple IssueKind = "multiple"
	// KindUnsupported: an unknown attribute or group. The only non-fatal
	// kind; the element is ignored.
	KindUnsupported IssueKind = "unsupported"
)

// Issue is one validation finding, located by the document path of the
// offending group or attribute.
type Issue struct {
	Kind   IssueKind
	Path   string
	Detail string
}

func (i Issue) String() string {
	if i.Detail == "" {
		return fmt.Sprintf("%s: %s", i.Path, i.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", i.Path, i.Kind, i.Detail)
}

// ErrInvalidDocument is wrapped by the aggregated report when a document
// contains fatal issues.
var ErrInvalidDocument = errors.New("invalid entity document")

// Report aggregates every issue found in one document.
type Report struct {
	Issues []Issue
}

func (r *Report) add(kind IssueKind, path, detail string) {
	r.Issues = append(r.Issues, Issue{Kind: kind, Path: path, Detail: detail})
}

// Fatal reports whether the document is unusable: any issue other than an
// unsupported-attribute warning.
func (r *Report) Fatal() bool {
	for _, i := range r.Issues {
		if i.Kind != KindUnsupported {
			return true
		}
	}
	return false
}

// Warnings returns the non-fatal issues.
func (r *Report) Warnings() []Issue {
	var w []Issue
	for _, i := range r.Issues {
		if i.Kind == KindUnsupported {
			w = append(w, i)
		}
	}
	return w
}

// Err returns an error naming every fatal issue, or nil when the document
// is usable.
func (r *Report) Err() error {
	if !r.Fatal() {
		return nil
	}
	var lines []string
	for _, i := range r.Issues {
		if i.Kind != KindUnsupported {
			lines = append(lines, i.String())
		}
	}
	return fmt.Errorf("%w:\n  %s", ErrInvalidDocument, strings.Join(lines, "\n  "))
}
