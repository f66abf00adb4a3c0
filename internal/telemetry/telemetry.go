// Package telemetry provides a JSONL event stream recording every decision
// the sync engine makes: matches, creations, updates, skips, uploads. The
// stream doubles as the dry-run report, since dry runs emit the same events
// without the server writes.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Event kinds identify the type of sync event.
const (
	KindExportStart        = "export_start"
	KindExportDone         = "export_done"
	KindImportStart        = "import_start"
	KindImportDone         = "import_done"
	KindRunStart           = "run_start"
	KindRunDone            = "run_done"
	KindObjectMatched      = "object_matched"
	KindObjectCreated      = "object_created"
	KindObjectUpdated      = "object_updated"
	KindObjectSkipped      = "object_skipped"
	KindAttachmentFetched  = "attachment_fetched"
	KindAttachmentUploaded = "attachment_uploaded"
	KindResultRecorded     = "result_recorded"
	KindIssue              = "issue"
)

// Event represents a single sync record. Each event carries a timestamp, a
// kind tag, and optional object identifiers along with arbitrary structured
// data.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	Class     string    `json:"class,omitempty"`
	ObjectID  int64     `json:"object,omitempty"`
	Name      string    `json:"name,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Emitter writes sync events to a JSONL file. It is safe for concurrent use
// by multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
}

// NewEmitter creates a new Emitter that writes JSONL events to the file at
// path. The file is created if it does not exist, or appended to if it does.
func NewEmitter(path string) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Emitter{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Emit writes a single event. Calling Emit on a nil Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: write event: %w", err)
	}
	return nil
}

// Record is a convenience wrapper emitting a kind with object context,
// swallowing write errors: telemetry must never fail an operation.
func (e *Emitter) Record(kind, class string, objectID int64, name string) {
	_ = e.Emit(Event{Kind: kind, Class: class, ObjectID: objectID, Name: name})
}

// Close flushes and closes the underlying file. Safe on nil.
func (e *Emitter) Close() error {
	if e == nil || e.file == nil {
		return nil
	}
	return e.file.Close()
}
