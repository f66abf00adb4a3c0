package tcms

import (
	"context"
	"errors"
	"fmt"
)

// ErrAmbiguous is returned when a lookup expected to be unique matched more
// than one server object.
var ErrAmbiguous = errors.New("ambiguous object lookup")

// ErrNotFound is returned when a server object required by an operation does
// not exist.
var ErrNotFound = errors.New("object not found")

// Session is the opaque RPC boundary to a test-case-management server. The
// wire protocol behind it is not this package's concern; implementations
// must preserve the filter semantics documented on Filter and the uniqueness
// contract of FindObject.
type Session interface {
	// FindObject returns the single object of class c matching filter, or
	// nil if none matches. More than one match is an error wrapping
	// ErrAmbiguous.
	FindObject(ctx context.Context, c Class, filter Filter) (Object, error)

	// FindObjects returns every object of class c matching filter.
	FindObjects(ctx context.Context, c Class, filter Filter) ([]Object, error)

	// CreateObject creates an object of class c; the server assigns the id
	// and returns the stored object.
	CreateObject(ctx context.Context, c Class, attrs Object) (Object, error)

	// UpdateObject updates the object identified by id and returns the
	// stored object.
	UpdateObject(ctx context.Context, c Class, id int64, attrs Object) (Object, error)

	// CurrentUser returns the identity the session is authenticated as.
	CurrentUser(ctx context.Context) (Object, error)

	// UploadAttachment stores a file against the object identified by
	// class and id and returns the server-side URL.
	UploadAttachment(ctx context.Context, c Class, id int64, filename string, content []byte) (string, error)
}

// StatusCheckError wraps a server failure during object-status matching with
// the class and identifying value being checked.
type StatusCheckError struct {
	Class Class
	Name  string
	Err   error
}

func (e *StatusCheckError) Error() string {
	return fmt.Sprintf("status check failed for %s %q: %v", e.Class, e.Name, e.Err)
}

func (e *StatusCheckError) Unwrap() error {
	return e.Err
}
