package tcms

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Upload records one attachment upload accepted by an OfflineSession.
type Upload struct {
	Class    Class
	ObjectID int64
	Filename string
	Size     int
}

// OfflineSession is an in-memory Session. It backs offline plan runs (loaded
// from an exported document instead of a live server) and serves as the
// server double in tests. Semantics follow the live server where they
// matter to the sync engine: ids are assigned on create, and attaching cases
// to a new test run implicitly creates one execution per case.
type OfflineSession struct {
	mu      sync.Mutex
	nextID  int64
	objects map[Class]map[int64]Object
	user    Object

	creates int
	updates int
	uploads []Upload
}

// NewOfflineSession returns an empty session whose current user is the
// given identity. The user object is also seeded into the user collection.
func NewOfflineSession(user Object) *OfflineSession {
	s := &OfflineSession{
		nextID:  1000,
		objects: make(map[Class]map[int64]Object),
	}
	if user != nil {
		s.user = user
		s.Seed(ClassUser, user)
	}
	return s
}

// Seed installs an object under its existing id without counting it as a
// create. Used when populating a session from an exported document.
func (s *OfflineSession) Seed(c Class, obj Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(c, obj)
}

func (s *OfflineSession) put(c Class, obj Object) {
	coll := s.objects[c]
	if coll == nil {
		coll = make(map[int64]Object)
		s.objects[c] = coll
	}
	id := ObjectID(obj)
	coll[id] = obj
	if id >= s.nextID {
		s.nextID = id + 1
	}
}

// CreateCount returns how many objects were created through the session.
func (s *OfflineSession) CreateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

// UpdateCount returns how many objects were updated through the session.
func (s *OfflineSession) UpdateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

// Uploads returns every attachment upload the session accepted.
func (s *OfflineSession) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

// Objects returns the stored objects of a class, in ascending id order.
func (s *OfflineSession) Objects(c Class) []Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchLocked(c, nil)
}

func (s *OfflineSession) matchLocked(c Class, filter Filter) []Object {
	coll := s.objects[c]
	ids := make([]int64, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var found []Object
	for _, id := range ids {
		obj := coll[id]
		if matchesFilter(obj, filter) {
			found = append(found, obj)
		}
	}
	return found
}

// matchesFilter applies attribute-equality semantics: numeric values compare
// as ids, and a scalar filter value matches a list attribute when it is an
// element of the list.
func matchesFilter(obj Object, filter Filter) bool {
	for attr, want := range filter {
		have, ok := obj[attr]
		if !ok {
			return false
		}
		if wantID, ok := AsID(want); ok {
			if haveID, ok := AsID(have); ok {
				if haveID != wantID {
					return false
				}
				continue
			}
			if list, ok := AsIDList(have); ok {
				hit := false
				for _, e := range list {
					if e == wantID {
						hit = true
						break
					}
				}
				if !hit {
					return false
				}
				continue
			}
			return false
		}
		if have != want {
			return false
		}
	}
	return true
}

func (s *OfflineSession) FindObject(ctx context.Context, c Class, filter Filter) (Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	found := s.matchLocked(c, filter)
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0].Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s matched %d objects", ErrAmbiguous, c, len(found))
}

func (s *OfflineSession) FindObjects(ctx context.Context, c Class, filter Filter) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	found := s.matchLocked(c, filter)
	out := make([]Object, len(found))
	for i, obj := range found {
		out[i] = obj.Clone()
	}
	return out, nil
}

func (s *OfflineSession) CreateObject(ctx context.Context, c Class, attrs Object) (Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := attrs.Clone()
	obj["id"] = s.nextID
	s.nextID++
	s.put(c, obj)
	s.creates++

	// Attaching cases to a new run implicitly creates their executions,
	// mirroring the live server.
	if c == ClassTestRun {
		if cases, ok := AsIDList(obj["cases"]); ok {
			for _, caseID := range cases {
				exec := Object{
					"id":   s.nextID,
					"run":  ObjectID(obj),
					"case": caseID,
				}
				if b, ok := AsID(obj["build"]); ok {
					exec["build"] = b
				}
				s.nextID++
				s.put(ClassExecution, exec)
			}
		}
	}
	return obj.Clone(), nil
}

func (s *OfflineSession) UpdateObject(ctx context.Context, c Class, id int64, attrs Object) (Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.objects[c]
	obj, ok := coll[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", ErrNotFound, c, id)
	}
	for k, v := range attrs {
		if k == "id" {
			continue
		}
		obj[k] = v
	}
	s.updates++
	return obj.Clone(), nil
}

func (s *OfflineSession) CurrentUser(ctx context.Context) (Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil, fmt.Errorf("%w: session has no current user", ErrNotFound)
	}
	return s.user.Clone(), nil
}

func (s *OfflineSession) UploadAttachment(ctx context.Context, c Class, id int64, filename string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, Upload{Class: c, ObjectID: id, Filename: filename, Size: len(content)})
	return fmt.Sprintf("offline://%s/%d/%s", AttachmentDir(c), id, filename), nil
}
