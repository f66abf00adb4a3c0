package tcms

import (
	"context"
	"errors"
	"testing"
)

func TestOfflineSessionCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewOfflineSession(nil)

	created, err := s.CreateObject(ctx, ClassProduct, Object{"name": "Demo"})
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	if ObjectID(created) == 0 {
		t.Fatal("created object has no id")
	}
	if s.CreateCount() != 1 {
		t.Errorf("create count = %d, want 1", s.CreateCount())
	}

	found, err := s.FindObject(ctx, ClassProduct, Filter{"name": "Demo"})
	if err != nil {
		t.Fatalf("FindObject: %v", err)
	}
	if ObjectID(found) != ObjectID(created) {
		t.Errorf("found id %d, want %d", ObjectID(found), ObjectID(created))
	}
}

func TestOfflineSessionRunCreatesExecutions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewOfflineSession(nil)

	run, err := s.CreateObject(ctx, ClassTestRun, Object{
		"summary": "Smoke run",
		"plan":    int64(10),
		"build":   int64(20),
		"cases":   []int64{101, 102},
	})
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}

	execs, err := s.FindObjects(ctx, ClassExecution, Filter{"run": ObjectID(run)})
	if err != nil {
		t.Fatalf("FindObjects: %v", err)
	}
	if len(execs) != 2 {
		t.Fatalf("got %d executions, want 2", len(execs))
	}
	for i, wantCase := range []int64{101, 102} {
		caseID, _ := AsID(execs[i]["case"])
		if caseID != wantCase {
			t.Errorf("execution %d case = %d, want %d", i, caseID, wantCase)
		}
		buildID, _ := AsID(execs[i]["build"])
		if buildID != 20 {
			t.Errorf("execution %d build = %d, want 20", i, buildID)
		}
	}
}

func TestOfflineSessionFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewOfflineSession(nil)
	s.Seed(ClassTestCase, Object{"id": int64(1), "summary": "Login Test", "plan": []int64{10, 11}})
	s.Seed(ClassTestCase, Object{"id": int64(2), "summary": "Logout Test", "plan": []int64{11}})

	t.Run("scalar filter matches list element", func(t *testing.T) {
		t.Parallel()
		found, err := s.FindObjects(ctx, ClassTestCase, Filter{"plan": int64(10)})
		if err != nil {
			t.Fatalf("FindObjects: %v", err)
		}
		if len(found) != 1 || ObjectID(found[0]) != 1 {
			t.Errorf("got %d objects, want exactly case 1", len(found))
		}
	})

	t.Run("absent attribute never matches", func(t *testing.T) {
		t.Parallel()
		found, err := s.FindObjects(ctx, ClassTestCase, Filter{"category": int64(5)})
		if err != nil {
			t.Fatalf("FindObjects: %v", err)
		}
		if len(found) != 0 {
			t.Errorf("got %d objects, want 0", len(found))
		}
	})

	t.Run("no match yields nil without error", func(t *testing.T) {
		t.Parallel()
		found, err := s.FindObject(ctx, ClassTestCase, Filter{"summary": "Missing"})
		if err != nil {
			t.Fatalf("FindObject: %v", err)
		}
		if found != nil {
			t.Errorf("found = %v, want nil", found)
		}
	})

	t.Run("multiple matches are ambiguous", func(t *testing.T) {
		t.Parallel()
		_, err := s.FindObject(ctx, ClassTestCase, Filter{"plan": int64(11)})
		if !errors.Is(err, ErrAmbiguous) {
			t.Errorf("error = %v, want ErrAmbiguous", err)
		}
	})
}

func TestOfflineSessionUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewOfflineSession(nil)
	s.Seed(ClassTestRun, Object{"id": int64(42), "summary": "before"})

	updated, err := s.UpdateObject(ctx, ClassTestRun, 42, Object{"summary": "after", "id": int64(999)})
	if err != nil {
		t.Fatalf("UpdateObject: %v", err)
	}
	if got := AsString(updated["summary"]); got != "after" {
		t.Errorf("summary = %q, want %q", got, "after")
	}
	if ObjectID(updated) != 42 {
		t.Errorf("id = %d, update must never change the id", ObjectID(updated))
	}
	if s.UpdateCount() != 1 {
		t.Errorf("update count = %d, want 1", s.UpdateCount())
	}

	if _, err := s.UpdateObject(ctx, ClassTestRun, 7, Object{"summary": "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestOfflineSessionUserAndUploads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("no identity", func(t *testing.T) {
		t.Parallel()
		s := NewOfflineSession(nil)
		if _, err := s.CurrentUser(ctx); !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("seeded identity", func(t *testing.T) {
		t.Parallel()
		s := NewOfflineSession(Object{"id": int64(7), "username": "bob"})
		u, err := s.CurrentUser(ctx)
		if err != nil {
			t.Fatalf("CurrentUser: %v", err)
		}
		if AsString(u["username"]) != "bob" {
			t.Errorf("username = %q, want bob", AsString(u["username"]))
		}
		// The identity is also findable like any other user.
		found, err := s.FindObject(ctx, ClassUser, Filter{"username": "bob"})
		if err != nil || found == nil {
			t.Fatalf("FindObject(bob) = %v, %v", found, err)
		}
	})

	t.Run("upload recording", func(t *testing.T) {
		t.Parallel()
		s := NewOfflineSession(nil)
		url, err := s.UploadAttachment(ctx, ClassTestRun, 42, "log.txt", []byte("abc"))
		if err != nil {
			t.Fatalf("UploadAttachment: %v", err)
		}
		if url != "offline://run/42/log.txt" {
			t.Errorf("url = %q", url)
		}
		ups := s.Uploads()
		if len(ups) != 1 {
			t.Fatalf("got %d uploads, want 1", len(ups))
		}
		want := Upload{Class: ClassTestRun, ObjectID: 42, Filename: "log.txt", Size: 3}
		if ups[0] != want {
			t.Errorf("upload = %+v, want %+v", ups[0], want)
		}
	})
}
