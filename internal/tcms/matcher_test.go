package tcms

import (
	"context"
	"errors"
	"testing"
)

func TestMatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewOfflineSession(nil)
	s.Seed(ClassProduct, Object{"id": int64(1), "name": "Demo"})
	s.Seed(ClassProduct, Object{"id": int64(2), "name": "Other"})
	s.Seed(ClassCategory, Object{"id": int64(10), "name": "General", "product": int64(1)})
	s.Seed(ClassCategory, Object{"id": int64(11), "name": "General", "product": int64(2)})

	t.Run("no match", func(t *testing.T) {
		t.Parallel()
		st, err := Match(ctx, s, ClassProduct, Object{"id": int64(9), "name": "Absent"})
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if st.Kind != NoMatch {
			t.Errorf("kind = %s, want none", st.Kind)
		}
		if st.Server != nil {
			t.Error("no-match status must not carry a server object")
		}
	})

	t.Run("exact match", func(t *testing.T) {
		t.Parallel()
		st, err := Match(ctx, s, ClassProduct, Object{"id": int64(1), "name": "Demo"})
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if st.Kind != ExactMatch {
			t.Errorf("kind = %s, want exact", st.Kind)
		}
		if ObjectID(st.Server) != 1 {
			t.Errorf("server id = %d, want 1", ObjectID(st.Server))
		}
	})

	t.Run("other id match", func(t *testing.T) {
		t.Parallel()
		st, err := Match(ctx, s, ClassProduct, Object{"id": int64(77), "name": "Demo"})
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if st.Kind != OtherNameMatch {
			t.Errorf("kind = %s, want other-id", st.Kind)
		}
		if ObjectID(st.Server) != 1 {
			t.Errorf("server id = %d, want 1", ObjectID(st.Server))
		}
	})

	t.Run("scope attribute disambiguates", func(t *testing.T) {
		t.Parallel()
		// Two categories share the name; the product scope picks one.
		st, err := Match(ctx, s, ClassCategory, Object{"id": int64(10), "name": "General", "product": int64(2)})
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if st.Kind != OtherNameMatch {
			t.Errorf("kind = %s, want other-id", st.Kind)
		}
		if ObjectID(st.Server) != 11 {
			t.Errorf("server id = %d, want 11", ObjectID(st.Server))
		}
	})

	t.Run("ambiguous without scope", func(t *testing.T) {
		t.Parallel()
		// No product attribute on the probe, so both categories match.
		_, err := Match(ctx, s, ClassCategory, Object{"id": int64(10), "name": "General"})
		if err == nil {
			t.Fatal("expected ambiguity error")
		}
		if !errors.Is(err, ErrAmbiguous) {
			t.Errorf("error = %v, want ErrAmbiguous", err)
		}
		var sce *StatusCheckError
		if !errors.As(err, &sce) {
			t.Fatalf("error type = %T, want *StatusCheckError", err)
		}
		if sce.Class != ClassCategory {
			t.Errorf("error class = %s, want Category", sce.Class)
		}
	})
}

func TestMatchBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewOfflineSession(nil)
	s.Seed(ClassVersion, Object{"id": int64(5), "value": "1.0", "product": int64(1)})

	objs := map[int64]Object{
		5: {"id": int64(5), "value": "1.0", "product": int64(1)},
		6: {"id": int64(6), "value": "2.0", "product": int64(1)},
	}
	statuses, err := MatchBatch(ctx, s, ClassVersion, objs)
	if err != nil {
		t.Fatalf("MatchBatch: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
	// Ascending id order: 5 before 6.
	if statuses[0].Kind != ExactMatch || ObjectID(statuses[0].Object) != 5 {
		t.Errorf("first status = %s id %d, want exact id 5", statuses[0].Kind, ObjectID(statuses[0].Object))
	}
	if statuses[1].Kind != NoMatch || ObjectID(statuses[1].Object) != 6 {
		t.Errorf("second status = %s id %d, want none id 6", statuses[1].Kind, ObjectID(statuses[1].Object))
	}
}

func TestMatchBatchCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewOfflineSession(nil)
	_, err := MatchBatch(ctx, s, ClassProduct, map[int64]Object{1: {"id": int64(1), "name": "x"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
