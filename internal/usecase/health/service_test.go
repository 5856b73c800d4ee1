package health

import (
	"context"
	"errors"
	"testing"
)

type mockIndexStore struct {
	healthErr error
	exists    bool
	existsErr error
}

func (m *mockIndexStore) HealthCheck(_ context.Context) error { return m.healthErr }
func (m *mockIndexStore) IndexExists(_ context.Context) (bool, error) {
	return m.exists, m.existsErr
}
func (m *mockIndexStore) Index() string { return "webinar_pdf_index" }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockIndexStore{exists: true}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Index != "webinar_pdf_index" {
		t.Errorf("unexpected index: %q", r.Index)
	}
	for _, name := range []string{"index_store", "index", "embedding"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
}

func TestCheck_StoreDown(t *testing.T) {
	svc := New(&mockIndexStore{healthErr: errors.New("conn refused")}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["index_store"] != CheckError || r.Checks["index"] != CheckError {
		t.Errorf("expected store and index errors, got %v", r.Checks)
	}
	if r.Checks["embedding"] != CheckOK {
		t.Errorf("expected embedding %q, got %q", CheckOK, r.Checks["embedding"])
	}
}

func TestCheck_IndexMissing(t *testing.T) {
	svc := New(&mockIndexStore{exists: false}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["index_store"] != CheckOK {
		t.Errorf("expected store %q, got %q", CheckOK, r.Checks["index_store"])
	}
	if r.Checks["index"] != CheckError {
		t.Errorf("expected index %q, got %q", CheckError, r.Checks["index"])
	}
}

func TestCheck_EmbeddingError(t *testing.T) {
	svc := New(&mockIndexStore{exists: true}, &mockEmbeddingChecker{err: errors.New("timeout")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["embedding"] != CheckError {
		t.Errorf("expected embedding %q, got %q", CheckError, r.Checks["embedding"])
	}
}

func TestCheck_NoEmbedding(t *testing.T) {
	svc := New(&mockIndexStore{exists: true}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["embedding"]; ok {
		t.Error("embedding check should be absent when embedding is nil")
	}
}
