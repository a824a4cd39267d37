package modurl

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/sunna/internal/apperr"
)

func TestAllocateAndServe(t *testing.T) {
	a := NewAllocator()
	url := a.Allocate(1, "/App.tsx", "hash-a", "export const App = 1;")
	if !strings.HasPrefix(url, PathPrefix) || !strings.HasSuffix(url, ".js") {
		t.Errorf("url = %q", url)
	}
	code, err := a.Code(url)
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	if code != "export const App = 1;" {
		t.Errorf("code = %q", code)
	}
}

func TestDistinctContentDistinctURL(t *testing.T) {
	a := NewAllocator()
	u1 := a.Allocate(1, "/App.tsx", "hash-a", "v1")
	u2 := a.Allocate(2, "/App.tsx", "hash-b", "v2")
	if u1 == u2 {
		t.Error("different content hashes must yield different URLs")
	}
}

func TestSameContentSharedAcrossGenerations(t *testing.T) {
	a := NewAllocator()
	u1 := a.Allocate(1, "/Button.tsx", "hash-a", "code")
	u2 := a.Allocate(2, "/Button.tsx", "hash-a", "code")
	if u1 != u2 {
		t.Error("unchanged module should reuse its artifact")
	}
	if a.Live() != 1 {
		t.Errorf("Live = %d, want 1", a.Live())
	}
	// Releasing the old generation keeps the shared artifact alive.
	a.Release(1)
	if _, err := a.Code(u2); err != nil {
		t.Errorf("artifact should survive release of generation 1: %v", err)
	}
	a.Release(2)
	if a.Live() != 0 {
		t.Errorf("Live = %d, want 0 after all generations released", a.Live())
	}
}

func TestReleaseFreesSupersededArtifacts(t *testing.T) {
	a := NewAllocator()
	u1 := a.Allocate(1, "/App.tsx", "hash-v1", "v1")
	_ = a.Allocate(2, "/App.tsx", "hash-v2", "v2")
	a.Release(1)
	if _, err := a.Code(u1); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("superseded artifact should be gone, got %v", err)
	}
	if a.Live() != 1 {
		t.Errorf("Live = %d, want 1", a.Live())
	}
}

func TestReleaseUnknownGenerationIsNoop(t *testing.T) {
	a := NewAllocator()
	a.Release(42)
	if a.Live() != 0 {
		t.Errorf("Live = %d", a.Live())
	}
}
