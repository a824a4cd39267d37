// Package testutil provides shared test helpers for wiring a full
// workbench stack against temporary state.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/sunna/internal/builder"
	"github.com/starford/sunna/internal/importmap"
	"github.com/starford/sunna/internal/modurl"
	"github.com/starford/sunna/internal/store"
	"github.com/starford/sunna/internal/transpile"
	"github.com/starford/sunna/internal/vfs"
	"github.com/starford/sunna/internal/workbench"
)

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite database that is automatically cleaned
// up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	f, err := os.CreateTemp("", "sunna-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := store.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Stack bundles the pieces tests poke at individually.
type Stack struct {
	Tree    *vfs.Tree
	Cache   *transpile.Cache
	Alloc   *modurl.Allocator
	Coord   *builder.Coordinator
	Service *workbench.Service
}

// TestStack wires a complete workbench over a temp database with the given
// preview entry path.
func TestStack(t *testing.T, entry string) *Stack {
	t.Helper()
	logger := Logger()
	tree := vfs.NewTree()
	cache := transpile.NewCache()
	alloc := modurl.NewAllocator()
	coord := builder.New(tree, cache, alloc, importmap.NewBuilder("https://esm.sh"), entry, logger, nil)
	svc := workbench.NewService("test-project", "test", tree, cache, coord, TestDB(t), logger, nil)
	t.Cleanup(coord.Quiesce)
	return &Stack{Tree: tree, Cache: cache, Alloc: alloc, Coord: coord, Service: svc}
}
