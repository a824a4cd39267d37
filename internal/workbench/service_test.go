package workbench_test

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/sunna/internal/apperr"
	"github.com/starford/sunna/internal/builder"
	"github.com/starford/sunna/internal/importmap"
	"github.com/starford/sunna/internal/modurl"
	"github.com/starford/sunna/internal/testutil"
	"github.com/starford/sunna/internal/transpile"
	"github.com/starford/sunna/internal/vfs"
	"github.com/starford/sunna/internal/workbench"
)

func TestApplyCreateEditDelete(t *testing.T) {
	s := testutil.TestStack(t, "/App.tsx")
	ctx := context.Background()

	if err := s.Service.Apply(ctx, workbench.FileOp{Op: workbench.OpCreate, Path: "/App.tsx", Content: "export const App = () => <div>v1</div>;"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Service.Apply(ctx, workbench.FileOp{Op: workbench.OpEdit, Path: "/App.tsx", Content: "export const App = () => <div>v2</div>;"}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	got, err := s.Service.ReadFile("/App.tsx")
	if err != nil || got != "export const App = () => <div>v2</div>;" {
		t.Errorf("ReadFile = %q, %v", got, err)
	}
	if err := s.Service.Apply(ctx, workbench.FileOp{Op: workbench.OpDelete, Path: "/App.tsx"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Service.ReadFile("/App.tsx"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestApplyUnknownOp(t *testing.T) {
	s := testutil.TestStack(t, "/App.tsx")
	err := s.Service.Apply(context.Background(), workbench.FileOp{Op: "truncate", Path: "/x.ts"})
	var pe *apperr.PathError
	if !errors.As(err, &pe) {
		t.Errorf("expected PathError, got %v", err)
	}
}

func TestApplyTriggersBuild(t *testing.T) {
	s := testutil.TestStack(t, "/App.tsx")
	ctx := context.Background()
	if err := s.Service.Apply(ctx, workbench.FileOp{Op: workbench.OpCreate, Path: "/App.tsx", Content: "export const App = () => <div />;"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	s.Coord.Quiesce()

	sess, err := s.Service.PreviewSession()
	if err != nil {
		t.Fatalf("PreviewSession: %v", err)
	}
	if sess.EntryPath != "/App.tsx" {
		t.Errorf("entry = %q", sess.EntryPath)
	}
}

func TestDeleteDirectoryBreaksImporters(t *testing.T) {
	s := testutil.TestStack(t, "/App.tsx")
	ctx := context.Background()
	ops := []workbench.FileOp{
		{Op: workbench.OpCreate, Path: "/components/Button.tsx", Content: "export const Button = () => <button />;"},
		{Op: workbench.OpCreate, Path: "/components/Icon.tsx", Content: "export const Icon = () => <svg />;"},
		{Op: workbench.OpCreate, Path: "/App.tsx", Content: `import { Button } from "./components/Button"; export const App = () => <Button />;`},
	}
	for _, op := range ops {
		if err := s.Service.Apply(ctx, op); err != nil {
			t.Fatalf("Apply(%+v): %v", op, err)
		}
	}
	s.Coord.Quiesce()
	if _, err := s.Service.PreviewSession(); err != nil {
		t.Fatalf("expected a good build first: %v", err)
	}

	if err := s.Service.Apply(ctx, workbench.FileOp{Op: workbench.OpDelete, Path: "/components"}); err != nil {
		t.Fatalf("delete dir: %v", err)
	}
	s.Coord.Quiesce()

	for _, p := range []string{"/components/Button.tsx", "/components/Icon.tsx"} {
		if _, err := s.Service.Stat(p); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Stat(%s): expected not found, got %v", p, err)
		}
	}
	if st := s.Service.PreviewStatus(); st.State != builder.StateError {
		t.Errorf("state = %s, want error after deleting imported dir", st.State)
	}
}

func TestRenameInvalidatesOldPath(t *testing.T) {
	s := testutil.TestStack(t, "/App.tsx")
	ctx := context.Background()
	_ = s.Service.Apply(ctx, workbench.FileOp{Op: workbench.OpCreate, Path: "/components/Button.tsx", Content: "export const Button = () => <button />;"})
	_ = s.Service.Apply(ctx, workbench.FileOp{Op: workbench.OpCreate, Path: "/App.tsx", Content: `import { Button } from "./components/Button"; export const App = () => <Button />;`})
	s.Coord.Quiesce()

	err := s.Service.Apply(ctx, workbench.FileOp{
		Op:      workbench.OpRename,
		Path:    "/components/Button.tsx",
		NewPath: "/components/PrimaryButton.tsx",
	})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	s.Coord.Quiesce()

	if _, err := s.Service.Stat("/components/Button.tsx"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("old path must be gone, got %v", err)
	}
	if _, err := s.Service.Stat("/components/PrimaryButton.tsx"); err != nil {
		t.Errorf("new path must exist: %v", err)
	}
	// The importer still references ./components/Button, so the build
	// now fails resolution until it is edited.
	if st := s.Service.PreviewStatus(); st.State != builder.StateError {
		t.Errorf("state = %s, want error", st.State)
	}
}

func TestPersistAndLoad(t *testing.T) {
	logger := testutil.Logger()
	db := testutil.TestDB(t)

	build := func() *workbench.Service {
		tree := vfs.NewTree()
		cache := transpile.NewCache()
		coord := builder.New(tree, cache, modurl.NewAllocator(), importmap.NewBuilder("https://esm.sh"), "/App.tsx", logger, nil)
		t.Cleanup(coord.Quiesce)
		return workbench.NewService("p1", "demo", tree, cache, coord, db, logger, nil)
	}

	first := build()
	ctx := context.Background()
	if err := first.Apply(ctx, workbench.FileOp{Op: workbench.OpCreate, Path: "/App.tsx", Content: "export const App = () => <div />;"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// A fresh service over the same store sees the persisted tree.
	second := build()
	if err := second.LoadPersisted(ctx); err != nil {
		t.Fatalf("LoadPersisted: %v", err)
	}
	got, err := second.ReadFile("/App.tsx")
	if err != nil || got != "export const App = () => <div />;" {
		t.Errorf("ReadFile = %q, %v", got, err)
	}
}

func TestMessagesRoundTrip(t *testing.T) {
	s := testutil.TestStack(t, "/App.tsx")
	if _, err := s.Service.AppendMessage("user", "add a button"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	msgs, err := s.Service.Messages()
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "add a button" {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestImportSnapshot(t *testing.T) {
	s := testutil.TestStack(t, "/App.tsx")
	snap := map[string]string{
		"/App.tsx": "export const App = () => <div />;",
		"/util.ts": "export const u = 1;",
	}
	if err := s.Service.Import(context.Background(), snap); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got := s.Service.Snapshot(); len(got) != 2 {
		t.Errorf("snapshot = %v", got)
	}
}
