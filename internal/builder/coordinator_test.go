package builder

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/starford/sunna/internal/importmap"
	"github.com/starford/sunna/internal/modurl"
	"github.com/starford/sunna/internal/transpile"
	"github.com/starford/sunna/internal/vfs"
)

type env struct {
	tree  *vfs.Tree
	alloc *modurl.Allocator
	coord *Coordinator

	mu     sync.Mutex
	events []Event
}

func newEnv(t *testing.T, entry string) *env {
	t.Helper()
	e := &env{tree: vfs.NewTree(), alloc: modurl.NewAllocator()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e.coord = New(e.tree, transpile.NewCache(), e.alloc, importmap.NewBuilder("https://esm.sh"), entry, logger, func(ev Event) {
		e.mu.Lock()
		e.events = append(e.events, ev)
		e.mu.Unlock()
	})
	return e
}

func (e *env) eventTypes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

func TestBuildPublishesSession(t *testing.T) {
	e := newEnv(t, "/App.tsx")
	_ = e.tree.WriteFile("/components/Button.tsx", `export const Button = () => <button>ok</button>;`)
	_ = e.tree.WriteFile("/App.tsx", `import { Button } from "./components/Button"; export const App = () => <Button />;`)

	gen := e.coord.Request(context.Background())
	e.coord.Quiesce()

	s := e.coord.Session()
	if s == nil {
		t.Fatalf("no session published, status: %+v", e.coord.Status())
	}
	if s.Generation != gen || s.EntryPath != "/App.tsx" {
		t.Errorf("session = %+v", s)
	}
	entryURL := s.ImportMap.Imports["/App.tsx"]
	if entryURL == "" {
		t.Fatal("import map missing entry")
	}
	if !strings.Contains(s.Markup, entryURL) {
		t.Error("document should load the entry artifact")
	}
	if code, err := e.alloc.Code(entryURL); err != nil || code == "" {
		t.Errorf("entry artifact not servable: %v", err)
	}
	if got := e.coord.Status().State; got != StateReady {
		t.Errorf("state = %s, want %s", got, StateReady)
	}
}

func TestBuildErrorPublishesDiagnostics(t *testing.T) {
	e := newEnv(t, "/App.tsx")
	_ = e.tree.WriteFile("/App.tsx", `import { Button } from "./Button"; export const App = () => <Button />;`)

	e.coord.Request(context.Background())
	e.coord.Quiesce()

	st := e.coord.Status()
	if st.State != StateError {
		t.Fatalf("state = %s, want %s", st.State, StateError)
	}
	if len(st.Diagnostics) == 0 {
		t.Fatal("expected diagnostics")
	}
	found := false
	for _, d := range st.Diagnostics {
		if d.Path == "/App.tsx" && strings.Contains(d.Message, `"./Button"`) {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v", st.Diagnostics)
	}
	if e.alloc.Live() != 0 {
		t.Errorf("failed build must not retain artifacts, Live = %d", e.alloc.Live())
	}
}

func TestErrorKeepsPreviousSession(t *testing.T) {
	e := newEnv(t, "/App.tsx")
	_ = e.tree.WriteFile("/App.tsx", `export const App = () => <div>v1</div>;`)
	e.coord.Request(context.Background())
	e.coord.Quiesce()
	if e.coord.Session() == nil {
		t.Fatal("expected first session")
	}

	// The next edit breaks the build; the prior session stays available
	// for the host to keep rendering under the overlay.
	_ = e.tree.WriteFile("/App.tsx", "export const App = <div>")
	e.coord.Request(context.Background())
	e.coord.Quiesce()

	st := e.coord.Status()
	if st.State != StateError {
		t.Fatalf("state = %s", st.State)
	}
	if st.Session == nil || st.Session.Generation != 1 {
		t.Errorf("previous session should survive a failed build: %+v", st.Session)
	}
}

func TestRapidEditsPublishLatestOnly(t *testing.T) {
	e := newEnv(t, "/App.tsx")
	_ = e.tree.WriteFile("/App.tsx", `export const App = () => <div>version one</div>;`)
	e.coord.Request(context.Background())
	_ = e.tree.WriteFile("/App.tsx", `export const App = () => <div>version two</div>;`)
	gen2 := e.coord.Request(context.Background())
	e.coord.Quiesce()

	s := e.coord.Session()
	if s == nil {
		t.Fatal("no session")
	}
	if s.Generation != gen2 {
		t.Errorf("published generation = %d, want %d", s.Generation, gen2)
	}
	code, err := e.alloc.Code(s.ImportMap.Imports["/App.tsx"])
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	if !strings.Contains(code, "version two") {
		t.Errorf("published entry should be the second edit:\n%s", code)
	}
	// Exactly one generation's artifacts remain allocated.
	if e.alloc.Live() != 1 {
		t.Errorf("Live = %d, want 1", e.alloc.Live())
	}
}

func TestUnchangedModuleKeepsArtifactAcrossBuilds(t *testing.T) {
	e := newEnv(t, "/App.tsx")
	_ = e.tree.WriteFile("/components/Button.tsx", `export const Button = () => <button>ok</button>;`)
	_ = e.tree.WriteFile("/App.tsx", `import { Button } from "./components/Button"; export const App = () => <Button>a</Button>;`)
	e.coord.Request(context.Background())
	e.coord.Quiesce()
	first := e.coord.Session()

	_ = e.tree.WriteFile("/App.tsx", `import { Button } from "./components/Button"; export const App = () => <Button>b</Button>;`)
	e.coord.Request(context.Background())
	e.coord.Quiesce()
	second := e.coord.Session()

	if first.ImportMap.Imports["/components/Button.tsx"] != second.ImportMap.Imports["/components/Button.tsx"] {
		t.Error("unchanged module should keep its artifact URL")
	}
	if first.ImportMap.Imports["/App.tsx"] == second.ImportMap.Imports["/App.tsx"] {
		t.Error("edited module must get a fresh artifact URL")
	}
}

func TestBuildEventsEmitted(t *testing.T) {
	e := newEnv(t, "/App.tsx")
	_ = e.tree.WriteFile("/App.tsx", `export const App = () => <div />;`)
	e.coord.Request(context.Background())
	e.coord.Quiesce()

	types := e.eventTypes()
	if len(types) < 2 || types[0] != "preview.building" || types[len(types)-1] != "preview.ready" {
		t.Errorf("events = %v", types)
	}
}
