// Package builder orchestrates full preview rebuilds, one per tree change,
// with cancellation of superseded generations.
package builder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/sunna/internal/apperr"
	"github.com/starford/sunna/internal/importmap"
	"github.com/starford/sunna/internal/modurl"
	"github.com/starford/sunna/internal/preview"
	"github.com/starford/sunna/internal/resolver"
	"github.com/starford/sunna/internal/transpile"
	"github.com/starford/sunna/internal/vfs"
)

// State is the coordinator's build state.
type State string

const (
	StateIdle       State = "idle"
	StateResolving  State = "resolving"
	StateAllocating State = "allocating"
	StateReady      State = "ready"
	StateError      State = "error"
)

// Event is a build lifecycle notification handed to the host UI layer.
type Event struct {
	Type       string `json:"type"`
	Generation uint64 `json:"generation"`
	Entry      string `json:"entry"`
}

// NotifyFunc receives build lifecycle events. It must not block.
type NotifyFunc func(Event)

// Status is a point-in-time view of the coordinator.
type Status struct {
	State       State                  `json:"state"`
	Generation  uint64                 `json:"generation"`
	Session     *preview.Session       `json:"session,omitempty"`
	Diagnostics []transpile.Diagnostic `json:"diagnostics,omitempty"`
}

// Coordinator rebuilds the preview after every tree mutation. Each build
// carries a generation number; an edit arriving while a build is in flight
// starts a new build at a higher generation and marks the old one
// superseded. Superseded builds run their pending step to completion (no
// preemption mid-step) but never publish: completion does a
// compare-and-publish against the latest requested generation, and losers
// release their artifacts.
type Coordinator struct {
	tree   *vfs.Tree
	cache  *transpile.Cache
	alloc  *modurl.Allocator
	maps   *importmap.Builder
	entry  string
	logger *slog.Logger
	notify NotifyFunc

	mu          sync.Mutex
	generation  uint64
	state       State
	session     *preview.Session
	diagnostics []transpile.Diagnostic

	wg sync.WaitGroup
}

// New creates a coordinator for the given tree. entry is the virtual path
// the preview boots from.
func New(tree *vfs.Tree, cache *transpile.Cache, alloc *modurl.Allocator, maps *importmap.Builder, entry string, logger *slog.Logger, notify NotifyFunc) *Coordinator {
	if notify == nil {
		notify = func(Event) {}
	}
	return &Coordinator{
		tree:   tree,
		cache:  cache,
		alloc:  alloc,
		maps:   maps,
		entry:  entry,
		logger: logger,
		notify: notify,
		state:  StateIdle,
	}
}

// Request starts a build at the next generation and returns its number.
// The previous in-flight build, if any, is superseded from this moment.
// The build outlives the caller's context: an HTTP request finishing must
// not abort the rebuild it triggered, so only cancellation is dropped.
func (c *Coordinator) Request(ctx context.Context) uint64 {
	ctx = context.WithoutCancel(ctx)
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.state = StateResolving
	c.mu.Unlock()

	c.notify(Event{Type: "preview.building", Generation: gen, Entry: c.entry})
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.build(ctx, gen)
	}()
	return gen
}

// Quiesce blocks until every in-flight build has settled. Intended for
// tests and shutdown.
func (c *Coordinator) Quiesce() {
	c.wg.Wait()
}

// Status returns the current state, published session, and diagnostics.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:       c.state,
		Generation:  c.generation,
		Session:     c.session,
		Diagnostics: c.diagnostics,
	}
}

// Session returns the currently published preview session, or nil.
func (c *Coordinator) Session() *preview.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Coordinator) superseded(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen != c.generation
}

// build runs one generation from resolution to publication. Each step
// re-reads the tree it needs at that step's start; nothing is cached across
// the whole build beyond the transpile memo.
func (c *Coordinator) build(ctx context.Context, gen uint64) {
	res, err := resolver.New(c.tree, c.cache).Resolve(ctx, c.entry)
	if err != nil {
		c.settleError(gen, diagnosticsFromError(c.entry, err))
		return
	}
	if !res.OK() {
		c.settleError(gen, diagnosticsFromResolution(res))
		return
	}

	// Between resolve and allocate is a natural suspension point; a
	// superseded build stops here instead of allocating artifacts it
	// would immediately release.
	if c.superseded(gen) {
		c.logger.Debug("build: superseded before allocation", slog.Uint64("generation", gen))
		return
	}

	c.setStateIfCurrent(gen, StateAllocating)

	urls := make(map[string]string, len(res.Modules))
	for _, m := range res.Modules {
		urls[m.Path] = c.alloc.Allocate(gen, m.Path, m.ContentHash, m.Code)
	}

	m := c.maps.Build(res.Modules, res.Externals, urls)
	markup, err := preview.BuildDocument(urls[res.Entry], m)
	if err != nil {
		c.alloc.Release(gen)
		c.settleError(gen, diagnosticsFromError(res.Entry, err))
		return
	}

	session := &preview.Session{
		EntryPath:  res.Entry,
		ImportMap:  m,
		Markup:     markup,
		Generation: gen,
		BuiltAt:    time.Now(),
	}

	c.mu.Lock()
	if gen != c.generation || (c.session != nil && c.session.Generation > gen) {
		// Lost the compare-and-publish: a later generation owns the
		// preview. Discard without surfacing.
		c.mu.Unlock()
		c.alloc.Release(gen)
		c.logger.Debug("build: discarded", slog.Uint64("generation", gen))
		return
	}
	var prev *preview.Session
	prev, c.session = c.session, session
	c.state = StateReady
	c.diagnostics = nil
	c.mu.Unlock()

	if prev != nil {
		c.alloc.Release(prev.Generation)
	}
	c.logger.Info("build: published",
		slog.Uint64("generation", gen),
		slog.String("entry", res.Entry),
		slog.Int("modules", len(res.Modules)))
	c.notify(Event{Type: "preview.ready", Generation: gen, Entry: res.Entry})
}

// settleError publishes diagnostics instead of a session, unless this
// generation has already been superseded.
func (c *Coordinator) settleError(gen uint64, diags []transpile.Diagnostic) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.state = StateError
	c.diagnostics = diags
	c.mu.Unlock()

	c.logger.Warn("build: failed",
		slog.Uint64("generation", gen),
		slog.Int("diagnostics", len(diags)))
	c.notify(Event{Type: "preview.error", Generation: gen, Entry: c.entry})
}

func (c *Coordinator) setStateIfCurrent(gen uint64, s State) {
	c.mu.Lock()
	if gen == c.generation {
		c.state = s
	}
	c.mu.Unlock()
}

// diagnosticsFromResolution flattens a failed resolution into the
// structured payload the host UI renders as an error overlay.
func diagnosticsFromResolution(res *resolver.Resolution) []transpile.Diagnostic {
	diags := append([]transpile.Diagnostic(nil), res.Diagnostics...)
	err := res.Err()
	for _, e := range flatten(err) {
		if d, ok := diagnosticFrom(e); ok {
			diags = append(diags, d)
		}
	}
	return diags
}

func diagnosticsFromError(path string, err error) []transpile.Diagnostic {
	if d, ok := diagnosticFrom(err); ok {
		return []transpile.Diagnostic{d}
	}
	return []transpile.Diagnostic{{Path: path, Message: err.Error()}}
}

// diagnosticFrom maps typed resolution errors onto diagnostics; transpile
// failures are skipped because their diagnostics are already collected
// file-by-file during the walk.
func diagnosticFrom(err error) (transpile.Diagnostic, bool) {
	var ire *apperr.ImportResolutionError
	var ce *apperr.CycleError
	var nfe *apperr.NotFoundError
	var te *apperr.TranspileError
	switch {
	case errors.As(err, &te):
		return transpile.Diagnostic{}, false
	case errors.As(err, &ire):
		return transpile.Diagnostic{Path: ire.Importer, Message: ire.Error()}, true
	case errors.As(err, &ce):
		return transpile.Diagnostic{Path: ce.Members[0], Message: ce.Error()}, true
	case errors.As(err, &nfe):
		return transpile.Diagnostic{Path: nfe.Path, Message: nfe.Error()}, true
	default:
		return transpile.Diagnostic{Message: err.Error()}, true
	}
}

func flatten(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []error{err}
}
