// Package resolver walks the import graph of a virtual project tree and
// produces a dependency-ordered module list suitable for artifact
// allocation.
package resolver

import (
	"context"
	"errors"

	"github.com/starford/sunna/internal/apperr"
	"github.com/starford/sunna/internal/transpile"
	"github.com/starford/sunna/internal/vfs"
)

// extension candidates tried for a relative specifier, in order: the
// literal path first, then common extensions, then index files inside a
// directory of that name.
var extCandidates = []string{".tsx", ".ts", ".jsx", ".js", ".json", ".css"}

// Module is one resolved, transpiled module in the graph.
type Module struct {
	Path        string
	ContentHash string
	Code        string
	Imports     []Edge
}

// Resolution is the aggregate outcome of one graph walk. Modules is in
// dependency-first order: every dependency precedes its dependents. The
// walk keeps going past per-file failures so diagnostics surface for the
// whole tree, but a Resolution with any failure is not previewable.
type Resolution struct {
	Entry       string
	Modules     []Module
	Externals   []Specifier // bare specifiers, first-appearance order
	Diagnostics []transpile.Diagnostic
	failures    []error
}

// OK reports whether the resolution is free of hard failures.
func (r *Resolution) OK() bool {
	return len(r.failures) == 0
}

// Err returns the aggregated failure for the walk, or nil.
func (r *Resolution) Err() error {
	return errors.Join(r.failures...)
}

// Resolver walks imports starting from an entry path, consulting the
// transpile cache for each visited file.
type Resolver struct {
	tree  *vfs.Tree
	cache *transpile.Cache
}

// New creates a resolver over the given tree and cache.
func New(tree *vfs.Tree, cache *transpile.Cache) *Resolver {
	return &Resolver{tree: tree, cache: cache}
}

type walk struct {
	res     *Resolution
	onStack map[string]bool
	stack   []string
	done    map[string]bool
	extSeen map[string]struct{}
}

// Resolve walks the static and dynamic import graph from entryPath. The
// returned Resolution is complete even when it carries failures; callers
// check OK before building a preview. ctx cancellation aborts the walk
// early with ctx.Err recorded as a failure.
func (r *Resolver) Resolve(ctx context.Context, entryPath string) (*Resolution, error) {
	entry, err := vfs.Normalize(entryPath)
	if err != nil {
		return nil, err
	}
	if !r.tree.Exists(entry) {
		return nil, &apperr.NotFoundError{Path: entry}
	}

	w := &walk{
		res:     &Resolution{Entry: entry},
		onStack: make(map[string]bool),
		done:    make(map[string]bool),
		extSeen: make(map[string]struct{}),
	}
	r.visit(ctx, w, entry)
	return w.res, nil
}

func (r *Resolver) visit(ctx context.Context, w *walk, path string) {
	if err := ctx.Err(); err != nil {
		w.fail(err)
		return
	}
	if w.onStack[path] {
		w.fail(&apperr.CycleError{Members: cycleMembers(w.stack, path)})
		return
	}
	if w.done[path] {
		// Diamond dependency: already resolved via another branch.
		return
	}

	content, err := r.tree.ReadFile(path)
	if err != nil {
		w.fail(err)
		w.done[path] = true
		return
	}

	result, hash := r.cache.Transpile(path, content)
	if !result.OK() {
		// This file contributes nothing, but siblings still resolve so
		// every broken file surfaces in one pass.
		w.res.Diagnostics = append(w.res.Diagnostics, result.Diagnostics...)
		w.fail(result.Err())
		w.done[path] = true
		return
	}

	w.onStack[path] = true
	w.stack = append(w.stack, path)

	var edges []Edge
	for _, imp := range scanImports(result.Code) {
		spec := ParseSpecifier(imp.raw)
		edge := Edge{From: path, Spec: spec, Kind: imp.kind}
		if !spec.Relative {
			if _, dup := w.extSeen[spec.Raw]; !dup {
				w.extSeen[spec.Raw] = struct{}{}
				w.res.Externals = append(w.res.Externals, spec)
			}
			edges = append(edges, edge)
			continue
		}
		resolved, ok := r.resolveRelative(path, spec.Raw)
		if !ok {
			w.fail(&apperr.ImportResolutionError{Specifier: spec.Raw, Importer: path})
			continue
		}
		edge.ResolvedPath = resolved
		edges = append(edges, edge)
		r.visit(ctx, w, resolved)
	}

	w.stack = w.stack[:len(w.stack)-1]
	delete(w.onStack, path)
	w.done[path] = true

	w.res.Modules = append(w.res.Modules, Module{
		Path:        path,
		ContentHash: hash,
		Code:        result.Code,
		Imports:     edges,
	})
}

// resolveRelative tries a relative specifier against the tree: the literal
// path, the literal plus each known extension, then index files when the
// literal names a directory.
func (r *Resolver) resolveRelative(importer, raw string) (string, bool) {
	var target string
	var err error
	if raw[0] == '/' {
		// Rooted specifiers are already tree-absolute.
		target, err = vfs.Normalize(raw)
	} else {
		target, err = vfs.Join(vfs.Parent(importer), raw)
	}
	if err != nil {
		return "", false
	}

	if n, statErr := r.tree.Stat(target); statErr == nil && n.Kind == vfs.KindFile {
		return target, true
	}
	for _, ext := range extCandidates {
		if n, statErr := r.tree.Stat(target + ext); statErr == nil && n.Kind == vfs.KindFile {
			return target + ext, true
		}
	}
	if n, statErr := r.tree.Stat(target); statErr == nil && n.Kind == vfs.KindDir {
		for _, ext := range extCandidates {
			idx := target + "/index" + ext
			if n, statErr := r.tree.Stat(idx); statErr == nil && n.Kind == vfs.KindFile {
				return idx, true
			}
		}
	}
	return "", false
}

func (w *walk) fail(err error) {
	if err != nil {
		w.res.failures = append(w.res.failures, err)
	}
}

// cycleMembers trims the DFS stack to the cycle itself: the slice from the
// first occurrence of repeat to the top of the stack.
func cycleMembers(stack []string, repeat string) []string {
	for i, p := range stack {
		if p == repeat {
			members := make([]string, len(stack)-i)
			copy(members, stack[i:])
			return members
		}
	}
	return []string{repeat}
}
