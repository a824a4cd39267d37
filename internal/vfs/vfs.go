// Package vfs implements the in-memory project tree that is the single
// source of truth for generated source files.
//
// Nodes live in a flat path-keyed map plus a derived parent-to-children
// index; parent links are lookups by key, never owning references.
// Directories are materialized as explicit nodes and come into existence
// implicitly when a file is written beneath them. Every mutating operation
// bumps the tree version exactly once and is all-or-nothing: it either fully
// applies or leaves the tree unchanged and returns an error.
package vfs

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/sunna/internal/apperr"
)

// Kind distinguishes file nodes from directory nodes.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "directory"
)

// FileNode is one entry in the tree. Content is empty for directories.
type FileNode struct {
	Path       string    `json:"path"`
	Kind       Kind      `json:"kind"`
	Content    string    `json:"content,omitempty"`
	Language   string    `json:"language,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Tree is a virtual file system instance. It is an explicit value handed to
// every component that needs it, so independent sessions can coexist.
// All methods are safe for concurrent use.
type Tree struct {
	mu       sync.RWMutex
	nodes    map[string]*FileNode
	children map[string]map[string]struct{}
	version  uint64
	now      func() time.Time
}

// NewTree returns an empty tree containing only the root directory.
func NewTree() *Tree {
	t := &Tree{
		nodes:    make(map[string]*FileNode),
		children: make(map[string]map[string]struct{}),
		now:      time.Now,
	}
	t.nodes[Root] = &FileNode{Path: Root, Kind: KindDir}
	return t
}

// Version returns the tree-wide mutation counter.
func (t *Tree) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Exists reports whether a file or directory exists at path.
func (t *Tree) Exists(path string) bool {
	p, err := Normalize(path)
	if err != nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.nodes[p]
	return ok
}

// Stat returns a copy of the node at path.
func (t *Tree) Stat(path string) (FileNode, error) {
	p, err := Normalize(path)
	if err != nil {
		return FileNode{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[p]
	if !ok {
		return FileNode{}, &apperr.NotFoundError{Path: p}
	}
	return *n, nil
}

// ReadFile returns the content of the file at path.
func (t *Tree) ReadFile(path string) (string, error) {
	p, err := Normalize(path)
	if err != nil {
		return "", err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[p]
	if !ok {
		return "", &apperr.NotFoundError{Path: p}
	}
	if n.Kind != KindFile {
		return "", &apperr.PathError{Path: p, Reason: "is a directory"}
	}
	return n.Content, nil
}

// CreateFile adds a new file. It fails if anything already exists at path.
func (t *Tree) CreateFile(path, content string) error {
	p, err := Normalize(path)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.nodes[p]; ok {
		return &apperr.ExistsError{Path: p}
	}
	return t.putFileLocked(p, content)
}

// WriteFile sets the content of the file at path, creating it (and any
// missing ancestor directories) if needed. Writing over a directory fails.
func (t *Tree) WriteFile(path, content string) error {
	p, err := Normalize(path)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.nodes[p]; ok && n.Kind != KindFile {
		return &apperr.PathError{Path: p, Reason: "is a directory"}
	}
	return t.putFileLocked(p, content)
}

// putFileLocked validates ancestors, materializes missing directories, and
// installs the file node. Callers hold the write lock and have verified any
// existing node at p is a file.
func (t *Tree) putFileLocked(p, content string) error {
	if p == Root {
		return &apperr.PathError{Path: p, Reason: "is a directory"}
	}
	// Reject before mutating: an ancestor that is a file blocks the write.
	for _, anc := range Ancestors(p) {
		if n, ok := t.nodes[anc]; ok && n.Kind != KindDir {
			return &apperr.PathError{Path: p, Reason: "ancestor " + anc + " is a file"}
		}
	}

	now := t.now()
	for _, anc := range Ancestors(p) {
		if _, ok := t.nodes[anc]; !ok {
			t.nodes[anc] = &FileNode{Path: anc, Kind: KindDir, ModifiedAt: now}
			t.link(anc)
		}
	}
	t.nodes[p] = &FileNode{
		Path:       p,
		Kind:       KindFile,
		Content:    content,
		Language:   LanguageFor(p),
		ModifiedAt: now,
	}
	t.link(p)
	t.version++
	return nil
}

// DeleteFile removes a single file.
func (t *Tree) DeleteFile(path string) error {
	p, err := Normalize(path)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[p]
	if !ok {
		return &apperr.NotFoundError{Path: p}
	}
	if n.Kind != KindFile {
		return &apperr.PathError{Path: p, Reason: "is a directory, use DeleteDirectory"}
	}
	delete(t.nodes, p)
	t.unlink(p)
	t.version++
	return nil
}

// DeleteDirectory removes a directory. Deleting a non-empty directory
// requires recursive; with it, every descendant is removed.
func (t *Tree) DeleteDirectory(path string, recursive bool) error {
	p, err := Normalize(path)
	if err != nil {
		return err
	}
	if p == Root {
		return &apperr.PathError{Path: p, Reason: "cannot delete root"}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[p]
	if !ok {
		return &apperr.NotFoundError{Path: p}
	}
	if n.Kind != KindDir {
		return &apperr.PathError{Path: p, Reason: "is a file, use DeleteFile"}
	}
	if len(t.children[p]) > 0 && !recursive {
		return &apperr.PathError{Path: p, Reason: "directory not empty"}
	}
	for _, desc := range t.descendantsLocked(p) {
		delete(t.nodes, desc)
		delete(t.children, desc)
	}
	delete(t.nodes, p)
	delete(t.children, p)
	t.unlink(p)
	t.version++
	return nil
}

// Rename moves a file or directory to newPath. Renaming a directory rewrites
// every descendant path prefix atomically; if the target already exists no
// node is mutated.
func (t *Tree) Rename(oldPath, newPath string) error {
	op, err := Normalize(oldPath)
	if err != nil {
		return err
	}
	np, err := Normalize(newPath)
	if err != nil {
		return err
	}
	if op == Root || np == Root {
		return &apperr.PathError{Path: oldPath, Reason: "cannot rename root"}
	}
	if op == np {
		return &apperr.PathError{Path: np, Reason: "source and target are the same"}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	src, ok := t.nodes[op]
	if !ok {
		return &apperr.NotFoundError{Path: op}
	}
	if _, exists := t.nodes[np]; exists {
		return &apperr.ExistsError{Path: np}
	}
	if src.Kind == KindDir && strings.HasPrefix(np, op+"/") {
		return &apperr.PathError{Path: np, Reason: "target is inside source"}
	}
	for _, anc := range Ancestors(np) {
		if n, ok := t.nodes[anc]; ok && n.Kind != KindDir {
			return &apperr.PathError{Path: np, Reason: "ancestor " + anc + " is a file"}
		}
	}

	now := t.now()
	for _, anc := range Ancestors(np) {
		if _, ok := t.nodes[anc]; !ok {
			t.nodes[anc] = &FileNode{Path: anc, Kind: KindDir, ModifiedAt: now}
			t.link(anc)
		}
	}

	moved := []string{op}
	if src.Kind == KindDir {
		moved = append(moved, t.descendantsLocked(op)...)
	}
	for _, mp := range moved {
		n := t.nodes[mp]
		delete(t.nodes, mp)
		delete(t.children, mp)
		target := np + strings.TrimPrefix(mp, op)
		n.Path = target
		if n.Kind == KindFile {
			n.Language = LanguageFor(target)
		}
		n.ModifiedAt = now
		t.nodes[target] = n
	}
	t.unlink(op)
	// Rebuild child links under the new prefix.
	t.link(np)
	for _, mp := range moved[1:] {
		t.link(np + strings.TrimPrefix(mp, op))
	}
	t.version++
	return nil
}

// List returns the immediate children of a directory, sorted by path with
// directories first.
func (t *Tree) List(dirPath string) ([]FileNode, error) {
	p, err := Normalize(dirPath)
	if err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[p]
	if !ok {
		return nil, &apperr.NotFoundError{Path: p}
	}
	if n.Kind != KindDir {
		return nil, &apperr.PathError{Path: p, Reason: "not a directory"}
	}
	out := make([]FileNode, 0, len(t.children[p]))
	for child := range t.children[p] {
		out = append(out, *t.nodes[child])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == KindDir
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// Files returns every file node in the tree, sorted by path.
func (t *Tree) Files() []FileNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []FileNode
	for _, n := range t.nodes {
		if n.Kind == KindFile {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// descendantsLocked returns every node strictly under dir, files and
// directories alike, in no particular order.
func (t *Tree) descendantsLocked(dir string) []string {
	prefix := dir + "/"
	var out []string
	for p := range t.nodes {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}

func (t *Tree) link(p string) {
	parent := Parent(p)
	set, ok := t.children[parent]
	if !ok {
		set = make(map[string]struct{})
		t.children[parent] = set
	}
	set[p] = struct{}{}
}

func (t *Tree) unlink(p string) {
	parent := Parent(p)
	if set, ok := t.children[parent]; ok {
		delete(set, p)
		if len(set) == 0 && parent != Root {
			delete(t.children, parent)
		}
	}
}
