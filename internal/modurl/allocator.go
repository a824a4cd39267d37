// Package modurl allocates ephemeral, host-addressable URLs for transpiled
// module code and tracks their lifetime across preview generations.
package modurl

import (
	"strings"
	"sync"

	"github.com/starford/sunna/internal/apperr"
	"github.com/starford/sunna/internal/checksum"
)

// PathPrefix is where the HTTP layer serves allocated artifacts.
const PathPrefix = "/modules/"

// Allocator holds module artifacts in memory, reference-counted by the
// build generation that requested them. An artifact stays alive as long as
// any generation still holds a reference; releasing a superseded generation
// drops its references, so memory stays bounded to roughly one live
// generation plus a build in progress.
type Allocator struct {
	mu        sync.RWMutex
	artifacts map[string]*artifact
	byGen     map[uint64][]string
}

type artifact struct {
	id   string
	path string
	code string
	refs int
}

// NewAllocator returns an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{
		artifacts: make(map[string]*artifact),
		byGen:     make(map[uint64][]string),
	}
}

// Allocate returns the URL for the module at path with the given content
// hash, creating the artifact on first use and taking a reference for
// generation. The same (path, hash) from a later generation reuses the
// existing artifact.
func (a *Allocator) Allocate(generation uint64, path, contentHash, code string) string {
	id := checksum.Short([]byte(path + "\x00" + contentHash))

	a.mu.Lock()
	defer a.mu.Unlock()
	art, ok := a.artifacts[id]
	if !ok {
		art = &artifact{id: id, path: path, code: code}
		a.artifacts[id] = art
	}
	art.refs++
	a.byGen[generation] = append(a.byGen[generation], id)
	return PathPrefix + id + ".js"
}

// Release drops every reference held by generation. Artifacts with no
// remaining references are freed.
func (a *Allocator) Release(generation uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range a.byGen[generation] {
		art, ok := a.artifacts[id]
		if !ok {
			continue
		}
		art.refs--
		if art.refs <= 0 {
			delete(a.artifacts, id)
		}
	}
	delete(a.byGen, generation)
}

// Code returns the executable code for an artifact URL path (or bare id).
func (a *Allocator) Code(urlPath string) (string, error) {
	id := strings.TrimSuffix(strings.TrimPrefix(urlPath, PathPrefix), ".js")
	a.mu.RLock()
	defer a.mu.RUnlock()
	art, ok := a.artifacts[id]
	if !ok {
		return "", &apperr.NotFoundError{Path: urlPath}
	}
	return art.code, nil
}

// Live returns the number of live artifacts.
func (a *Allocator) Live() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.artifacts)
}
