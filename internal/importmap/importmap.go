// Package importmap merges internal module artifact URLs with external
// package URLs into the single resolution table the sandbox module loader
// consumes.
package importmap

import (
	"encoding/json"
	"strings"

	"github.com/starford/sunna/internal/resolver"
)

// Map is the specifier-to-URL resolution table. Resolution is
// per-specifier-string, not per-importer, so the same string always maps to
// the same URL.
type Map struct {
	Imports map[string]string `json:"imports"`
}

// JSON renders the map as the import map script payload.
func (m *Map) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Builder constructs import maps against a fixed external package registry.
type Builder struct {
	registryBase string
}

// NewBuilder creates a builder. registryBase is the external resolution
// endpoint, e.g. "https://esm.sh".
func NewBuilder(registryBase string) *Builder {
	return &Builder{registryBase: strings.TrimSuffix(registryBase, "/")}
}

// Build produces the resolution table for one resolved module set.
// artifactURLs maps virtual paths to allocated module URLs. Every internal
// module is addressable by its canonical path and by each specifier string
// that referenced it; bare specifiers map to registry URLs with the version
// written in source passed through, defaulting to latest.
func (b *Builder) Build(modules []resolver.Module, externals []resolver.Specifier, artifactURLs map[string]string) *Map {
	imports := make(map[string]string, len(modules)+len(externals))

	for _, m := range modules {
		if url, ok := artifactURLs[m.Path]; ok {
			imports[m.Path] = url
		}
		for _, e := range m.Imports {
			if e.ResolvedPath == "" {
				continue
			}
			if url, ok := artifactURLs[e.ResolvedPath]; ok {
				imports[e.Spec.Raw] = url
			}
		}
	}

	for _, s := range externals {
		imports[s.Raw] = b.PackageURL(s)
	}

	return &Map{Imports: imports}
}

// PackageURL builds the registry URL for a bare specifier:
// {registry-base}/{package}@{version|latest}, with any subpath after the
// package name kept behind the version.
func (b *Builder) PackageURL(s resolver.Specifier) string {
	version := s.Version
	if version == "" {
		version = "latest"
	}
	pkg, subpath := splitSubpath(s.Name)
	url := b.registryBase + "/" + pkg + "@" + version
	if subpath != "" {
		url += "/" + subpath
	}
	return url
}

// splitSubpath separates "react/jsx-runtime" into ("react", "jsx-runtime"),
// keeping the scope segment of "@org/pkg/sub" with the package.
func splitSubpath(name string) (pkg, subpath string) {
	limit := 1
	if strings.HasPrefix(name, "@") {
		limit = 2
	}
	parts := strings.SplitN(name, "/", limit+1)
	if len(parts) <= limit {
		return name, ""
	}
	return strings.Join(parts[:limit], "/"), parts[limit]
}
