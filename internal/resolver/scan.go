package resolver

import (
	"regexp"
	"sort"
)

// ImportKind distinguishes static import/export clauses from dynamic
// import() expressions.
type ImportKind string

const (
	ImportStatic  ImportKind = "static"
	ImportDynamic ImportKind = "dynamic"
)

// Edge is one import statement found in a module, before or after
// resolution. ResolvedPath is filled in for relative specifiers that matched
// a tree path; bare specifiers leave it empty and are resolved later by the
// import map.
type Edge struct {
	From         string     `json:"from"`
	Spec         Specifier  `json:"specifier"`
	Kind         ImportKind `json:"kind"`
	ResolvedPath string     `json:"resolved_path,omitempty"`
}

// Scanning happens on transpiled output, not raw source: esbuild has already
// stripped comments and type-only imports and injected the jsx-runtime
// import, so what remains is plain ES module syntax.
var (
	staticImportRe = regexp.MustCompile(`(?m)^\s*import\s*(?:[^'"()]*?from\s*)?["']([^"']+)["']`)
	exportFromRe   = regexp.MustCompile(`(?m)^\s*export\s*[^'"()]*?from\s*["']([^"']+)["']`)
	dynamicRe      = regexp.MustCompile(`\bimport\(\s*["']([^"']+)["']\s*\)`)
)

type rawImport struct {
	offset int
	raw    string
	kind   ImportKind
}

// scanImports extracts every import specifier from an ES module, in source
// order, deduplicated on the raw specifier string (first occurrence wins).
func scanImports(code string) []rawImport {
	var found []rawImport
	collect := func(re *regexp.Regexp, kind ImportKind) {
		for _, m := range re.FindAllStringSubmatchIndex(code, -1) {
			found = append(found, rawImport{
				offset: m[0],
				raw:    code[m[2]:m[3]],
				kind:   kind,
			})
		}
	}
	collect(staticImportRe, ImportStatic)
	collect(exportFromRe, ImportStatic)
	collect(dynamicRe, ImportDynamic)

	sort.Slice(found, func(i, j int) bool { return found[i].offset < found[j].offset })

	seen := make(map[string]struct{}, len(found))
	out := found[:0]
	for _, imp := range found {
		if _, dup := seen[imp.raw]; dup {
			continue
		}
		seen[imp.raw] = struct{}{}
		out = append(out, imp)
	}
	return out
}
