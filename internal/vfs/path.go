package vfs

import (
	"strings"

	"github.com/starford/sunna/internal/apperr"
)

// Root is the path of the tree root directory.
const Root = "/"

// Normalize canonicalises a virtual path: forces a leading slash, collapses
// "." and ".." segments, and strips any trailing slash. Paths are
// case-sensitive; files and directories share one namespace. A ".." that
// would climb above the root is rejected, as are empty segments ("//").
func Normalize(path string) (string, error) {
	if path == "" {
		return "", &apperr.PathError{Path: path, Reason: "empty path"}
	}
	if !strings.HasPrefix(path, "/") {
		return "", &apperr.PathError{Path: path, Reason: "must be absolute"}
	}
	if path == Root {
		return Root, nil
	}

	trimmed := strings.TrimSuffix(path, "/")
	var segs []string
	for _, seg := range strings.Split(trimmed[1:], "/") {
		switch seg {
		case "":
			return "", &apperr.PathError{Path: path, Reason: "empty segment"}
		case ".":
			continue
		case "..":
			if len(segs) == 0 {
				return "", &apperr.PathError{Path: path, Reason: "escapes root"}
			}
			segs = segs[:len(segs)-1]
		default:
			segs = append(segs, seg)
		}
	}
	if len(segs) == 0 {
		return Root, nil
	}
	return "/" + strings.Join(segs, "/"), nil
}

// Parent returns the directory containing path. The parent of a top-level
// entry (and of the root itself) is the root.
func Parent(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx <= 0 {
		return Root
	}
	return path[:idx]
}

// Base returns the final segment of path.
func Base(path string) string {
	if path == Root {
		return Root
	}
	return path[strings.LastIndexByte(path, '/')+1:]
}

// Join resolves a relative specifier segment list against a directory.
// dir must already be normalized.
func Join(dir, rel string) (string, error) {
	if dir == Root {
		return Normalize("/" + rel)
	}
	return Normalize(dir + "/" + rel)
}

// Ancestors yields every proper ancestor directory of path, nearest first,
// excluding the root.
func Ancestors(path string) []string {
	var out []string
	for p := Parent(path); p != Root; p = Parent(p) {
		out = append(out, p)
	}
	return out
}

// LanguageFor infers the source language from a path's extension.
func LanguageFor(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 || idx < strings.LastIndexByte(path, '/') {
		return "text"
	}
	switch strings.ToLower(path[idx+1:]) {
	case "tsx":
		return "tsx"
	case "ts":
		return "ts"
	case "jsx":
		return "jsx"
	case "js", "mjs":
		return "js"
	case "json":
		return "json"
	case "css":
		return "css"
	case "html", "htm":
		return "html"
	case "md":
		return "markdown"
	case "svg":
		return "svg"
	default:
		return "text"
	}
}
