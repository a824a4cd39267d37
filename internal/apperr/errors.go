// Package apperr defines the error taxonomy shared across the engine.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
)

// PathError reports a malformed or colliding virtual path. It is returned
// synchronously from tree mutations; the tree is never mutated when one is
// returned.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path %q: %s", e.Path, e.Reason)
}

// NotFoundError reports a read or resolve of a nonexistent virtual path.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("path %q: not found", e.Path)
}

// Is lets errors.Is(err, ErrNotFound) match a *NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ExistsError reports a create or rename against an occupied path.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("path %q: already exists", e.Path)
}

// Is lets errors.Is(err, ErrAlreadyExists) match an *ExistsError.
func (e *ExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// ImportResolutionError reports an unresolvable import specifier.
type ImportResolutionError struct {
	Specifier string
	Importer  string
}

func (e *ImportResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q imported by %s", e.Specifier, e.Importer)
}

// CycleError reports an import cycle. Members lists the paths on the cycle in
// the order they were entered, ending with the path that closed it.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("import cycle: %s", strings.Join(e.Members, " -> "))
}

// TranspileError reports a source-to-executable transform failure.
// Line and Column are 1-based; zero when the position is unknown.
type TranspileError struct {
	Path   string
	Line   int
	Column int
	Detail string
}

func (e *TranspileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("transpile %s:%d:%d: %s", e.Path, e.Line, e.Column, e.Detail)
	}
	return fmt.Sprintf("transpile %s: %s", e.Path, e.Detail)
}
