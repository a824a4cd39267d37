// Package transpile turns JSX/TSX source into executable ES modules and
// memoizes the result per (path, content hash).
package transpile

import (
	"encoding/json"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/starford/sunna/internal/apperr"
	"github.com/starford/sunna/internal/vfs"
)

// Diagnostic is one transform problem with an optional source position.
type Diagnostic struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// Result is the outcome of transforming one file. A failed transform has an
// empty Code and at least one Diagnostic.
type Result struct {
	Code        string
	Diagnostics []Diagnostic
}

// OK reports whether the transform produced executable code.
func (r Result) OK() bool {
	return len(r.Diagnostics) == 0
}

// Err converts a failed Result into a TranspileError for the first
// diagnostic, or nil for a successful one.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	d := r.Diagnostics[0]
	return &apperr.TranspileError{Path: d.Path, Line: d.Line, Column: d.Column, Detail: d.Message}
}

func loaderFor(lang string) (api.Loader, bool) {
	switch lang {
	case "tsx":
		return api.LoaderTSX, true
	case "ts":
		return api.LoaderTS, true
	case "jsx":
		return api.LoaderJSX, true
	case "js":
		return api.LoaderJS, true
	case "json":
		return api.LoaderJSON, true
	default:
		return 0, false
	}
}

// transform runs the source-to-executable step for a single file. CSS files
// become a module that installs a style element; everything else goes
// through esbuild with a loader picked from the file extension. JSX uses the
// automatic runtime, so the injected react/jsx-runtime import surfaces as an
// ordinary bare specifier for the import map.
func transform(path, content string) Result {
	lang := vfs.LanguageFor(path)
	if lang == "css" {
		return cssModule(path, content)
	}
	loader, ok := loaderFor(lang)
	if !ok {
		return Result{Diagnostics: []Diagnostic{{
			Path:    path,
			Message: fmt.Sprintf("unsupported module type %q", lang),
		}}}
	}

	res := api.Transform(content, api.TransformOptions{
		Loader:     loader,
		Format:     api.FormatESModule,
		Target:     api.ESNext,
		JSX:        api.JSXAutomatic,
		Sourcefile: path,
	})
	if len(res.Errors) > 0 {
		diags := make([]Diagnostic, 0, len(res.Errors))
		for _, msg := range res.Errors {
			d := Diagnostic{Path: path, Message: msg.Text}
			if msg.Location != nil {
				d.Line = msg.Location.Line
				d.Column = msg.Location.Column + 1
			}
			diags = append(diags, d)
		}
		return Result{Diagnostics: diags}
	}
	return Result{Code: string(res.Code)}
}

// cssModule wraps a stylesheet in a module that appends it to the document
// head, so components can import their styles like any other module.
func cssModule(path, content string) Result {
	quotedCSS, err := json.Marshal(content)
	if err != nil {
		return Result{Diagnostics: []Diagnostic{{Path: path, Message: err.Error()}}}
	}
	quotedPath, _ := json.Marshal(path)
	code := fmt.Sprintf(`const css = %s;
const el = document.createElement("style");
el.dataset.source = %s;
el.textContent = css;
document.head.appendChild(el);
export default css;
`, quotedCSS, quotedPath)
	return Result{Code: code}
}
