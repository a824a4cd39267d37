// Package preview assembles the self-contained sandboxed document that the
// host UI embeds in an isolated rendering surface.
package preview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"github.com/starford/sunna/internal/importmap"
)

// Session is one published preview. Only the highest-generation session is
// ever surfaced to the host.
type Session struct {
	EntryPath  string         `json:"entry_path"`
	ImportMap  *importmap.Map `json:"import_map"`
	Markup     string         `json:"markup"`
	Generation uint64         `json:"generation"`
	BuiltAt    time.Time      `json:"built_at"`
}

// The document installs the import map before any module executes, loads
// the entry through the native loader, and reports uncaught errors back to
// the host instead of dying silently inside the sandbox.
var documentTmpl = template.Must(template.New("preview").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<style>
  html, body, #root { margin: 0; height: 100%; }
  #__overlay {
    display: none; position: fixed; inset: 0; z-index: 2147483647;
    background: rgba(20, 8, 8, 0.96); color: #ffb4b4; overflow: auto;
    font: 13px/1.5 ui-monospace, monospace; padding: 24px; white-space: pre-wrap;
  }
</style>
<script type="importmap">
{{.ImportMapJSON}}
</script>
<script>
(function () {
  var overlay = null;
  function show(message) {
    if (!overlay) {
      overlay = document.createElement("div");
      overlay.id = "__overlay";
      document.body.appendChild(overlay);
    }
    overlay.style.display = "block";
    overlay.textContent += message + "\n\n";
    if (window.parent !== window) {
      window.parent.postMessage({ source: "sunna-preview", type: "runtime-error", message: message }, "*");
    }
  }
  window.addEventListener("error", function (ev) {
    show(String(ev.message || ev.error));
  });
  window.addEventListener("unhandledrejection", function (ev) {
    show("Unhandled rejection: " + String(ev.reason));
  });
})();
</script>
</head>
<body>
<div id="root"></div>
<script type="module">import {{.EntryURL}};</script>
</body>
</html>
`))

type tmplData struct {
	ImportMapJSON template.JS
	EntryURL      template.JS
}

// BuildDocument renders a brand-new sandbox document for one build. The
// previous document is discarded wholesale; there is no in-place patching
// of a running sandbox.
func BuildDocument(entryURL string, m *importmap.Map) (string, error) {
	mapJSON, err := m.JSON()
	if err != nil {
		return "", fmt.Errorf("preview: marshal import map: %w", err)
	}
	entryJSON, err := json.Marshal(entryURL)
	if err != nil {
		return "", fmt.Errorf("preview: marshal entry url: %w", err)
	}
	var buf bytes.Buffer
	err = documentTmpl.Execute(&buf, tmplData{
		ImportMapJSON: template.JS(mapJSON),
		EntryURL:      template.JS(entryJSON),
	})
	if err != nil {
		return "", fmt.Errorf("preview: render document: %w", err)
	}
	return buf.String(), nil
}
