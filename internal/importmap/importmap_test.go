package importmap

import (
	"encoding/json"
	"testing"

	"github.com/starford/sunna/internal/resolver"
)

func TestBuildMergesInternalAndExternal(t *testing.T) {
	modules := []resolver.Module{
		{Path: "/components/Button.tsx"},
		{
			Path: "/App.tsx",
			Imports: []resolver.Edge{
				{
					From:         "/App.tsx",
					Spec:         resolver.ParseSpecifier("./components/Button"),
					Kind:         resolver.ImportStatic,
					ResolvedPath: "/components/Button.tsx",
				},
				{
					From: "/App.tsx",
					Spec: resolver.ParseSpecifier("react"),
					Kind: resolver.ImportStatic,
				},
			},
		},
	}
	externals := []resolver.Specifier{resolver.ParseSpecifier("react")}
	urls := map[string]string{
		"/components/Button.tsx": "/modules/aaa.js",
		"/App.tsx":               "/modules/bbb.js",
	}

	m := NewBuilder("https://esm.sh").Build(modules, externals, urls)

	cases := map[string]string{
		"/App.tsx":               "/modules/bbb.js",
		"/components/Button.tsx": "/modules/aaa.js",
		"./components/Button":    "/modules/aaa.js",
		"react":                  "https://esm.sh/react@latest",
	}
	for spec, want := range cases {
		if got := m.Imports[spec]; got != want {
			t.Errorf("Imports[%q] = %q, want %q", spec, got, want)
		}
	}
	// Two internal modules get two distinct artifact URLs.
	if m.Imports["/App.tsx"] == m.Imports["/components/Button.tsx"] {
		t.Error("distinct modules must map to distinct URLs")
	}
}

func TestPackageURLVersions(t *testing.T) {
	b := NewBuilder("https://esm.sh/")
	cases := map[string]string{
		"react":              "https://esm.sh/react@latest",
		"react@18.2.0":       "https://esm.sh/react@18.2.0",
		"react/jsx-runtime":  "https://esm.sh/react@latest/jsx-runtime",
		"@org/pkg@1.2.3":     "https://esm.sh/@org/pkg@1.2.3",
		"@org/pkg/sub@2.0.0": "https://esm.sh/@org/pkg@2.0.0/sub",
	}
	for raw, want := range cases {
		if got := b.PackageURL(resolver.ParseSpecifier(raw)); got != want {
			t.Errorf("PackageURL(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestJSONShape(t *testing.T) {
	m := &Map{Imports: map[string]string{"react": "https://esm.sh/react@latest"}}
	data, err := m.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var decoded struct {
		Imports map[string]string `json:"imports"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Imports["react"] != "https://esm.sh/react@latest" {
		t.Errorf("decoded = %+v", decoded)
	}
}
