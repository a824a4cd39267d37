package transpile

import (
	"strings"
	"testing"
)

func TestTranspileTSX(t *testing.T) {
	c := NewCache()
	res, hash := c.Transpile("/App.tsx", `export const App = () => <div>hi</div>;`)
	if !res.OK() {
		t.Fatalf("diagnostics: %+v", res.Diagnostics)
	}
	if hash == "" {
		t.Error("expected non-empty content hash")
	}
	// The automatic runtime injects a jsx-runtime import we expect to see.
	if !strings.Contains(res.Code, "react/jsx-runtime") {
		t.Errorf("expected jsx-runtime import in output:\n%s", res.Code)
	}
	// TSX type annotations are stripped.
	if strings.Contains(res.Code, "=>") == false {
		t.Errorf("unexpected output:\n%s", res.Code)
	}
}

func TestTranspileStripsTypeOnlyImports(t *testing.T) {
	c := NewCache()
	src := "import type { FC } from \"react\";\nexport const x = 1;\n"
	res, _ := c.Transpile("/x.ts", src)
	if !res.OK() {
		t.Fatalf("diagnostics: %+v", res.Diagnostics)
	}
	if strings.Contains(res.Code, "react") {
		t.Errorf("type-only import should be dropped:\n%s", res.Code)
	}
}

func TestTranspileSyntaxErrorHasPosition(t *testing.T) {
	c := NewCache()
	res, _ := c.Transpile("/broken.tsx", "export const x = <div>\n")
	if res.OK() {
		t.Fatal("expected a failed transform")
	}
	d := res.Diagnostics[0]
	if d.Path != "/broken.tsx" {
		t.Errorf("diagnostic path = %q", d.Path)
	}
	if d.Line == 0 {
		t.Error("expected a source position")
	}
	if res.Err() == nil {
		t.Error("Err() should be non-nil for a failed result")
	}
}

func TestCacheHitSkipsTransform(t *testing.T) {
	c := NewCache()
	src := "export const a = 1;"
	first, h1 := c.Transpile("/a.ts", src)
	second, h2 := c.Transpile("/a.ts", src)
	if h1 != h2 {
		t.Errorf("hash changed on identical content: %s vs %s", h1, h2)
	}
	if first.Code != second.Code {
		t.Error("cached result differs from original")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestCacheRetainsOneHashPerPath(t *testing.T) {
	c := NewCache()
	_, _ = c.Transpile("/a.ts", "export const a = 1;")
	_, _ = c.Transpile("/a.ts", "export const a = 2;")
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1 (old hash must be evicted)", c.Len())
	}
}

func TestCacheCachesFailures(t *testing.T) {
	c := NewCache()
	broken := "export const x = <div>"
	first, _ := c.Transpile("/b.tsx", broken)
	if first.OK() {
		t.Fatal("expected failure")
	}
	second, _ := c.Transpile("/b.tsx", broken)
	if second.OK() || len(second.Diagnostics) != len(first.Diagnostics) {
		t.Error("failure should be served from cache unchanged")
	}
}

func TestCSSBecomesStyleModule(t *testing.T) {
	c := NewCache()
	res, _ := c.Transpile("/app.css", ".btn { color: red; }")
	if !res.OK() {
		t.Fatalf("diagnostics: %+v", res.Diagnostics)
	}
	if !strings.Contains(res.Code, "document.createElement(\"style\")") {
		t.Errorf("expected style injection module:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, "export default") {
		t.Errorf("css module should export the sheet:\n%s", res.Code)
	}
}

func TestUnsupportedLanguage(t *testing.T) {
	c := NewCache()
	res, _ := c.Transpile("/readme.md", "# hi")
	if res.OK() {
		t.Fatal("markdown is not an executable module")
	}
}
