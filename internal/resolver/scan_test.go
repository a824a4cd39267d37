package resolver

import (
	"reflect"
	"testing"
)

func TestScanImports(t *testing.T) {
	code := `import { jsx } from "react/jsx-runtime";
import { Button } from "./Button";
import "./styles.css";
export { helper } from "./helper";
const page = () => import("./lazy/Page");
`
	got := scanImports(code)
	var raws []string
	for _, imp := range got {
		raws = append(raws, imp.raw)
	}
	want := []string{"react/jsx-runtime", "./Button", "./styles.css", "./helper", "./lazy/Page"}
	if !reflect.DeepEqual(raws, want) {
		t.Errorf("raws = %v, want %v", raws, want)
	}
	if got[0].kind != ImportStatic {
		t.Errorf("kind[0] = %s", got[0].kind)
	}
	if got[len(got)-1].kind != ImportDynamic {
		t.Errorf("dynamic import kind = %s", got[len(got)-1].kind)
	}
}

func TestScanImportsDeduplicates(t *testing.T) {
	code := `import { a } from "./x";
import { b } from "./x";
`
	got := scanImports(code)
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
}

func TestScanImportsMultiline(t *testing.T) {
	code := "import {\n  One,\n  Two\n} from \"./pair\";\n"
	got := scanImports(code)
	if len(got) != 1 || got[0].raw != "./pair" {
		t.Errorf("got = %+v", got)
	}
}

func TestScanImportsIgnoresPlainCode(t *testing.T) {
	code := `const s = "from she imported nothing";
export const x = 1;
`
	if got := scanImports(code); len(got) != 0 {
		t.Errorf("got = %+v, want none", got)
	}
}

func TestParseSpecifier(t *testing.T) {
	cases := []struct {
		raw  string
		want Specifier
	}{
		{"./Button", Specifier{Raw: "./Button", Relative: true}},
		{"../util", Specifier{Raw: "../util", Relative: true}},
		{"/abs/path", Specifier{Raw: "/abs/path", Relative: true}},
		{"react", Specifier{Raw: "react", Name: "react"}},
		{"react@18.2.0", Specifier{Raw: "react@18.2.0", Name: "react", Version: "18.2.0"}},
		{"react/jsx-runtime", Specifier{Raw: "react/jsx-runtime", Name: "react/jsx-runtime"}},
		{"@org/pkg", Specifier{Raw: "@org/pkg", Name: "@org/pkg"}},
		{"@org/pkg@1.0.0", Specifier{Raw: "@org/pkg@1.0.0", Name: "@org/pkg", Version: "1.0.0"}},
	}
	for _, c := range cases {
		if got := ParseSpecifier(c.raw); got != c.want {
			t.Errorf("ParseSpecifier(%q) = %+v, want %+v", c.raw, got, c.want)
		}
	}
}
