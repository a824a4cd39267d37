package resolver

import "strings"

// Specifier is the classified form of an import specifier string, decided
// once at scan time. A specifier starting with "." or "/" is relative to the
// importing file; anything else is a bare external package reference,
// optionally carrying a version suffix ("react@18.2.0").
type Specifier struct {
	Raw      string `json:"raw"`
	Relative bool   `json:"relative"`
	Name     string `json:"name,omitempty"`    // bare only
	Version  string `json:"version,omitempty"` // bare only, empty means latest
}

// ParseSpecifier classifies a raw specifier string.
func ParseSpecifier(raw string) Specifier {
	if strings.HasPrefix(raw, ".") || strings.HasPrefix(raw, "/") {
		return Specifier{Raw: raw, Relative: true}
	}
	name, version := splitVersion(raw)
	return Specifier{Raw: raw, Name: name, Version: version}
}

// splitVersion separates a trailing @version from a package name, keeping
// the leading @ of scoped packages ("@org/pkg@1.0.0") intact.
func splitVersion(raw string) (name, version string) {
	search := raw
	offset := 0
	if strings.HasPrefix(raw, "@") {
		offset = 1
		search = raw[1:]
	}
	if idx := strings.IndexByte(search, '@'); idx >= 0 {
		return raw[:offset+idx], search[idx+1:]
	}
	return raw, ""
}
