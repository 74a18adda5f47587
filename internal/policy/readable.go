package policy

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	prefixPattern     = regexp.MustCompile(`^[A-Za-z][\w.-]*:(\S+)$`)
	camelCasePattern  = regexp.MustCompile(`([a-z])([A-Z])`)
	unknownIdentifier = "Unknown"
)

// ExtractReadableName turns a URI, prefixed name or identifier into a
// title-cased display name. It never fails; empty input yields "Unknown".
func ExtractReadableName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return unknownIdentifier
	}

	name := stripNamespace(s)
	name = strings.ReplaceAll(name, "_", " ")
	name = camelCasePattern.ReplaceAllString(name, "$1 $2")
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		name = s
	}

	// Casers keep state, so one per call.
	return cases.Title(language.Und, cases.NoLower).String(name)
}

// LocalName returns the trailing path or fragment segment of an IRI
func LocalName(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/#")
	if i := strings.LastIndexAny(s, "/#"); i >= 0 {
		return s[i+1:]
	}
	if m := prefixPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

func stripNamespace(s string) string {
	if strings.Contains(s, "://") {
		trimmed := strings.TrimRight(s, "/#")
		if i := strings.LastIndexAny(trimmed, "/#"); i >= 0 && i+1 < len(trimmed) {
			return trimmed[i+1:]
		}
		return trimmed
	}
	if m := prefixPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

func looksLikeIRI(s string) bool {
	return strings.Contains(s, "://") || prefixPattern.MatchString(s)
}
