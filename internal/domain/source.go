package domain

import (
	"fmt"
	"strings"
)

// SourceKind identifies the upstream system a record came from.
type SourceKind string

const (
	SourceCanadian    SourceKind = "canadian"
	SourceToronto     SourceKind = "toronto"
	SourceOntario     SourceKind = "ontario"
	SourceQuebec      SourceKind = "quebec"
	SourceMississauga SourceKind = "mississauga"
	SourceBrampton    SourceKind = "brampton"
	SourceHamilton    SourceKind = "hamilton"
	SourceLondon      SourceKind = "london"
)

// AllSources lists every known source in a stable order.
var AllSources = []SourceKind{
	SourceCanadian,
	SourceToronto,
	SourceOntario,
	SourceQuebec,
	SourceMississauga,
	SourceBrampton,
	SourceHamilton,
	SourceLondon,
}

// ParseSourceKind validates a source name.
func ParseSourceKind(s string) (SourceKind, error) {
	for _, k := range AllSources {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// IsBidsAndTenders reports whether the source belongs to the stealth-scraped
// municipal portal family.
func (k SourceKind) IsBidsAndTenders() bool {
	switch k {
	case SourceMississauga, SourceBrampton, SourceHamilton, SourceLondon:
		return true
	}
	return false
}

// RawRecord is one source-native row. Kind selects the mapper that
// understands Fields; no shape is shared between kinds.
type RawRecord struct {
	Kind   SourceKind
	Fields map[string]any
}

// Text returns the field as a trimmed string, or "" when absent.
func (r RawRecord) Text(key string) string {
	return FormatScalar(r.Fields[key])
}

// FormatScalar renders a decoded JSON/CSV scalar as trimmed text. Integral
// floats print without a fraction so numeric ids survive JSON decoding.
func FormatScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Value returns the raw field value.
func (r RawRecord) Value(key string) any {
	return r.Fields[key]
}
