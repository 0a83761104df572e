package patient

import "strings"

// NormalizeID canonicalizes a patient identifier for equality comparison.
// Identifiers arrive from the workbook as either text or numeric cells;
// numeric cells render with a trailing ".0" which must not break matching.
func NormalizeID(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, ".0")
	return s
}

// SameID reports whether two raw identifiers refer to the same patient.
func SameID(a, b string) bool {
	return NormalizeID(a) == NormalizeID(b)
}
