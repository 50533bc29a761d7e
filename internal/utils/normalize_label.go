package utils

import (
	"strings"
)

// NormalizeLabel canonicalizes a detector class label: lowercase, hyphens and
// underscores become spaces, runs of whitespace collapse to one space.
func NormalizeLabel(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", " ")
	normalized = strings.ReplaceAll(normalized, "_", " ")
	return strings.Join(strings.Fields(normalized), " ")
}

// IsAccident reports whether a class label names an accident detection.
// Matching is a case-insensitive substring test, labels are free text.
func IsAccident(label string) bool {
	return strings.Contains(strings.ToLower(label), "accident")
}

// IsHelmetClass reports whether a class label belongs to the helmet /
// no-helmet category used by reports and the assistant.
func IsHelmetClass(label string) bool {
	return strings.Contains(strings.ToLower(label), "helmet")
}
