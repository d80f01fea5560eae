package search

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// The search backend requires a fully-formed query including the leading
// "cribl" operator, which casual users tend to omit. Normalization applies
// a best-effort transform to insert it where it belongs; it is not a
// parser, and leaves anything it cannot confidently classify untouched.

// firstWordRe captures any leading "set ...;" / "let ...;" statements, then
// the remainder of the query starting at its first word. Prefix statements
// are left alone; users still need their own "cribl" inside those.
var firstWordRe = regexp.MustCompile(`^((?:\s*(?:set|let)\s+[^;]+;)*\s*)((\w+|['"*]).*)$`)

// Operators that may legitimately lead a query; no prepending needed.
var leadingOperators = []string{"cribl", "externaldata", "find", "print", "search"}

// NormalizeQuery inserts the "cribl" operator ahead of the root query
// statement when its first word is not a recognized leading operator.
// Queries that don't match the prefix+first-word shape at all pass through
// unchanged.
func NormalizeQuery(query string) string {
	match := firstWordRe.FindStringSubmatch(strings.TrimSpace(query))
	if match == nil {
		return query
	}
	if slices.Contains(leadingOperators, match[3]) {
		return query
	}
	return fmt.Sprintf("%scribl %s", match[1], match[2])
}

var lineBreakRe = regexp.MustCompile("[\r\n\t]+")

// collapseToSingleLine folds newlines and tabs into single spaces. A query
// is much easier to pick out of the logs as one line.
func collapseToSingleLine(query string) string {
	return lineBreakRe.ReplaceAllString(query, " ")
}
