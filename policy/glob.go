package policy

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Match reports whether a rule pattern matches a normalized
// forward-slash relative path. Wildcards follow doublestar semantics:
// `*` matches within one path segment, `**` spans zero or more segments,
// `?` matches a single non-separator character. Patterns beginning with
// `.` or `/` are anchored at the start of the path (the leading `/` is
// stripped since paths are relative); any other pattern also matches at
// any path-segment boundary, so `*.sh` matches `scripts/build.sh`.
// Matching is always anchored at the end. Invalid patterns match nothing.
func Match(pattern, path string) bool {
	if pattern == "" || path == "" {
		return false
	}

	anchored := strings.HasPrefix(pattern, ".") || strings.HasPrefix(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")

	if ok, err := doublestar.Match(pattern, path); err == nil && ok {
		return true
	}
	if anchored {
		return false
	}

	ok, err := doublestar.Match("**/"+pattern, path)
	return err == nil && ok
}

// Specificity counts the pattern segments that contain no wildcard
// character. It ranks overlapping rule matches, with a higher score
// meaning a more literal pattern; it plays no part in matching itself.
func Specificity(pattern string) int {
	score := 0
	for _, seg := range strings.Split(strings.TrimPrefix(pattern, "/"), "/") {
		if seg != "" && !strings.ContainsAny(seg, "*?[") {
			score++
		}
	}
	return score
}
