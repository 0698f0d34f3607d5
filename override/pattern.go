// Package override validates and consumes the single-use, time-boxed
// records that let a blocked mutation proceed once.
package override

import "strings"

// PathPattern matches candidate paths either exactly or as a suffix at a
// directory boundary.
type PathPattern struct {
	path   string
	suffix bool
}

// Exact matches only the identical path.
func Exact(path string) PathPattern {
	return PathPattern{path: path}
}

// DirectorySuffix matches any candidate ending with "/" followed by the
// pattern, so "registry.yaml" matches "config/registry.yaml" but never
// "feature-registry.yaml".
func DirectorySuffix(path string) PathPattern {
	return PathPattern{path: path, suffix: true}
}

// Matches reports whether candidate satisfies the pattern.
func (p PathPattern) Matches(candidate string) bool {
	if p.suffix {
		return strings.HasSuffix(candidate, "/"+p.path)
	}
	return candidate == p.path
}
