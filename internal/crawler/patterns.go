package crawler

import (
	"path"
	"strings"
)

// matchPattern reports whether selector matches a glob pattern.
//
//   - "/admin/*" matches "/admin" and anything below it
//   - "*.zip" matches any selector ending in ".zip"
//   - other patterns use path.Match, and a pattern without "/" is also tried
//     against the last path element
func matchPattern(pattern, selector string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if selector == prefix || strings.HasPrefix(selector, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext, "*?[") {
		if strings.HasSuffix(selector, ext) {
			return true
		}
	}

	if matched, err := path.Match(pattern, selector); err == nil && matched {
		return true
	}

	if strings.ContainsAny(pattern, "*?[") && !strings.Contains(pattern, "/") {
		matched, err := path.Match(pattern, path.Base(selector))
		return err == nil && matched
	}

	return false
}

// matchAny reports whether selector matches at least one pattern.
func matchAny(patterns []string, selector string) bool {
	for _, p := range patterns {
		if matchPattern(p, selector) {
			return true
		}
	}
	return false
}
