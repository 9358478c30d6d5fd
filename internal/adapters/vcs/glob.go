package vcs

import (
	"path"
	"strings"
)

// MatchGlob matches a forward-slash relative path against a pattern.
// A "**" segment matches zero or more path segments; other segments follow path.Match.
func MatchGlob(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pattern, name []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchSegments(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		ok, err := path.Match(pattern[0], name[0])
		if err != nil || !ok {
			return false
		}
		pattern, name = pattern[1:], name[1:]
	}
	return len(name) == 0
}

// Filter reports whether rel passes the include and exclude globs.
// An empty include list includes everything.
func Filter(rel string, include, exclude []string) bool {
	if len(include) > 0 {
		matched := false
		for _, p := range include {
			if MatchGlob(p, rel) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, p := range exclude {
		if MatchGlob(p, rel) {
			return false
		}
	}
	return true
}
