// Package pathset implements the unordered filesystem path set used by
// sandbox specs and the verifier's hermeticity proof. Containment is
// prefix-at-segment-boundary: "/workspace" contains "/workspace/src/x" but
// not "/workspacelike".
package pathset

import (
	"sort"
	"strings"
)

// PathSet is an unordered set of filesystem paths.
type PathSet struct {
	paths map[string]struct{}
}

// New builds a PathSet from the given paths, deduplicating and cleaning
// trailing slashes.
func New(paths ...string) *PathSet {
	ps := &PathSet{paths: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		ps.Add(p)
	}
	return ps
}

// Add inserts p into the set.
func (ps *PathSet) Add(p string) {
	ps.paths[normalize(p)] = struct{}{}
}

// Len returns the number of paths in the set.
func (ps *PathSet) Len() int {
	return len(ps.paths)
}

// Paths returns a sorted slice of the set's members.
func (ps *PathSet) Paths() []string {
	out := make([]string, 0, len(ps.paths))
	for p := range ps.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func normalize(p string) string {
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		return strings.TrimRight(p, "/")
	}
	return p
}

// containsPath reports whether root contains candidate at a segment
// boundary: root == candidate, or candidate starts with root+"/".
func containsPath(root, candidate string) bool {
	if root == candidate {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return strings.HasPrefix(candidate, prefix)
}

// Contains reports whether any member of ps contains target at a segment
// boundary.
func (ps *PathSet) Contains(target string) bool {
	target = normalize(target)
	for p := range ps.paths {
		if containsPath(p, target) {
			return true
		}
	}
	return false
}

// Union returns a new set containing the members of both sets.
func (ps *PathSet) Union(other *PathSet) *PathSet {
	out := New()
	for p := range ps.paths {
		out.Add(p)
	}
	if other != nil {
		for p := range other.paths {
			out.Add(p)
		}
	}
	return out
}

// Intersect returns the paths of ps that are contained by (or contain) some
// member of other.
func (ps *PathSet) Intersect(other *PathSet) *PathSet {
	out := New()
	if other == nil {
		return out
	}
	for p := range ps.paths {
		for q := range other.paths {
			if containsPath(p, q) || containsPath(q, p) {
				out.Add(p)
				break
			}
		}
	}
	return out
}

// Disjoint reports whether no member of ps contains, or is contained by, any
// member of other.
func (ps *PathSet) Disjoint(other *PathSet) bool {
	if other == nil {
		return true
	}
	for p := range ps.paths {
		for q := range other.paths {
			if containsPath(p, q) || containsPath(q, p) {
				return false
			}
		}
	}
	return true
}
