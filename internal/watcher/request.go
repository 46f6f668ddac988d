package watcher

import (
	"path/filepath"
	"slices"
	"strings"
)

// Request is a recursive watch request: a root folder and the glob patterns
// excluded below it. Patterns are relative to Path.
type Request struct {
	Path     string
	Excludes []string
}

// NewRequest builds a request with a cleaned path and a private copy of
// excludes.
func NewRequest(path string, excludes ...string) Request {
	return Request{Path: filepath.Clean(path), Excludes: slices.Clone(excludes)}
}

// Key identifies requests that watch the same thing. The order of excludes
// does not matter.
func (r Request) Key() string {
	excludes := slices.Clone(r.Excludes)
	slices.Sort(excludes)
	excludes = slices.Compact(excludes)
	return filepath.Clean(r.Path) + "\x00" + strings.Join(excludes, "\x00")
}

// Clone returns a deep copy.
func (r Request) Clone() Request {
	return Request{Path: r.Path, Excludes: slices.Clone(r.Excludes)}
}

// Dedupe returns requests with duplicates (by Key) removed, keeping the
// first occurrence of each.
func Dedupe(requests []Request) []Request {
	seen := make(map[string]struct{}, len(requests))
	out := make([]Request, 0, len(requests))
	for _, r := range requests {
		k := r.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r.Clone())
	}
	return out
}

// Diff compares two request sets by Key and returns what next adds to and
// removes from prev. Results keep the order of their source slice.
func Diff(prev, next []Request) (added, removed []Request) {
	prevKeys := make(map[string]struct{}, len(prev))
	for _, r := range prev {
		prevKeys[r.Key()] = struct{}{}
	}
	nextKeys := make(map[string]struct{}, len(next))
	for _, r := range next {
		k := r.Key()
		nextKeys[k] = struct{}{}
		if _, ok := prevKeys[k]; !ok {
			added = append(added, r.Clone())
			prevKeys[k] = struct{}{}
		}
	}
	seen := make(map[string]struct{})
	for _, r := range prev {
		k := r.Key()
		if _, ok := nextKeys[k]; ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		removed = append(removed, r.Clone())
	}
	return added, removed
}
