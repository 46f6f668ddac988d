package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequest_Key_IgnoresExcludeOrder(t *testing.T) {
	a := NewRequest("/repo/", "node_modules", "**/*.log")
	b := NewRequest("/repo", "**/*.log", "node_modules", "node_modules")
	c := NewRequest("/repo", "dist")

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, "/repo", a.Path)
}

func TestNewRequest_CopiesExcludes(t *testing.T) {
	excludes := []string{"a"}
	r := NewRequest("/x", excludes...)
	excludes[0] = "b"

	assert.Equal(t, []string{"a"}, r.Excludes)
}

func TestDedupe_KeepsFirstOccurrence(t *testing.T) {
	in := []Request{NewRequest("/a"), NewRequest("/b"), NewRequest("/a"), NewRequest("/c")}

	out := Dedupe(in)

	assert.Equal(t, []Request{NewRequest("/a"), NewRequest("/b"), NewRequest("/c")}, out)
}

func TestDiff(t *testing.T) {
	prev := []Request{NewRequest("/a"), NewRequest("/b", "x")}
	next := []Request{NewRequest("/b", "x"), NewRequest("/c"), NewRequest("/c")}

	added, removed := Diff(prev, next)

	assert.Equal(t, []Request{NewRequest("/c")}, added)
	assert.Equal(t, []Request{NewRequest("/a")}, removed)
}

func TestRegistry_RemoveRetractsExactEntry(t *testing.T) {
	// Given: two callers registering the same folder
	r := NewRegistry()
	first := r.Add(NewRequest("/repo"))
	second := r.Add(NewRequest("/repo"))
	other := r.Add(NewRequest("/other"))

	// When: the first caller retracts
	assert.True(t, r.Remove(first))

	// Then: the second caller's entry survives
	assert.Equal(t, []Request{NewRequest("/repo"), NewRequest("/other")}, r.Requests())
	assert.False(t, r.Remove(first), "retracting twice is a no-op")

	assert.True(t, r.Remove(second))
	assert.True(t, r.Remove(other))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_SnapshotsAreCopies(t *testing.T) {
	r := NewRegistry()
	r.Add(NewRequest("/repo", "a"))

	snap := r.Requests()
	snap[0].Excludes[0] = "mutated"
	snap[0].Path = "/elsewhere"

	assert.Equal(t, []Request{NewRequest("/repo", "a")}, r.Requests())
}

func TestRegistry_Folders_Deduplicates(t *testing.T) {
	r := NewRegistry()
	r.Add(NewRequest("/repo", "b", "a"))
	r.Add(NewRequest("/repo", "a", "b"))
	r.Add(NewRequest("/other"))

	assert.Len(t, r.Folders(), 2)
	assert.Equal(t, 3, r.Len())
}
