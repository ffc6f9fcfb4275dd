package analyzer

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sorted(ss []string) []string {
	out := append([]string(nil), ss...)
	sort.Strings(out)
	return out
}

func TestDiffTuplePartitionsKeys(t *testing.T) {
	before := map[string]string{"a": "1", "b": "2", "c": "3"}
	after := map[string]string{"b": "2", "c": "4", "d": "5"}

	common, added, removed := diffTuple(before, after)

	assert.Equal(t, []string{"b", "c"}, sorted(common))
	assert.Equal(t, []string{"d"}, sorted(added))
	assert.Equal(t, []string{"a"}, sorted(removed))
}

func TestDiffTupleEitherSideMissingIsEmpty(t *testing.T) {
	common, added, removed := diffTuple[string](nil, map[string]string{"a": "1"})
	assert.Empty(t, common)
	assert.Empty(t, added)
	assert.Empty(t, removed)

	common, added, removed = diffTuple[string](map[string]string{"a": "1"}, nil)
	assert.Empty(t, common)
	assert.Empty(t, added)
	assert.Empty(t, removed)
}

func TestDiffTupleIsAPartition(t *testing.T) {
	before := map[string]int{"a": 1, "b": 2}
	after := map[string]int{"b": 3, "c": 4}

	common, added, removed := diffTuple(before, after)

	all := map[string]bool{}
	for _, k := range common {
		all[k] = true
	}
	for _, k := range added {
		assert.False(t, all[k], "added and common must be disjoint")
		all[k] = true
	}
	for _, k := range removed {
		assert.False(t, all[k], "removed must be disjoint from common and added")
	}

	want := map[string]bool{"a": true, "b": true, "c": true}
	assert.Equal(t, want, all, "common ⊎ added ⊎ removed must equal before.keys ∪ after.keys")
}
