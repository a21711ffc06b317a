package internal

import (
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIterSeq2Concat(t *testing.T) {
	assert := assert.New(t)

	a := []string{"x", "y"}
	b := []string{"z"}

	var keys []int
	var values []string
	for k, v := range IterSeq2Concat(slices.All(a), slices.All(b)) {
		keys = append(keys, k)
		values = append(values, v)
	}

	assert.Equal([]int{0, 1, 0}, keys)
	assert.Equal([]string{"x", "y", "z"}, values)

	all := maps.Collect(IterSeq2Concat(maps.All(map[string]int{"a": 1}), maps.All(map[string]int{"b": 2})))
	assert.Equal(map[string]int{"a": 1, "b": 2}, all)

	count := 0
	for range IterSeq2Concat(slices.All(a), slices.All(b)) {
		count++
		break
	}
	assert.Equal(1, count)

	assert.Empty(maps.Collect(IterSeq2Concat[string, int]()))
}
