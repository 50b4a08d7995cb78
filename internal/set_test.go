package internal

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringSet(t *testing.T) {
	s := NewSet[string]()

	s.Add("apple")
	s.Add("banana")
	s.Add("apple")

	assert.True(t, s.Contains("apple"))
	assert.True(t, s.Contains("banana"))
	assert.False(t, s.Contains("cherry"))
	assert.Equal(t, 2, s.Len())

	s.Remove("apple")
	assert.False(t, s.Contains("apple"))
	assert.Equal(t, 1, s.Len())

	s.Add("cherry")
	elements := s.Elements()
	sort.Strings(elements)
	assert.Equal(t, []string{"banana", "cherry"}, elements)
}

func TestArraySetAddAll(t *testing.T) {
	s := NewSet[[4]byte]()
	a, b := [4]byte{1}, [4]byte{2}

	assert.Equal(t, 2, s.AddAll(a, b, a))
	assert.Equal(t, 0, s.AddAll(b))
	assert.Equal(t, 2, s.Len())
}
