package structures

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingKeepsMostRecent(t *testing.T) {
	r := NewRing[int](3)
	assert.Empty(t, r.Items())

	r.Add(1)
	r.Add(2)
	assert.Equal(t, []int{1, 2}, r.Items())
	assert.Equal(t, 2, r.Len())

	r.Add(3)
	r.Add(4)
	r.Add(5)
	assert.Equal(t, []int{3, 4, 5}, r.Items())
	assert.Equal(t, 3, r.Len())
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing[string](0)
	r.Add("a")
	r.Add("b")
	assert.Equal(t, []string{"b"}, r.Items())
}
