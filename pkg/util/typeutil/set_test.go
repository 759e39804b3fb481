package typeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	set := NewSet(1, 2, 3)
	assert.Equal(t, 3, set.Len())
	assert.True(t, set.Contain(1, 3))
	assert.False(t, set.Contain(1, 4))

	set.Insert(4, 4)
	assert.Equal(t, 4, set.Len())

	set.Remove(1, 2, 9)
	assert.ElementsMatch(t, []int{3, 4}, set.Collect())
}
