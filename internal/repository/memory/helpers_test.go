package memory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{1, 2}, paginate(items, 2, 0))
	assert.Equal(t, []int{5}, paginate(items, 2, 4))
	assert.Equal(t, items, paginate(items, 0, 0))
	assert.Empty(t, paginate(items, 2, 5))
	assert.Empty(t, paginate(items, 2, math.MaxInt))
	assert.Empty(t, paginate(items, 2, -20))
}
