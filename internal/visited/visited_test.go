package visited

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := New(10)

	assert.True(t, s.Visit(3))
	assert.False(t, s.Visit(3))
	assert.True(t, s.Visit(1000))
	assert.True(t, s.Visited(3))
	assert.True(t, s.Visited(1000))
	assert.False(t, s.Visited(4))
	assert.Equal(t, 2, s.Len())

	s.Reset()
	assert.False(t, s.Visited(3))
	assert.False(t, s.Visited(1000))
	assert.Equal(t, 0, s.Len())
}
