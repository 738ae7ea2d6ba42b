package taskrun

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandle_RoundTrip(t *testing.T) {
	h := makeHandle(7, 42, 123456)
	assert.Equal(t, 7, h.worker())
	assert.Equal(t, uint8(42), h.generation())
	assert.Equal(t, uint32(123456), h.offset())
	assert.False(t, h.IsZero())
}

func TestHandle_ZeroIsNoTask(t *testing.T) {
	var h Handle
	assert.True(t, h.IsZero())
}

func TestNextGeneration_SkipsZero(t *testing.T) {
	g := uint8(1)
	for i := 0; i < 300; i++ {
		g = nextGeneration(g)
		assert.NotZero(t, g)
	}
	assert.Equal(t, nextGeneration(maxGeneration), uint8(1))
}
