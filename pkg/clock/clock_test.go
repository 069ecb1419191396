package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManagedClock(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewManaged(start)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(time.Minute), c.WarpForward(time.Minute))
	assert.Equal(t, start.Add(3*time.Minute), c.WarpForward(2*time.Minute))
	assert.Equal(t, start.Add(3*time.Minute), c.Now())
}

func TestOrReal(t *testing.T) {
	managed := NewManaged(time.Unix(0, 0))
	assert.Same(t, managed, OrReal(managed))

	before := time.Now()
	got := OrReal(nil).Now()
	assert.False(t, got.Before(before))
}
