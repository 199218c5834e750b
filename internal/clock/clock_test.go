package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AdvanceAndSet(t *testing.T) {
	start := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	f := NewFake(start)
	assert.Equal(t, start, f.Now())

	got := f.Advance(30 * time.Second)
	assert.Equal(t, start.Add(30*time.Second), got)
	assert.Equal(t, got, f.Now())

	later := start.Add(time.Hour)
	f.Set(later)
	assert.Equal(t, later, f.Now())
}

func TestSystem_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	c := NewSystem(loc)
	assert.Equal(t, loc, c.Now().Location())

	assert.Equal(t, time.Local, NewSystem(nil).Loc)
}
