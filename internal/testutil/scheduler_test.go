package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualScheduler_FiresInDeadlineOrder(t *testing.T) {
	s := NewManualScheduler()
	var got []string

	s.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })
	s.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	s.AfterFunc(20*time.Millisecond, func() { got = append(got, "b") })

	assert.Equal(t, 0, s.Advance(5*time.Millisecond))
	assert.Equal(t, 3, s.Advance(time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 1005*time.Millisecond, s.Now())
}

func TestManualScheduler_Stop(t *testing.T) {
	s := NewManualScheduler()
	fired := false

	h := s.AfterFunc(time.Millisecond, func() { fired = true })
	assert.Equal(t, 1, s.Pending())
	assert.True(t, h.Stop())
	assert.False(t, h.Stop())

	s.Advance(time.Second)
	assert.False(t, fired)
	assert.Equal(t, 0, s.Pending())
}

func TestManualScheduler_CallbackMaySchedule(t *testing.T) {
	s := NewManualScheduler()
	var got []time.Duration

	s.AfterFunc(10*time.Millisecond, func() {
		got = append(got, s.Now())
		s.AfterFunc(10*time.Millisecond, func() { got = append(got, s.Now()) })
	})

	s.Advance(25 * time.Millisecond)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, got)
}
