package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFake_AdvanceFiresInOrder(t *testing.T) {
	clk := NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	var fired []string
	clk.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	clk.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	clk.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })

	clk.Advance(5 * time.Second)
	require.Equal(t, []string{"a", "b", "c"}, fired)
	require.Equal(t, 0, clk.Pending())
}

func TestFake_AdvancePartial(t *testing.T) {
	clk := NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	fired := 0
	clk.AfterFunc(time.Second, func() { fired++ })
	clk.AfterFunc(10*time.Second, func() { fired++ })

	clk.Advance(time.Second)
	require.Equal(t, 1, fired)
	require.Equal(t, 1, clk.Pending())
}

func TestFake_Stop(t *testing.T) {
	clk := NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	fired := false
	timer := clk.AfterFunc(time.Second, func() { fired = true })
	require.True(t, timer.Stop())
	require.False(t, timer.Stop())

	clk.Advance(2 * time.Second)
	require.False(t, fired)
}

func TestFake_ReentrantAfterFunc(t *testing.T) {
	clk := NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	fired := 0
	clk.AfterFunc(time.Second, func() {
		fired++
		clk.AfterFunc(time.Second, func() { fired++ })
	})

	// The rescheduled timer falls inside the advanced window and fires too.
	clk.Advance(2 * time.Second)
	require.Equal(t, 2, fired)
}

func TestFake_NowAdvances(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFake(start)

	clk.Advance(90 * time.Second)
	require.Equal(t, start.Add(90*time.Second), clk.Now())
}
