package trainer

import "testing"

import "github.com/stretchr/testify/assert"

func TestSchedule(t *testing.T) {
	for _, tc := range []struct {
		step int64
		want float64
	}{
		{0, 0.1},
		{39999, 0.1},
		{40000, 0.01},
		{59999, 0.01},
		{60000, 0.001},
		{79999, 0.001},
		{80000, 0.0001},
		{1000000, 0.0001},
	} {
		assert.InDelta(t, tc.want, Schedule(0.1, tc.step), 1e-12, "step %d", tc.step)
	}
}
