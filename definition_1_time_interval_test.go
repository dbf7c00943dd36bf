package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDayInterval(t *testing.T) {
	tests := []struct {
		name     string
		a, b     DayInterval
		overlaps bool
	}{
		{"1. disjoint", DayInterval{0, 3}, DayInterval{3, 5}, false},
		{"2. nested", DayInterval{0, 10}, DayInterval{3, 5}, true},
		{"3. partial", DayInterval{0, 4}, DayInterval{3, 5}, true},
		{"4. empty", DayInterval{2, 2}, DayInterval{0, 5}, false},
	}

	for _, tt := range tests {
		t.Run(
			tt.name,
			func(t *testing.T) {
				require.Equal(t, tt.overlaps, tt.a.Overlaps(tt.b))
				require.Equal(t, tt.overlaps, tt.b.Overlaps(tt.a))
			},
		)
	}

	require.True(t, DayInterval{2, 4}.Contains(3))
	require.False(t, DayInterval{2, 4}.Contains(4))
	require.EqualValues(t, 2, DayInterval{2, 4}.Length())
}
