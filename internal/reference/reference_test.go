package reference

import (
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Format(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	ref, err := New(day, 42)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^FKASH-2024-03-01-00042\d{4}$`), ref)
}

func TestNew_SuffixBounds(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 500; i++ {
		ref, err := New(day, 1)
		require.NoError(t, err)

		suffix, err := strconv.Atoi(ref[len(ref)-4:])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, suffix, 1000)
		assert.LessOrEqual(t, suffix, 9999)
	}
}

func TestNew_SequenceWidth(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		seq  int
		want string
	}{
		{name: "single digit pads to five", seq: 7, want: "FKASH-2024-03-01-00007"},
		{name: "five digits unchanged", seq: 99999, want: "FKASH-2024-03-01-99999"},
		{name: "overflow widens rather than truncates", seq: 123456, want: "FKASH-2024-03-01-123456"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ref, err := New(day, tc.seq)
			require.NoError(t, err)
			assert.Equal(t, tc.want+ref[len(ref)-4:], ref)
			assert.Equal(t, tc.want, ref[:len(ref)-4])
		})
	}
}

func TestDay(t *testing.T) {
	lagos := time.FixedZone("WAT", 1*60*60)
	in := time.Date(2024, 3, 1, 0, 30, 0, 0, lagos) // 23:30 UTC the day before

	got := Day(in)

	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}
