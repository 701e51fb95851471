package timestr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSeconds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want  float64
	}{
		{"90", 90},
		{"1.5", 1.5},
		{".5", 0.5},
		{"500ms", 0.5},
		{"500 milliseconds", 0.5},
		{"1s", 1},
		{"1 second", 1},
		{"10 secs", 10},
		{"1min 30s", 90},
		{"1 minute 30 seconds", 90},
		{"2 hours 1 minute", 7260},
		{"1d 2h", 93600},
		{"1 day", 86400},
		{"1M 30S", 90},
		{"  42  ", 42},
		{"0", 0},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()

			got, err := ToSeconds(tc.input)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestToSecondsErrors(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "  ", "-1s", "abc", "1 week", "1.2.3", "s1", "10 parsecs"} {
		t.Run("rejects "+input, func(t *testing.T) {
			t.Parallel()

			_, err := ToSeconds(input)
			require.Error(t, err)

			var pe *ParseError

			require.ErrorAs(t, err, &pe)
			assert.Contains(t, err.Error(), "invalid time string")
		})
	}
}

func TestParseErrorKeepsOriginalText(t *testing.T) {
	t.Parallel()

	_, err := ToSeconds("1 Week")

	var pe *ParseError

	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "1 Week", pe.Text)
	assert.Contains(t, err.Error(), "1 Week")
}

func TestFromSeconds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		secs float64
		want string
	}{
		{0, "0s"},
		{0.0001, "0s"},
		{0.5, "500ms"},
		{1, "1s"},
		{1.5, "1s 500ms"},
		{90, "1min 30s"},
		{3600, "1h"},
		{7260, "2h 1min"},
		{93600, "1d 2h"},
		{-90, "-1min 30s"},
	}

	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, FromSeconds(tc.secs))
		})
	}
}

func TestRoundTripIsStable(t *testing.T) {
	t.Parallel()

	// Normalizing an already-normalized string must not change it.
	for _, input := range []string{"500ms", "1s", "1min 30s", "1h 2min", "1d"} {
		secs, err := ToSeconds(input)
		require.NoError(t, err)
		assert.Equal(t, input, FromSeconds(secs))
	}
}
