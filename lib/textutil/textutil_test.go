package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatCount(t *testing.T) {
	cases := []struct {
		n      int
		expect string
	}{
		{0, "0"},
		{7, "7"},
		{999, "999"},
		{1000, "1,000"},
		{12345, "12,345"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, FormatCount(test.n))

		back, err := ParseCount(test.expect)
		require.NoError(t, err)
		require.Equal(t, test.n, back)
	}
}

func TestParseCountInvalid(t *testing.T) {
	_, err := ParseCount("twelve")
	require.Error(t, err)
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "portal 2", NormalizeName("  Portal\t 2 \n"))
}

func TestClosestMatch(t *testing.T) {
	best, similarity, ok := ClosestMatch("portl", []string{"Half-Life", "Portal", "Team Fortress 2"})
	require.True(t, ok)
	require.Equal(t, "Portal", best)
	require.Greater(t, similarity, 0.8)

	_, _, ok = ClosestMatch("portal", nil)
	require.False(t, ok)
}
