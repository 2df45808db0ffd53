package rate

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func decs(vals ...int64) []sdkmath.LegacyDec {
	out := make([]sdkmath.LegacyDec, len(vals))
	for i, v := range vals {
		out[i] = sdkmath.LegacyNewDec(v)
	}
	return out
}

func TestMedian_Odd(t *testing.T) {
	require.True(t, Median(decs(5, 1, 3)).Equal(sdkmath.LegacyNewDec(3)))
}

func TestMedian_EvenPicksLower(t *testing.T) {
	require.True(t, Median(decs(100, 101, 102, 99)).Equal(sdkmath.LegacyNewDec(100)))
}

func TestMedian_Empty(t *testing.T) {
	require.True(t, Median(nil).IsNil())
}

func TestStatisticalMedian_MatchesMedian(t *testing.T) {
	vals := decs(4, 8, 6, 2)
	require.True(t, StatisticalMedian(vals).Equal(Median(vals)))
}
