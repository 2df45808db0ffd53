package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMedian_Odd(t *testing.T) {
	require.Equal(t, int64(101), Median([]int64{100, 102, 101, 99, 10000}[:3]))
}

func TestMedian_EvenPicksLower(t *testing.T) {
	require.Equal(t, int64(100), Median([]int64{99, 100, 101, 102}))
}

func TestConsensus_OutlierRejection(t *testing.T) {
	feeds := []int64{100, 102, 101, 99, 10000}

	result := Consensus(feeds, 0, 500)

	require.Equal(t, []int64{99, 100, 101, 102}, result.Retained)
	require.NotContains(t, result.Retained, int64(10000))
}

func TestConsensus_FeedEqualToMedianAlwaysRetained(t *testing.T) {
	feeds := []int64{95, 100, 100, 100, 105}

	// Even an extremely tight divergence bound and k=0 must retain every
	// feed equal to the median, since its distance from the median is 0.
	result := Consensus(feeds, 0, 0)

	count := 0
	for _, x := range result.Retained {
		if x == 100 {
			count++
		}
	}
	require.Equal(t, 3, count)
}

func TestConsensus_OutsideBoundsAlwaysRejected(t *testing.T) {
	feeds := []int64{100, 100, 100, 100, 1_000_000}

	result := Consensus(feeds, 4, 10000)

	require.NotContains(t, result.Retained, int64(1_000_000))
}

func TestConsensus_DivergenceProportionalToMedian(t *testing.T) {
	// A feed 10% away from a large median should be treated identically in
	// relative terms to one 10% away from a small median.
	small := Consensus([]int64{90, 100, 100, 100, 110}, 0, 1000)
	large := Consensus([]int64{9000, 10000, 10000, 10000, 11000}, 0, 1000)

	require.Len(t, small.Retained, 5)
	require.Len(t, large.Retained, 5)
}

func TestScale_KZeroEncodesOneAndHalf(t *testing.T) {
	require.Equal(t, int64(15), scale(0, 10))
	require.Equal(t, int64(20), scale(2, 10))
}
