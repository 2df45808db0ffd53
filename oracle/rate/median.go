package rate

import (
	"sort"

	sdkmath "cosmossdk.io/math"
)

// Median returns the deterministic median of values: for an odd-length
// input the single center, for an even-length input the lower of the two
// central elements. This is the convention the on-chain consensus script
// uses, and it is what the consensus engine and decision machine must
// agree with bit-for-bit.
//
// values is not mutated; a sorted copy is used internally.
func Median(values []sdkmath.LegacyDec) sdkmath.LegacyDec {
	if len(values) == 0 {
		return sdkmath.LegacyDec{}
	}

	sorted := sortedCopy(values)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1]
}

// StatisticalMedian is the per-cycle local aggregation convention: for an
// even-length input it is also the lower of the two central elements, the
// same result as Median. No random tie-break between the two centers is
// implemented, so the aggregate price can be replayed and audited; Median
// and StatisticalMedian are kept as distinct named functions so each call
// site names the convention it relies on.
func StatisticalMedian(values []sdkmath.LegacyDec) sdkmath.LegacyDec {
	return Median(values)
}

func sortedCopy(values []sdkmath.LegacyDec) []sdkmath.LegacyDec {
	sorted := make([]sdkmath.LegacyDec, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LT(sorted[j])
	})
	return sorted
}
