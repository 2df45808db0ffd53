package types

import (
	sdkmath "cosmossdk.io/math"
)

// AggregatedRate is the outcome of combining retained PriceQuotes for a
// single CurrencyPair into one number ready for consensus comparison and,
// eventually, on-chain scaling.
type AggregatedRate struct {
	Pair        CurrencyPair
	Rate        sdkmath.LegacyDec
	SourceCount int        // number of sources that contributed, pre-outlier-rejection
	TimestampMs int64
}

// Valid mirrors PriceQuote.Valid: a zero-value AggregatedRate is never
// usable downstream.
func (r AggregatedRate) Valid() bool {
	return !r.Rate.IsNil() && r.Rate.IsPositive() && r.SourceCount > 0
}
