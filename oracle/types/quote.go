package types

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// PriceQuote is one reading from one upstream source.
type PriceQuote struct {
	SourceName string          // human readable name, e.g. "minswap"
	SourceID   string          // stable identifier into persistence
	Price      sdkmath.LegacyDec
	TimestampMs int64
	Bid        sdkmath.LegacyDec // optional, nil-able via IsNil()
	Ask        sdkmath.LegacyDec
	Volume     sdkmath.LegacyDec
	PairType   PairType
	Raw        []byte // raw payload, kept for audit only

	// QuoteRequired and QuoteCalc are stamped on by the adapter that
	// produced this quote, from its own config, since cross-rate
	// composition is a per-adapter policy rather than something the
	// aggregator can infer from the quote alone.
	QuoteRequired bool
	QuoteCalc     QuoteCalcMethod
}

// Valid reports whether the quote carries a usable, positive, finite price.
func (q PriceQuote) Valid() bool {
	return !q.Price.IsNil() && q.Price.IsPositive()
}

// AdapterErrorKind classifies why a single source failed within an adapter.
type AdapterErrorKind string

const (
	AdapterErrNetwork       AdapterErrorKind = "network"
	AdapterErrDecode        AdapterErrorKind = "decode"
	AdapterErrEmptyPool     AdapterErrorKind = "empty_pool"
	AdapterErrUnsupported   AdapterErrorKind = "unsupported_pair"
)

// AdapterError is a typed, source-scoped error. Adapters never return this
// from GetRates as a batch failure -- it is recorded per source and the
// source is simply dropped from the result.
type AdapterError struct {
	Source string
	Kind   AdapterErrorKind
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// AdapterResponse is the result of one adapter invocation: the union of
// quotes that succeeded, plus the per-source errors for audit. A batch is
// never failed outright by a single source error -- an empty Quotes slice
// with a non-empty Errors slice is a normal, valid response.
type AdapterResponse struct {
	Quotes []PriceQuote
	Errors []*AdapterError
}

func NewTimestampMs(t time.Time) int64 {
	return t.UnixMilli()
}
