package types

import "strings"

// PairType distinguishes whether a quote belongs to a base-adapter fetch or
// a quote-adapter fetch used to cross-compose a base/quote rate.
type PairType string

const (
	PairTypeBase  PairType = "base"
	PairTypeQuote PairType = "quote"
)

// QuoteCalcMethod describes how a base price is combined with a quote rate
// when an adapter declares quote_required=true.
type QuoteCalcMethod string

const (
	QuoteCalcMultiply QuoteCalcMethod = "multiply"
	QuoteCalcDivide   QuoteCalcMethod = "divide"
)

// CurrencyPair defines a currency exchange pair consisting of a base and a
// quote asset. We primarily use the base for posting the on-chain oracle
// feed and the pair for querying a price from an upstream source.
type CurrencyPair struct {
	Base  string
	Quote string
}

// String implements the Stringer interface and defines a ticker symbol for
// querying the exchange rate.
func (cp CurrencyPair) String() string {
	return strings.ToUpper(cp.Base + cp.Quote)
}

// Join returns the base and quote denoms separated by the provided string.
func (cp CurrencyPair) Join(separator string) string {
	return strings.ToUpper(cp.Base + separator + cp.Quote)
}

// Swap returns a CurrencyPair with base and quote swapped.
func (cp CurrencyPair) Swap() CurrencyPair {
	return CurrencyPair{Base: cp.Quote, Quote: cp.Base}
}
