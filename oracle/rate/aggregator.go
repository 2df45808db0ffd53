package rate

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	"oracle-node/oracle/provider"
	"oracle-node/oracle/types"
)

// Provenance records what happened during one GetAggregatedRate call,
// independent of whether it ultimately succeeded, so a failed tick can
// still be logged and persisted for audit.
type Provenance struct {
	QuoteQuotes []types.PriceQuote
	BaseQuotes  []types.PriceQuote
	Errors      []*types.AdapterError
}

// GetAggregatedRate is the rate aggregator's single public operation. It
// first resolves an optional quote-side rate, then fans out across the
// base adapters, crossing any quote_required quote against it, and returns
// the median of all valid base prices.
//
// A nil result with non-empty Provenance means the tick should fail: either
// the quote side produced zero quotes while some base adapter requires it,
// or the base side produced zero valid prices.
func GetAggregatedRate(
	ctx context.Context,
	pair types.CurrencyPair,
	baseAdapters []provider.Adapter,
	quoteAdapters []provider.Adapter,
) (*types.AggregatedRate, Provenance) {
	var prov Provenance

	var quoteRate sdkmath.LegacyDec
	haveQuoteRate := false

	if len(quoteAdapters) > 0 {
		quoteQuotes, quoteErrs := getRateFromProviders(ctx, quoteAdapters)
		prov.QuoteQuotes = quoteQuotes
		prov.Errors = append(prov.Errors, quoteErrs...)

		if len(quoteQuotes) > 0 {
			prices := make([]sdkmath.LegacyDec, len(quoteQuotes))
			for i, q := range quoteQuotes {
				prices[i] = q.Price
			}
			quoteRate = StatisticalMedian(prices)
			haveQuoteRate = true
		}
	}

	baseQuotes, baseErrs := getRateFromProviders(ctx, baseAdapters)
	prov.BaseQuotes = baseQuotes
	prov.Errors = append(prov.Errors, baseErrs...)

	if !haveQuoteRate {
		for _, q := range baseQuotes {
			if q.QuoteRequired {
				// a quote_required base quote with no quote rate to cross
				// against invalidates the whole tick, not just this source.
				return nil, prov
			}
		}
	}

	valid := make([]sdkmath.LegacyDec, 0, len(baseQuotes))
	contributing := make([]types.PriceQuote, 0, len(baseQuotes))

	for _, q := range baseQuotes {
		price := q.Price
		if q.QuoteRequired {
			price = crossRate(price, quoteRate, q.QuoteCalc)
		}
		if price.IsNil() || !price.IsPositive() {
			continue
		}
		valid = append(valid, price)
		contributing = append(contributing, q)
	}

	if len(valid) == 0 {
		return nil, prov
	}

	now := time.Now().UnixMilli()
	return &types.AggregatedRate{
		Pair:        pair,
		Rate:        StatisticalMedian(valid),
		SourceCount: len(contributing),
		TimestampMs: now,
	}, prov
}

// getRateFromProviders fans out sequentially across adapters -- adapters
// have no cross-dependencies, so ordering does not matter -- and flattens
// their quotes and errors.
func getRateFromProviders(ctx context.Context, adapters []provider.Adapter) ([]types.PriceQuote, []*types.AdapterError) {
	var quotes []types.PriceQuote
	var errs []*types.AdapterError

	for _, a := range adapters {
		resp := a.GetRates(ctx)
		quotes = append(quotes, resp.Quotes...)
		errs = append(errs, resp.Errors...)
	}
	return quotes, errs
}

func crossRate(base, quote sdkmath.LegacyDec, method types.QuoteCalcMethod) sdkmath.LegacyDec {
	if quote.IsNil() || !quote.IsPositive() {
		return sdkmath.LegacyDec{}
	}
	switch method {
	case types.QuoteCalcDivide:
		return base.Quo(quote)
	default:
		return base.Mul(quote)
	}
}
