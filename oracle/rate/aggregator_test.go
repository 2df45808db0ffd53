package rate

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"oracle-node/oracle/provider"
	"oracle-node/oracle/types"
)

type mockAdapter struct {
	family provider.Family
	resp   types.AdapterResponse
}

func (m mockAdapter) Name() provider.Family { return m.family }
func (m mockAdapter) GetRates(_ context.Context) types.AdapterResponse { return m.resp }

func TestGetAggregatedRate_SimpleMedian(t *testing.T) {
	base := mockAdapter{resp: types.AdapterResponse{Quotes: []types.PriceQuote{
		{SourceName: "a", Price: sdkmath.LegacyNewDec(100)},
		{SourceName: "b", Price: sdkmath.LegacyNewDec(101)},
		{SourceName: "c", Price: sdkmath.LegacyNewDec(102)},
	}}}

	rate, prov := GetAggregatedRate(context.Background(), types.CurrencyPair{Base: "ADA", Quote: "USD"}, []provider.Adapter{base}, nil)

	require.NotNil(t, rate)
	require.True(t, rate.Rate.Equal(sdkmath.LegacyNewDec(101)))
	require.Equal(t, 3, rate.SourceCount)
	require.Empty(t, prov.Errors)
}

func TestGetAggregatedRate_QuoteRequiredCrossRate(t *testing.T) {
	base := mockAdapter{resp: types.AdapterResponse{Quotes: []types.PriceQuote{
		{SourceName: "a", Price: sdkmath.LegacyNewDecWithPrec(5, 1), QuoteRequired: true, QuoteCalc: types.QuoteCalcMultiply},
	}}}
	quote := mockAdapter{resp: types.AdapterResponse{Quotes: []types.PriceQuote{
		{SourceName: "q", Price: sdkmath.LegacyNewDec(2)},
	}}}

	rate, _ := GetAggregatedRate(context.Background(), types.CurrencyPair{Base: "X", Quote: "Y"}, []provider.Adapter{base}, []provider.Adapter{quote})

	require.NotNil(t, rate)
	require.True(t, rate.Rate.Equal(sdkmath.LegacyNewDec(1)))
}

func TestGetAggregatedRate_QuoteRequiredWithNoQuoteRateKeepsProvenance(t *testing.T) {
	base := mockAdapter{resp: types.AdapterResponse{Quotes: []types.PriceQuote{
		{SourceName: "a", Price: sdkmath.LegacyNewDec(5), QuoteRequired: true},
	}}}
	quote := mockAdapter{resp: types.AdapterResponse{}} // zero quotes

	rate, prov := GetAggregatedRate(context.Background(), types.CurrencyPair{Base: "X", Quote: "Y"}, []provider.Adapter{base}, []provider.Adapter{quote})

	require.Nil(t, rate)
	require.Len(t, prov.BaseQuotes, 1) // recorded for audit even though no rate is produced
}

func TestGetAggregatedRate_QuoteRequiredWithNoQuoteRateFailsWholeTick(t *testing.T) {
	base := mockAdapter{resp: types.AdapterResponse{Quotes: []types.PriceQuote{
		{SourceName: "a", Price: sdkmath.LegacyNewDec(100)},
		{SourceName: "b", Price: sdkmath.LegacyNewDec(5), QuoteRequired: true},
	}}}
	quote := mockAdapter{resp: types.AdapterResponse{}} // zero quotes

	rate, prov := GetAggregatedRate(context.Background(), types.CurrencyPair{Base: "X", Quote: "Y"}, []provider.Adapter{base}, []provider.Adapter{quote})

	require.Nil(t, rate)
	require.Len(t, prov.BaseQuotes, 2) // both recorded for audit even though the tick failed
}

func TestGetAggregatedRate_NoValidPricesReturnsNil(t *testing.T) {
	base := mockAdapter{resp: types.AdapterResponse{}}

	rate, prov := GetAggregatedRate(context.Background(), types.CurrencyPair{Base: "X", Quote: "Y"}, []provider.Adapter{base}, nil)

	require.Nil(t, rate)
	require.Empty(t, prov.Errors)
}
