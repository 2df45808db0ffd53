package provider

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"oracle-node/chain"
	"oracle-node/oracle/types"
)

type mockPoolReader struct {
	pools map[string]*chain.Pool
	err   error
}

func (m mockPoolReader) FindPool(_ context.Context, dex string, _, _ chain.AssetID) (*chain.Pool, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.pools[dex], nil
}

func TestDexPoolAdapter_GetRates(t *testing.T) {
	pools := mockPoolReader{pools: map[string]*chain.Pool{
		"minswap": {
			DEX:          "minswap",
			ReserveA:     sdkmath.LegacyNewDec(100),
			ReserveB:     sdkmath.LegacyNewDec(250),
			ObservedAtMs: 1000,
		},
		"sundaeswap": {
			DEX:      "sundaeswap",
			ReserveA: sdkmath.LegacyZeroDec(),
			ReserveB: sdkmath.LegacyNewDec(10),
		},
	}}

	adapter := NewDexPoolAdapter(
		Endpoint{Sources: []string{"minswap", "sundaeswap", "wingriders"}},
		chain.AssetID("assetA"), chain.AssetID("assetB"),
		types.PairTypeBase,
		pools,
		zerolog.Nop(),
	)

	resp := adapter.GetRates(context.Background())

	require.Len(t, resp.Quotes, 1)
	require.Equal(t, "minswap", resp.Quotes[0].SourceName)
	require.True(t, resp.Quotes[0].Price.Equal(sdkmath.LegacyNewDec(250).Quo(sdkmath.LegacyNewDec(100))))

	require.Len(t, resp.Errors, 2)
}

func TestDexPoolAdapter_EmptySourcesYieldsEmptyNotError(t *testing.T) {
	adapter := NewDexPoolAdapter(
		Endpoint{Sources: nil},
		chain.AssetID("a"), chain.AssetID("b"),
		types.PairTypeBase,
		mockPoolReader{},
		zerolog.Nop(),
	)

	resp := adapter.GetRates(context.Background())
	require.Empty(t, resp.Quotes)
	require.Empty(t, resp.Errors)
}
