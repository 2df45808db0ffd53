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

func TestLPNavAdapter_GetRates(t *testing.T) {
	pools := mockPoolReader{pools: map[string]*chain.Pool{
		"minswap": {
			DEX:          "minswap",
			AssetA:       chain.Lovelace,
			AssetB:       chain.AssetID("lp"),
			ReserveA:     sdkmath.LegacyNewDec(1_000_000_000), // 1000 ADA in lovelace
			LPSupply:     sdkmath.LegacyNewDec(500),
			ObservedAtMs: 42,
		},
	}}

	adapter := NewLPNavAdapter(
		Endpoint{Sources: []string{"minswap"}},
		chain.AssetID("lp"),
		types.PairTypeBase,
		pools,
		zerolog.Nop(),
	)

	resp := adapter.GetRates(context.Background())

	require.Len(t, resp.Quotes, 1)
	// (1000 ADA * 2) / 500 LP = 4 ADA per LP token
	require.True(t, resp.Quotes[0].Price.Equal(sdkmath.LegacyNewDec(4)))
}

func TestLPNavAdapter_NonADAPairedPoolIsUnsupported(t *testing.T) {
	pools := mockPoolReader{pools: map[string]*chain.Pool{
		"minswap": {
			DEX:      "minswap",
			AssetA:   chain.AssetID("tokenX"),
			AssetB:   chain.AssetID("lp"),
			ReserveA: sdkmath.LegacyNewDec(10),
			LPSupply: sdkmath.LegacyNewDec(5),
		},
	}}

	adapter := NewLPNavAdapter(
		Endpoint{Sources: []string{"minswap"}},
		chain.AssetID("lp"),
		types.PairTypeBase,
		pools,
		zerolog.Nop(),
	)

	resp := adapter.GetRates(context.Background())
	require.Empty(t, resp.Quotes)
	require.Len(t, resp.Errors, 1)
	require.Equal(t, types.AdapterErrUnsupported, resp.Errors[0].Kind)
}
