package provider

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"oracle-node/chain"
	"oracle-node/oracle/types"
)

var _ Adapter = (*LPNavAdapter)(nil)

// lovelacePerADA is the lovelace-to-ADA scale used when computing NAV per
// LP token from an ADA-paired pool.
const lovelacePerADA = 1_000_000

// lpSupplyFieldPriority lists, in order, the pool-datum field names the
// pool reader checks for the circulating LP token supply (the first
// present, positive value wins). Here it only appears in the error message
// when no supply is found.
var lpSupplyFieldPriority = []string{"lp_tokens", "total_liquidity", "circulation_lp"}

// LPNavAdapter prices an LP token by its net asset value: twice the ADA
// reserve of an ADA-paired pool, divided by the LP token's circulating
// supply. It fails if the pool is not ADA-paired or either quantity it
// needs is non-positive.
type LPNavAdapter struct {
	endpoints Endpoint
	lpAsset   chain.AssetID
	pairType  types.PairType
	pools     chain.PoolReader
	logger    zerolog.Logger
}

func NewLPNavAdapter(
	endpoints Endpoint,
	lpAsset chain.AssetID,
	pairType types.PairType,
	pools chain.PoolReader,
	logger zerolog.Logger,
) *LPNavAdapter {
	endpoints.SetDefaults()
	return &LPNavAdapter{
		endpoints: endpoints,
		lpAsset:   lpAsset,
		pairType:  pairType,
		pools:     pools,
		logger:    newLogger(logger, FamilyLPNav),
	}
}

func (a *LPNavAdapter) Name() Family { return FamilyLPNav }

func (a *LPNavAdapter) GetRates(ctx context.Context) types.AdapterResponse {
	var resp types.AdapterResponse

	for _, dex := range a.endpoints.Sources {
		quote, err := a.fetchOne(ctx, dex)
		if err != nil {
			resp.Errors = append(resp.Errors, err)
			continue
		}
		resp.Quotes = append(resp.Quotes, quote)
	}
	return resp
}

func (a *LPNavAdapter) fetchOne(ctx context.Context, dex string) (types.PriceQuote, *types.AdapterError) {
	pool, err := a.pools.FindPool(ctx, dex, chain.Lovelace, a.lpAsset)
	if err != nil {
		return types.PriceQuote{}, &types.AdapterError{Source: dex, Kind: types.AdapterErrNetwork, Err: err}
	}
	if pool == nil {
		return types.PriceQuote{}, &types.AdapterError{Source: dex, Kind: types.AdapterErrEmptyPool, Err: errNoPool}
	}
	if pool.AssetA != chain.Lovelace && pool.AssetB != chain.Lovelace {
		return types.PriceQuote{}, &types.AdapterError{Source: dex, Kind: types.AdapterErrUnsupported, Err: fmt.Errorf("pool is not ADA-paired")}
	}

	adaReserve := pool.ReserveA
	if pool.AssetA != chain.Lovelace {
		adaReserve = pool.ReserveB
	}

	lpSupply := pool.LPSupply
	if lpSupply.IsNil() || !lpSupply.IsPositive() {
		return types.PriceQuote{}, &types.AdapterError{Source: dex, Kind: types.AdapterErrEmptyPool, Err: fmt.Errorf("no positive LP supply found in %v", lpSupplyFieldPriority)}
	}
	if adaReserve.IsNil() || !adaReserve.IsPositive() {
		return types.PriceQuote{}, &types.AdapterError{Source: dex, Kind: types.AdapterErrEmptyPool, Err: errBadReserves}
	}

	two := sdkmath.LegacyNewDec(2)
	lovelaceScale := sdkmath.LegacyNewDec(lovelacePerADA)

	priceADA := adaReserve.Mul(two).Quo(lpSupply).Quo(lovelaceScale)

	return types.PriceQuote{
		SourceName:  dex,
		SourceID:    dex + ":" + string(a.lpAsset),
		Price:       priceADA,
		TimestampMs: pool.ObservedAtMs,
		PairType:    a.pairType,
		QuoteRequired: a.endpoints.QuoteRequired,
		QuoteCalc:     a.endpoints.QuoteCalc,
	}, nil
}
