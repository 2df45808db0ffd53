package provider

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"oracle-node/chain"
	"oracle-node/oracle/types"
)

var _ Adapter = (*DexPoolAdapter)(nil)

// DexPoolAdapter derives a mid-price from on-chain DEX pool reserves. Each
// entry in Sources names a DEX; the adapter fans out across all of them in
// parallel and returns one quote per DEX whose pool resolves cleanly.
type DexPoolAdapter struct {
	endpoints Endpoint
	assetA    chain.AssetID
	assetB    chain.AssetID
	pairType  types.PairType
	pools     chain.PoolReader
	logger    zerolog.Logger
}

// NewDexPoolAdapter builds a DEX-pool adapter bound to one asset pair. pools
// is the capability used to look up pool UTxOs by DEX name; it is satisfied
// by a live chain.Context or a test double.
func NewDexPoolAdapter(
	endpoints Endpoint,
	assetA, assetB chain.AssetID,
	pairType types.PairType,
	pools chain.PoolReader,
	logger zerolog.Logger,
) *DexPoolAdapter {
	endpoints.SetDefaults()
	return &DexPoolAdapter{
		endpoints: endpoints,
		assetA:    assetA,
		assetB:    assetB,
		pairType:  pairType,
		pools:     pools,
		logger:    newLogger(logger, FamilyDexPool),
	}
}

func (a *DexPoolAdapter) Name() Family { return FamilyDexPool }

func (a *DexPoolAdapter) GetRates(ctx context.Context) types.AdapterResponse {
	var (
		mu   sync.Mutex
		resp types.AdapterResponse
		wg   sync.WaitGroup
	)

	for _, dex := range a.endpoints.Sources {
		wg.Add(1)
		go func(dex string) {
			defer wg.Done()

			quote, err := a.fetchOne(ctx, dex)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				resp.Errors = append(resp.Errors, err)
				return
			}
			resp.Quotes = append(resp.Quotes, quote)
		}(dex)
	}
	wg.Wait()

	return resp
}

func (a *DexPoolAdapter) fetchOne(ctx context.Context, dex string) (types.PriceQuote, *types.AdapterError) {
	pool, err := a.pools.FindPool(ctx, dex, a.assetA, a.assetB)
	if err != nil {
		return types.PriceQuote{}, &types.AdapterError{Source: dex, Kind: types.AdapterErrNetwork, Err: err}
	}
	if pool == nil {
		return types.PriceQuote{}, &types.AdapterError{Source: dex, Kind: types.AdapterErrEmptyPool, Err: errNoPool}
	}
	if pool.ReserveA.IsNil() || pool.ReserveB.IsNil() || !pool.ReserveA.IsPositive() || !pool.ReserveB.IsPositive() {
		return types.PriceQuote{}, &types.AdapterError{Source: dex, Kind: types.AdapterErrEmptyPool, Err: errBadReserves}
	}

	// mid-price = reserve_b / reserve_a, taken over the raw on-chain
	// quantities the pool reader returns; no per-asset decimal adjustment
	// is applied.
	price := pool.ReserveB.Quo(pool.ReserveA)

	return types.PriceQuote{
		SourceName:  dex,
		SourceID:    dex + ":" + string(a.assetA) + "/" + string(a.assetB),
		Price:       price,
		TimestampMs: pool.ObservedAtMs,
		PairType:    a.pairType,
		QuoteRequired: a.endpoints.QuoteRequired,
		QuoteCalc:     a.endpoints.QuoteCalc,
	}, nil
}
