package chain

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// AssetID identifies a Cardano native asset as "policyID.assetNameHex", or
// the literal string "lovelace" for ADA itself.
type AssetID string

const Lovelace AssetID = "lovelace"

// Pool is a snapshot of one DEX liquidity pool's reserves, as read from
// its UTxO at query time. Reserves are the raw on-chain quantities; they
// are not adjusted for either asset's decimals.
type Pool struct {
	DEX          string
	AssetA       AssetID
	AssetB       AssetID
	ReserveA     sdkmath.LegacyDec
	ReserveB     sdkmath.LegacyDec
	LPSupply     sdkmath.LegacyDec
	ObservedAtMs int64
}

// PoolReader is the capability the DEX-pool and LP-token NAV adapters use to
// locate and read a pool's reserves. Implementations resolve "DEX name" to
// a script address or policy ID internally.
type PoolReader interface {
	// FindPool returns the pool whose reserves contain both assetA and
	// assetB on the named DEX. A nil, nil return means no such pool exists;
	// this is not treated as an error by callers.
	FindPool(ctx context.Context, dex string, assetA, assetB AssetID) (*Pool, error)
}
