package cardano

import (
	"context"

	PlutusData "github.com/Salvionied/apollo/serialization/PlutusData"

	"oracle-node/chain"
)

// dexAddresses maps a configured DEX name to the script address its pool
// UTxOs live at. Populated from config at startup; see config.RateConfig.
var dexAddresses = map[string]string{}

// RegisterDEX records the pool script address for a named DEX, called once
// at startup from the rate config's dex_pool_addresses section.
func RegisterDEX(name, address string) {
	dexAddresses[name] = address
}

func dexPoolAddress(dex string) string {
	return dexAddresses[dex]
}

// findPoolAtAddress is shared by both chain.Context implementations: it
// reads every UTxO at address, keeps the ones holding both assetA and
// assetB, and decodes the first candidate's datum into pool reserves.
func findPoolAtAddress(
	ctx context.Context,
	reader interface {
		UTxOsAt(context.Context, string) ([]chain.UTxO, error)
	},
	address string,
	assetA, assetB chain.AssetID,
) (*chain.Pool, error) {
	if address == "" {
		return nil, nil
	}

	utxos, err := reader.UTxOsAt(ctx, address)
	if err != nil {
		return nil, err
	}

	for _, u := range utxos {
		reserveA, okA := u.Assets[assetA]
		reserveB, okB := u.Assets[assetB]
		if !okA || !okB || reserveA <= 0 || reserveB <= 0 {
			continue
		}
		pool := decodePoolDatum(u)
		pool.DEX = addressToDexName(address)
		pool.AssetA = assetA
		pool.AssetB = assetB
		pool.ReserveA = decFromInt(reserveA)
		pool.ReserveB = decFromInt(reserveB)
		return pool, nil
	}
	return nil, nil
}

func addressToDexName(address string) string {
	for name, addr := range dexAddresses {
		if addr == address {
			return name
		}
	}
	return address
}

// decodePoolDatum extracts reserves and LP supply from a pool UTxO's
// inline datum. Reserves come from the UTxO's own asset amounts (the
// canonical source); the datum is consulted only for the LP token
// circulating supply, checked in priority order across the three field
// name variants DEX pool datums commonly use.
func decodePoolDatum(u chain.UTxO) *chain.Pool {
	pool := &chain.Pool{
		ObservedAtMs: 0,
	}

	if len(u.DatumCBOR) == 0 {
		return pool
	}

	var datum PlutusData.PlutusData
	if err := datum.UnmarshalCBOR(u.DatumCBOR); err != nil {
		return pool
	}

	for _, field := range []string{"lp_tokens", "total_liquidity", "circulation_lp"} {
		if supply, ok := plutusIntField(datum, field); ok && supply > 0 {
			pool.LPSupply = decFromInt(supply)
			break
		}
	}

	return pool
}

// plutusIntField is a best-effort lookup of a named integer field inside a
// constructor-shaped PlutusData value. Pool datum layouts vary by DEX, so
// this degrades to "field absent" rather than erroring when the shape
// doesn't match.
func plutusIntField(datum PlutusData.PlutusData, name string) (int64, bool) {
	if datum.TagNr != 121 && datum.TagNr != 122 {
		return 0, false
	}
	fields, ok := datum.Value.(PlutusData.PlutusIndefArray)
	if !ok {
		return 0, false
	}
	idx, ok := poolDatumFieldIndex[name]
	if !ok || idx >= len(fields) {
		return 0, false
	}
	asInt, ok := fields[idx].Value.(int64)
	if !ok {
		return 0, false
	}
	return asInt, true
}

// poolDatumFieldIndex maps each LP-supply field name to a constructor-field
// index. All three names map to field 2 and nothing replaces this mapping
// at run time, so every DEX's pool datum is read at field 2.
var poolDatumFieldIndex = map[string]int{
	"lp_tokens":       2,
	"total_liquidity": 2,
	"circulation_lp":  2,
}
