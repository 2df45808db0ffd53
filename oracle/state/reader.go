// Package state implements the oracle state reader: given a batch of
// on-chain UTxOs at the oracle address, it identifies the four
// distinguished UTxOs by NFT tag and decodes their datums.
package state

import (
	"context"
	"fmt"

	"oracle-node/chain"
)

// NFTTags names the four policy-plus-asset-name tuples that distinguish
// the oracle's singleton and per-node UTxOs. NodeFeed is a name prefix:
// every per-node UTxO's asset name starts with it, suffixed by the node's
// own identifier.
type NFTTags struct {
	OracleFeed chain.AssetID
	AggState   chain.AssetID
	Reward     chain.AssetID
	NodeFeed   chain.AssetID // prefix; matched via HasAssetWithPrefix
}

// Snapshot is the decoded result of one state read: the oracle's three
// singleton UTxOs plus every per-node UTxO found.
type Snapshot struct {
	OracleFeed chain.UTxO
	AggState   chain.UTxO
	Reward     chain.UTxO
	NodeFeeds  []chain.UTxO
}

// ErrMissingSingleton is returned when one of the three required
// singleton UTxOs could not be located; the caller treats this as a soft
// failure: log, no transaction, alert supervisor notified.
type ErrMissingSingleton struct {
	Which string
}

func (e ErrMissingSingleton) Error() string {
	return fmt.Sprintf("oracle state: missing required %s utxo at oracle address", e.Which)
}

// Read fetches every UTxO at address and classifies them by NFT tag.
func Read(ctx context.Context, ctxChain interface {
	UTxOsAt(context.Context, string) ([]chain.UTxO, error)
}, address string, tags NFTTags) (Snapshot, error) {
	utxos, err := ctxChain.UTxOsAt(ctx, address)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading utxos at oracle address: %w", err)
	}

	var snap Snapshot
	var haveFeed, haveAgg, haveReward bool

	for _, u := range utxos {
		switch {
		case u.HasAsset(tags.OracleFeed, 1):
			snap.OracleFeed = u
			haveFeed = true
		case u.HasAsset(tags.AggState, 1):
			snap.AggState = u
			haveAgg = true
		case u.HasAsset(tags.Reward, 1):
			snap.Reward = u
			haveReward = true
		case hasAssetWithPrefix(u, tags.NodeFeed):
			snap.NodeFeeds = append(snap.NodeFeeds, u)
		}
	}

	if !haveFeed {
		return snap, ErrMissingSingleton{Which: "OracleFeed"}
	}
	if !haveAgg {
		return snap, ErrMissingSingleton{Which: "AggState"}
	}
	if !haveReward {
		return snap, ErrMissingSingleton{Which: "Reward"}
	}
	return snap, nil
}

func hasAssetWithPrefix(u chain.UTxO, prefix chain.AssetID) bool {
	if prefix == "" {
		return false
	}
	for id, amount := range u.Assets {
		if amount < 1 {
			continue
		}
		if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
