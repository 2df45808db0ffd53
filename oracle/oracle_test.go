package oracle

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"oracle-node/chain"
	"oracle-node/oracle/decision"
	"oracle-node/oracle/state"
)

func TestScaleRate_AppliesPriceScale(t *testing.T) {
	got := scaleRate(sdkmath.LegacyMustNewDecFromStr("0.45"), DefaultPrecisionMultiplier)
	require.Equal(t, int64(450_000), got)

	// a sub-unit rate must round up rather than floor to zero.
	tiny := scaleRate(sdkmath.LegacyMustNewDecFromStr("0.0000001"), DefaultPrecisionMultiplier)
	require.Equal(t, int64(1), tiny)
}

func TestDecodePeersAndOwn_IdentifiesOwnByPubKeyHash(t *testing.T) {
	own := []byte("node-a")

	// decodePeersAndOwn delegates datum decoding to state.DecodeNodeDatum,
	// which requires a real CBOR datum, so this test does not call it: it
	// repeats its PubKeyHash string comparison against synthetic NodeDatum
	// values.
	peers := []decision.NodeDatum{
		{PubKeyHash: own, Feed: &decision.NodeFeed{ValueScaled: 100, TimestampMs: 1000}},
		{PubKeyHash: []byte("node-b"), Feed: &decision.NodeFeed{ValueScaled: 101, TimestampMs: 1000}},
	}

	var matched decision.NodeDatum
	for _, p := range peers {
		if string(p.PubKeyHash) == string(own) {
			matched = p
		}
	}
	require.Equal(t, int64(100), matched.Feed.ValueScaled)
}

func TestSelectConsensusPeers_ReturnsOnlyRetainedUTxOs(t *testing.T) {
	s := &Scheduler{}
	snap := state.Snapshot{
		NodeFeeds: []chain.UTxO{
			{TxHash: "a"},
			{TxHash: "b"},
			{TxHash: "c"},
		},
	}
	peers := []decision.NodeDatum{
		{PubKeyHash: []byte("a"), Feed: &decision.NodeFeed{ValueScaled: 100}},
		{PubKeyHash: []byte("b"), Feed: &decision.NodeFeed{ValueScaled: 101}},
		{PubKeyHash: []byte("c"), Feed: &decision.NodeFeed{ValueScaled: 100_000}}, // outlier
	}
	settings := decision.OracleSettings{IQRMultiplier: 0, DivergenceBps: 500}

	selected := s.selectConsensusPeers(snap, peers, settings)

	require.Len(t, selected, 2)
	hashes := []string{selected[0].TxHash, selected[1].TxHash}
	require.ElementsMatch(t, []string{"a", "b"}, hashes)
}

func TestOwnUTxO_ReturnsZeroValueWhenNotFound(t *testing.T) {
	snap := state.Snapshot{}
	got := ownUTxO(snap, []byte("nobody"))
	require.Equal(t, chain.UTxO{}, got)
}
