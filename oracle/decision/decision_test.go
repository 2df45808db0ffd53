package decision

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func baseSettings() OracleSettings {
	return OracleSettings{
		NodePKHs:              [][]byte{{0x01}, {0x02}, {0x03}, {0x04}},
		UpdatedNodesThreshold: 5000, // 50%
		UpdatedNodeTimeMs:     60_000,
		AggregateTimeMs:       600_000,
		AggregateChangeBps:    100,
	}
}

func TestDecide_UnauthorizedNodeIsIdle(t *testing.T) {
	d := Decide(baseSettings(), OracleFeed{ValueScaled: 100, TimestampMs: 0}, nil,
		NodeDatum{PubKeyHash: []byte{0xff}}, 100, 1000, nil, 0)

	require.Equal(t, ActionIdle, d.Action)
	require.NotEmpty(t, d.AlertReason)
}

func TestDecide_NoAggregationNeededOwnFeedFreshIsIdle(t *testing.T) {
	now := int64(1_000_000)
	d := Decide(baseSettings(), OracleFeed{ValueScaled: 100, TimestampMs: now - 1000}, nil,
		NodeDatum{PubKeyHash: []byte{0x01}, Feed: &NodeFeed{ValueScaled: 100, TimestampMs: now - 1000}},
		100, now, nil, 0)

	require.Equal(t, ActionIdle, d.Action)
}

func TestDecide_NoAggregationNeededOwnFeedStaleIsUpdateOnly(t *testing.T) {
	now := int64(1_000_000)
	d := Decide(baseSettings(), OracleFeed{ValueScaled: 100, TimestampMs: now - 1000}, nil,
		NodeDatum{PubKeyHash: []byte{0x01}, Feed: nil},
		100, now, nil, 0)

	require.Equal(t, ActionUpdateOnly, d.Action)
}

func TestDecide_AggregationNeededQuorumReachedOwnFreshIsAggregate(t *testing.T) {
	now := int64(1_000_000)
	settings := baseSettings()
	peers := []NodeDatum{
		{PubKeyHash: []byte{0x02}, Feed: &NodeFeed{TimestampMs: now - 1000}},
		{PubKeyHash: []byte{0x03}, Feed: &NodeFeed{TimestampMs: now - 1000}},
	}
	own := NodeDatum{PubKeyHash: []byte{0x01}, Feed: &NodeFeed{TimestampMs: now - 1000}}

	// periodic trigger: feed far in the past
	d := Decide(settings, OracleFeed{ValueScaled: 100, TimestampMs: 0}, peers, own, 100, now, nil, 0)

	require.Equal(t, ActionAggregate, d.Action)
}

func TestDecide_AggregationNeededQuorumOnlyWithSelfIsUpdateAndAggregate(t *testing.T) {
	now := int64(1_000_000)
	settings := baseSettings()
	peers := []NodeDatum{
		{PubKeyHash: []byte{0x02}, Feed: &NodeFeed{TimestampMs: now - 1000}},
	}
	own := NodeDatum{PubKeyHash: []byte{0x01}, Feed: nil} // stale: never posted

	d := Decide(settings, OracleFeed{ValueScaled: 100, TimestampMs: 0}, peers, own, 100, now, nil, 0)

	require.Equal(t, ActionUpdateAndAggregate, d.Action)
}

func TestDecide_AggregationNeededQuorumUnreachableEvenWithSelfIsUpdateOnly(t *testing.T) {
	now := int64(1_000_000)
	settings := baseSettings()
	own := NodeDatum{PubKeyHash: []byte{0x01}, Feed: nil}

	// no fresh peers at all, quorum needs 2 of 4
	d := Decide(settings, OracleFeed{ValueScaled: 100, TimestampMs: 0}, nil, own, 100, now, nil, 0)

	require.Equal(t, ActionUpdateOnly, d.Action)
}

func TestDecide_AggregationNeededQuorumUnreachableOwnFreshIsIdleWithAlert(t *testing.T) {
	now := int64(1_000_000)
	settings := baseSettings()
	own := NodeDatum{PubKeyHash: []byte{0x01}, Feed: &NodeFeed{TimestampMs: now - 1000}}

	d := Decide(settings, OracleFeed{ValueScaled: 100, TimestampMs: 0}, nil, own, 100, now, nil, 0)

	require.Equal(t, ActionIdle, d.Action)
	require.NotEmpty(t, d.AlertReason)
}

func TestDecide_ChangeTriggeredAggregation(t *testing.T) {
	now := int64(1_000_000)
	settings := baseSettings()
	settings.AggregateTimeMs = 1_000_000_000 // periodic trigger far off
	peers := []NodeDatum{
		{PubKeyHash: []byte{0x02}, Feed: &NodeFeed{TimestampMs: now - 1000}},
		{PubKeyHash: []byte{0x03}, Feed: &NodeFeed{TimestampMs: now - 1000}},
	}
	own := NodeDatum{PubKeyHash: []byte{0x01}, Feed: &NodeFeed{TimestampMs: now - 1000}}

	// rate moved by 100% against a change threshold of 1%
	d := Decide(settings, OracleFeed{ValueScaled: 100, TimestampMs: now - 1000}, peers, own, 200, now, nil, 0)

	require.Equal(t, ActionAggregate, d.Action)
}

func TestDecide_CollectRewardsAppendsToPrimaryDecision(t *testing.T) {
	now := int64(1_000_000)
	settings := baseSettings()
	own := NodeDatum{PubKeyHash: []byte{0x01}, Feed: &NodeFeed{TimestampMs: now - 1000}}

	d := Decide(settings, OracleFeed{ValueScaled: 100, TimestampMs: now - 1000}, nil, own, 100, now,
		&RewardState{UnclaimedLovelace: 5_000_000}, 1_000_000)

	require.Equal(t, ActionIdle, d.Action)
	require.True(t, d.CollectRewards)
}
