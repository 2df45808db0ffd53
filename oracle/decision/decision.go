package decision

import "bytes"

// Decide runs the full update/aggregate decision procedure for one tick.
// nowMs must come from the chain context's view of time, not wall clock,
// since it is compared against on-chain timestamps.
func Decide(
	settings OracleSettings,
	feed OracleFeed,
	peers []NodeDatum,
	own NodeDatum,
	newRateScaled int64,
	nowMs int64,
	reward *RewardState,
	rewardTriggerAmount int64,
) Decision {
	if !isAuthorized(settings, own.PubKeyHash) {
		return Decision{Action: ActionIdle, AlertReason: "node public key hash is not authorized in oracle settings"}
	}

	freshPeers := countFreshPeers(peers, settings.UpdatedNodeTimeMs, nowMs)
	quorum := ceilDiv(settings.UpdatedNodesThreshold*int64(len(settings.NodePKHs)), PercentResolution)

	needed := aggregationNeeded(settings, feed, newRateScaled, nowMs)
	ownStale := ownFeedStale(settings, own, nowMs)

	d := decide(needed, ownStale, freshPeers, quorum)

	if reward != nil && rewardTriggerAmount > 0 && reward.UnclaimedLovelace >= rewardTriggerAmount {
		d.CollectRewards = true
	}
	return d
}

// PercentResolution is the fixed-point denominator the on-chain settings
// scale thresholds and divergence bounds against.
const PercentResolution int64 = 10000

func decide(needed, ownStale bool, freshPeers, quorum int64) Decision {
	if !needed {
		if ownStale {
			return Decision{Action: ActionUpdateOnly}
		}
		return Decision{Action: ActionIdle}
	}

	if !ownStale {
		if freshPeers >= quorum {
			return Decision{Action: ActionAggregate}
		}
		return Decision{Action: ActionIdle, AlertReason: "aggregation blocked: quorum not reached"}
	}

	// own feed is stale: aggregating now would also need this node's own
	// update to land, so count self as fresh once it updates.
	if freshPeers+1 >= quorum {
		return Decision{Action: ActionUpdateAndAggregate}
	}
	return Decision{Action: ActionUpdateOnly}
}

func isAuthorized(settings OracleSettings, pkh []byte) bool {
	for _, authorized := range settings.NodePKHs {
		if bytes.Equal(authorized, pkh) {
			return true
		}
	}
	return false
}

func countFreshPeers(peers []NodeDatum, updatedNodeTimeMs, nowMs int64) int64 {
	var count int64
	for _, peer := range peers {
		if peer.Feed == nil {
			continue
		}
		if peer.Feed.TimestampMs+updatedNodeTimeMs >= nowMs {
			count++
		}
	}
	return count
}

func aggregationNeeded(settings OracleSettings, feed OracleFeed, newRateScaled, nowMs int64) bool {
	if nowMs-feed.TimestampMs >= settings.AggregateTimeMs {
		return true
	}
	if feed.ValueScaled == 0 {
		return false
	}
	diff := newRateScaled - feed.ValueScaled
	if diff < 0 {
		diff = -diff
	}
	return diff*PercentResolution/feed.ValueScaled >= settings.AggregateChangeBps
}

func ownFeedStale(settings OracleSettings, own NodeDatum, nowMs int64) bool {
	if own.Feed == nil {
		return true
	}
	return nowMs-own.Feed.TimestampMs >= settings.UpdatedNodeTimeMs
}

// ceilDiv computes ceil(numerator/denominator) for positive denominator.
func ceilDiv(numerator, denominator int64) int64 {
	if denominator == 0 {
		return 0
	}
	if numerator <= 0 {
		return 0
	}
	return (numerator + denominator - 1) / denominator
}
