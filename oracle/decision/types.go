// Package decision implements the update/aggregate decision state machine:
// given the current oracle settings, on-chain feed, peer node datums, and a
// freshly computed rate, it decides what this tick's transaction (if any)
// should do.
package decision

// Action is the outcome of one Decide call.
type Action string

const (
	ActionIdle               Action = "idle"
	ActionUpdateOnly         Action = "update_only"
	ActionAggregate          Action = "aggregate"
	ActionUpdateAndAggregate Action = "update_and_aggregate"
)

// Decision is the full result of Decide: the primary action, any alert
// reason for the caller to surface, and whether a reward-collection
// transaction should additionally be serialized after the primary one.
type Decision struct {
	Action         Action
	AlertReason    string
	CollectRewards bool
}

// OracleSettings mirrors the decoded AggState datum fields the decision
// machine reads. Scaled integer fields use the on-chain percent_resolution
// (10000) convention.
type OracleSettings struct {
	NodePKHs             [][]byte
	UpdatedNodesThreshold int64 // scaled by 10000
	UpdatedNodeTimeMs    int64
	AggregateTimeMs      int64
	AggregateChangeBps   int64
	IQRMultiplier        int
	DivergenceBps        int64
}

// OracleFeed mirrors the decoded OracleFeed datum: the last posted
// aggregate value and when it was posted.
type OracleFeed struct {
	ValueScaled int64
	TimestampMs int64
}

// NodeFeed is one node's last-posted own-price observation, as carried
// inside its NodeDatum.
type NodeFeed struct {
	ValueScaled int64
	TimestampMs int64
}

// NodeDatum mirrors a peer or own NodeDatum. Feed is nil if the node has
// never posted.
type NodeDatum struct {
	PubKeyHash []byte
	Feed       *NodeFeed
}

// RewardState mirrors the decoded Reward datum, scoped to one operator's
// unclaimed balance.
type RewardState struct {
	UnclaimedLovelace int64
}
