package state

import (
	"fmt"

	PlutusData "github.com/Salvionied/apollo/serialization/PlutusData"

	"oracle-node/chain"
	"oracle-node/oracle/decision"
)

// Field indices below follow the AggState/OracleFeed/NodeDatum/Reward
// constructor layouts as emitted by the oracle's plutus contracts; they are
// intentionally named constants rather than magic numbers so a schema
// change is a one-line fix.
const (
	aggFieldNodePKHs               = 0
	aggFieldUpdatedNodesThreshold  = 1
	aggFieldUpdatedNodeTimeMs      = 2
	aggFieldAggregateTimeMs        = 3
	aggFieldAggregateChangeBps     = 4
	aggFieldIQRMultiplier          = 5
	aggFieldDivergenceBps          = 6

	feedFieldValue     = 0
	feedFieldTimestamp = 1

	nodeFieldPKH       = 0
	nodeFieldFeedValue = 1
	nodeFieldFeedTime  = 2

	rewardFieldUnclaimed = 0
)

func DecodeAggState(u chain.UTxO) (decision.OracleSettings, error) {
	datum, err := unmarshalDatum(u)
	if err != nil {
		return decision.OracleSettings{}, err
	}

	pkhs, err := plutusBytesListField(datum, aggFieldNodePKHs)
	if err != nil {
		return decision.OracleSettings{}, fmt.Errorf("decode agg state node_pkhs: %w", err)
	}

	settings := decision.OracleSettings{
		NodePKHs:              pkhs,
		UpdatedNodesThreshold:  mustPlutusInt(datum, aggFieldUpdatedNodesThreshold),
		UpdatedNodeTimeMs:      mustPlutusInt(datum, aggFieldUpdatedNodeTimeMs),
		AggregateTimeMs:        mustPlutusInt(datum, aggFieldAggregateTimeMs),
		AggregateChangeBps:     mustPlutusInt(datum, aggFieldAggregateChangeBps),
		IQRMultiplier:          int(mustPlutusInt(datum, aggFieldIQRMultiplier)),
		DivergenceBps:          mustPlutusInt(datum, aggFieldDivergenceBps),
	}
	return settings, nil
}

func DecodeOracleFeed(u chain.UTxO) (decision.OracleFeed, error) {
	datum, err := unmarshalDatum(u)
	if err != nil {
		return decision.OracleFeed{}, err
	}
	return decision.OracleFeed{
		ValueScaled: mustPlutusInt(datum, feedFieldValue),
		TimestampMs: mustPlutusInt(datum, feedFieldTimestamp),
	}, nil
}

func DecodeReward(u chain.UTxO) (decision.RewardState, error) {
	datum, err := unmarshalDatum(u)
	if err != nil {
		return decision.RewardState{}, err
	}
	return decision.RewardState{UnclaimedLovelace: mustPlutusInt(datum, rewardFieldUnclaimed)}, nil
}

func DecodeNodeDatum(u chain.UTxO) (decision.NodeDatum, error) {
	datum, err := unmarshalDatum(u)
	if err != nil {
		return decision.NodeDatum{}, err
	}

	pkh, err := plutusBytesField(datum, nodeFieldPKH)
	if err != nil {
		return decision.NodeDatum{}, fmt.Errorf("decode node datum pkh: %w", err)
	}

	nd := decision.NodeDatum{PubKeyHash: pkh}

	if ts := mustPlutusInt(datum, nodeFieldFeedTime); ts > 0 {
		nd.Feed = &decision.NodeFeed{
			ValueScaled: mustPlutusInt(datum, nodeFieldFeedValue),
			TimestampMs: ts,
		}
	}
	return nd, nil
}

func unmarshalDatum(u chain.UTxO) (PlutusData.PlutusData, error) {
	var datum PlutusData.PlutusData
	if len(u.DatumCBOR) == 0 {
		return datum, fmt.Errorf("utxo %s#%d has no inline datum", u.TxHash, u.Index)
	}
	if err := datum.UnmarshalCBOR(u.DatumCBOR); err != nil {
		return datum, fmt.Errorf("decode datum for %s#%d: %w", u.TxHash, u.Index, err)
	}
	return datum, nil
}

func constructorFields(datum PlutusData.PlutusData) (PlutusData.PlutusIndefArray, bool) {
	fields, ok := datum.Value.(PlutusData.PlutusIndefArray)
	return fields, ok
}

func mustPlutusInt(datum PlutusData.PlutusData, idx int) int64 {
	fields, ok := constructorFields(datum)
	if !ok || idx >= len(fields) {
		return 0
	}
	v, _ := fields[idx].Value.(int64)
	return v
}

func plutusBytesField(datum PlutusData.PlutusData, idx int) ([]byte, error) {
	fields, ok := constructorFields(datum)
	if !ok || idx >= len(fields) {
		return nil, fmt.Errorf("field %d not present", idx)
	}
	b, ok := fields[idx].Value.([]byte)
	if !ok {
		return nil, fmt.Errorf("field %d is not a byte string", idx)
	}
	return b, nil
}

func plutusBytesListField(datum PlutusData.PlutusData, idx int) ([][]byte, error) {
	fields, ok := constructorFields(datum)
	if !ok || idx >= len(fields) {
		return nil, fmt.Errorf("field %d not present", idx)
	}
	list, ok := fields[idx].Value.(PlutusData.PlutusIndefArray)
	if !ok {
		return nil, fmt.Errorf("field %d is not a list", idx)
	}
	out := make([][]byte, 0, len(list))
	for _, item := range list {
		b, ok := item.Value.([]byte)
		if !ok {
			return nil, fmt.Errorf("field %d: list element is not a byte string", idx)
		}
		out = append(out, b)
	}
	return out, nil
}
