package store

import (
	"time"

	"oracle-node/oracle/types"
)

// NullStore discards every write; used in tests and for operators who run
// without persistence.
type NullStore struct{}

func (NullStore) RecordRate(pair types.CurrencyPair, quote types.PriceQuote) error { return nil }

func (NullStore) RecordAggregatedRate(rate types.AggregatedRate) error { return nil }

func (NullStore) RecordNodeAggregation(nowMs int64, action string, retainedCount, rejectedCount int) error {
	return nil
}

func (NullStore) RecordTransaction(txHash, kind string, submittedAtMs int64) error { return nil }

func (NullStore) RecordOperationalError(component, message string, atMs int64) error { return nil }

func (NullStore) RecordRewardDistribution(txHash string, lovelace int64, atMs int64) error {
	return nil
}

func (NullStore) Cleanup(olderThan time.Duration) error { return nil }

func (NullStore) Close() error { return nil }
