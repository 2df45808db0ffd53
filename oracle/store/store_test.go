package store

import (
	"os"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"oracle-node/oracle/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "store-*.db")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s, err := Open(f.Name(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_RecordRateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	pair := types.CurrencyPair{Base: "ADA", Quote: "USD"}
	quote := types.PriceQuote{
		SourceName:  "kraken",
		SourceID:    "ADAUSD",
		Price:       sdkmath.LegacyMustNewDecFromStr("0.45"),
		TimestampMs: 1000,
		PairType:    types.PairTypeBase,
	}

	require.NoError(t, s.RecordRate(pair, quote))
	require.NoError(t, s.RecordRate(pair, quote))

	var count int
	row := s.db.QueryRow(`SELECT COUNT(*) FROM rate_data_flow WHERE pair = ? AND source_id = ?`, pair.String(), quote.SourceID)
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 1, count)
}

func TestSQLiteStore_RecordAggregatedRate(t *testing.T) {
	s := newTestStore(t)
	rate := types.AggregatedRate{
		Pair:        types.CurrencyPair{Base: "ADA", Quote: "USD"},
		Rate:        sdkmath.LegacyMustNewDecFromStr("0.46"),
		SourceCount: 3,
		TimestampMs: 2000,
	}

	require.NoError(t, s.RecordAggregatedRate(rate))

	var sourceCount int
	row := s.db.QueryRow(`SELECT source_count FROM aggregated_rate WHERE pair = ? AND time_ms = ?`, rate.Pair.String(), rate.TimestampMs)
	require.NoError(t, row.Scan(&sourceCount))
	require.Equal(t, 3, sourceCount)
}

func TestSQLiteStore_Cleanup(t *testing.T) {
	s := newTestStore(t)
	old := types.AggregatedRate{Pair: types.CurrencyPair{Base: "ADA", Quote: "USD"}, Rate: sdkmath.LegacyOneDec(), SourceCount: 1, TimestampMs: time.Now().Add(-48 * time.Hour).UnixMilli()}
	fresh := types.AggregatedRate{Pair: types.CurrencyPair{Base: "ADA", Quote: "USD"}, Rate: sdkmath.LegacyOneDec(), SourceCount: 1, TimestampMs: time.Now().UnixMilli()}
	require.NoError(t, s.RecordAggregatedRate(old))
	require.NoError(t, s.RecordAggregatedRate(fresh))

	require.NoError(t, s.Cleanup(24*time.Hour))

	var count int
	row := s.db.QueryRow(`SELECT COUNT(*) FROM aggregated_rate`)
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 1, count)
}

func TestNullStore_DiscardsWrites(t *testing.T) {
	var s RateStore = NullStore{}
	require.NoError(t, s.RecordRate(types.CurrencyPair{}, types.PriceQuote{}))
	require.NoError(t, s.RecordAggregatedRate(types.AggregatedRate{}))
	require.NoError(t, s.Close())
}
