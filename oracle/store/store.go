// Package store persists rate observations, aggregation outcomes,
// transactions, and operational errors, generalizing the teacher's
// single-table price-history database into the fuller operational record
// this node keeps for audit.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"oracle-node/oracle/types"
)

// RateStore is the capability the scheduler persists tick data through.
// NullStore satisfies it as a no-op for tests and dry runs.
type RateStore interface {
	RecordRate(pair types.CurrencyPair, quote types.PriceQuote) error
	RecordAggregatedRate(rate types.AggregatedRate) error
	RecordNodeAggregation(nowMs int64, action string, retainedCount, rejectedCount int) error
	RecordTransaction(txHash, kind string, submittedAtMs int64) error
	RecordOperationalError(component, message string, atMs int64) error
	RecordRewardDistribution(txHash string, lovelace int64, atMs int64) error
	Cleanup(olderThan time.Duration) error
	Close() error
}

// SQLiteStore is the default RateStore, backed by a local sqlite file, the
// same driver the teacher uses for its price history.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func Open(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store at %s: %w", path, err)
	}
	s := &SQLiteStore{db: db, logger: logger.With().Str("module", "store").Logger()}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rate_data_flow(
			pair TEXT NOT NULL,
			source_name TEXT NOT NULL,
			source_id TEXT NOT NULL,
			price TEXT NOT NULL,
			pair_type TEXT NOT NULL,
			time_ms INT NOT NULL,
			CONSTRAINT id PRIMARY KEY (pair, source_id, time_ms)
		)`,
		`CREATE TABLE IF NOT EXISTS aggregated_rate(
			pair TEXT NOT NULL,
			rate TEXT NOT NULL,
			source_count INT NOT NULL,
			time_ms INT NOT NULL,
			CONSTRAINT id PRIMARY KEY (pair, time_ms)
		)`,
		`CREATE TABLE IF NOT EXISTS node_aggregation(
			time_ms INT NOT NULL,
			action TEXT NOT NULL,
			retained_count INT NOT NULL,
			rejected_count INT NOT NULL,
			CONSTRAINT id PRIMARY KEY (time_ms)
		)`,
		`CREATE TABLE IF NOT EXISTS node_transaction(
			tx_hash TEXT NOT NULL,
			kind TEXT NOT NULL,
			submitted_at_ms INT NOT NULL,
			CONSTRAINT id PRIMARY KEY (tx_hash)
		)`,
		`CREATE TABLE IF NOT EXISTS operational_error(
			component TEXT NOT NULL,
			message TEXT NOT NULL,
			time_ms INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reward_distribution(
			tx_hash TEXT NOT NULL,
			lovelace INT NOT NULL,
			time_ms INT NOT NULL,
			CONSTRAINT id PRIMARY KEY (tx_hash)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create store schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) RecordRate(pair types.CurrencyPair, quote types.PriceQuote) error {
	_, err := s.db.Exec(`INSERT INTO rate_data_flow(pair, source_name, source_id, price, pair_type, time_ms)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM rate_data_flow WHERE pair = ? AND source_id = ? AND time_ms = ?)`,
		pair.String(), quote.SourceName, quote.SourceID, quote.Price.String(), string(quote.PairType), quote.TimestampMs,
		pair.String(), quote.SourceID, quote.TimestampMs,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("pair", pair.String()).Msg("failed to store rate observation")
	}
	return err
}

func (s *SQLiteStore) RecordAggregatedRate(rate types.AggregatedRate) error {
	_, err := s.db.Exec(`INSERT INTO aggregated_rate(pair, rate, source_count, time_ms)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM aggregated_rate WHERE pair = ? AND time_ms = ?)`,
		rate.Pair.String(), rate.Rate.String(), rate.SourceCount, rate.TimestampMs,
		rate.Pair.String(), rate.TimestampMs,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("pair", rate.Pair.String()).Msg("failed to store aggregated rate")
	}
	return err
}

func (s *SQLiteStore) RecordNodeAggregation(nowMs int64, action string, retainedCount, rejectedCount int) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO node_aggregation(time_ms, action, retained_count, rejected_count)
		VALUES(?, ?, ?, ?)`, nowMs, action, retainedCount, rejectedCount)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to store node aggregation outcome")
	}
	return err
}

func (s *SQLiteStore) RecordTransaction(txHash, kind string, submittedAtMs int64) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO node_transaction(tx_hash, kind, submitted_at_ms) VALUES(?, ?, ?)`,
		txHash, kind, submittedAtMs)
	if err != nil {
		s.logger.Error().Err(err).Str("tx_hash", txHash).Msg("failed to store transaction record")
	}
	return err
}

func (s *SQLiteStore) RecordOperationalError(component, message string, atMs int64) error {
	_, err := s.db.Exec(`INSERT INTO operational_error(component, message, time_ms) VALUES(?, ?, ?)`,
		component, message, atMs)
	if err != nil {
		s.logger.Error().Err(err).Str("component", component).Msg("failed to store operational error")
	}
	return err
}

func (s *SQLiteStore) RecordRewardDistribution(txHash string, lovelace int64, atMs int64) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO reward_distribution(tx_hash, lovelace, time_ms) VALUES(?, ?, ?)`,
		txHash, lovelace, atMs)
	if err != nil {
		s.logger.Error().Err(err).Str("tx_hash", txHash).Msg("failed to store reward distribution")
	}
	return err
}

// Cleanup deletes rows older than olderThan from rate_data_flow,
// aggregated_rate, node_aggregation and operational_error, matching the 24h
// retention sweep the node runs for its operational logs. node_transaction
// and reward_distribution rows are not deleted.
func (s *SQLiteStore) Cleanup(olderThan time.Duration) error {
	cutoffMs := time.Now().Add(-olderThan).UnixMilli()
	tables := []string{"rate_data_flow", "aggregated_rate", "node_aggregation", "operational_error"}
	for _, table := range tables {
		if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE time_ms < ?`, table), cutoffMs); err != nil {
			return fmt.Errorf("cleanup %s: %w", table, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// RateHistoryPoint is one row read back from rate_data_flow, shaped for
// the backtest command's TWAP replay.
type RateHistoryPoint struct {
	SourceName string
	Price      string
	TimestampMs int64
}

// QueryRateHistory returns every recorded source observation for pair
// between startMs and endMs (inclusive), ordered by time, the read-side
// counterpart of RecordRate used to replay a window for backtesting.
func (s *SQLiteStore) QueryRateHistory(pair types.CurrencyPair, startMs, endMs int64) ([]RateHistoryPoint, error) {
	rows, err := s.db.Query(`SELECT source_name, price, time_ms FROM rate_data_flow
		WHERE pair = ? AND time_ms >= ? AND time_ms <= ? ORDER BY time_ms ASC`,
		pair.String(), startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("query rate history: %w", err)
	}
	defer rows.Close()

	var points []RateHistoryPoint
	for rows.Next() {
		var p RateHistoryPoint
		if err := rows.Scan(&p.SourceName, &p.Price, &p.TimestampMs); err != nil {
			return nil, fmt.Errorf("scan rate history row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
