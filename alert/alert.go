// Package alert implements the node's alert supervisor: threshold and
// liveness checks evaluated after every tick, each category cooled down
// independently, fanned out to every configured transport.
package alert

import (
	"context"
	"fmt"
	"sync"

	"github.com/armon/go-metrics"
	"github.com/rs/zerolog"
)

// Category names one of the conditions the supervisor tracks; it is also
// the cooldown key.
type Category string

const (
	CategoryLowNativeBalance    Category = "low_native_balance"
	CategoryLowFeeTokenBalance  Category = "low_fee_token_balance"
	CategoryAggregationLiveness Category = "aggregation_liveness"
	CategoryNodeUpdateLiveness  Category = "node_update_liveness"
	CategoryMinDataSources      Category = "min_data_sources"
	CategoryRewardCollection    Category = "reward_collection"
)

// Event is one fired alert, handed to every transport.
type Event struct {
	Category  Category
	Message   string
	Severity  string // "warning" or "critical"
	FiredAtMs int64
}

// Transport delivers a fired Event somewhere: a webhook, a healthcheck
// ping, a log sink. A transport failure never blocks or fails other
// transports.
type Transport interface {
	Name() string
	Send(ctx context.Context, e Event) error
}

// Thresholds mirrors the user-overridable defaults described for the
// supervisor; zero values fall back to the package defaults applied by
// NewSupervisor.
type Thresholds struct {
	LowNativeBalanceLovelace int64
	LowFeeTokenBalance       int64
	TimeoutVariancePct       int64 // default 105
	MinDataSources           int   // default 3
	MinDataSourcesEnabled    bool
	CooldownMs               int64 // default 1_800_000 (30 min)
}

func (t *Thresholds) applyDefaults() {
	if t.LowNativeBalanceLovelace == 0 {
		t.LowNativeBalanceLovelace = 50_000_000
	}
	if t.LowFeeTokenBalance == 0 {
		t.LowFeeTokenBalance = 50
	}
	if t.TimeoutVariancePct == 0 {
		t.TimeoutVariancePct = 105
	}
	if t.MinDataSources == 0 {
		t.MinDataSources = 3
	}
	if t.CooldownMs == 0 {
		t.CooldownMs = 1_800_000
	}
}

// Supervisor owns the per-category cooldown map and the transport list. It
// is safe for concurrent use; only H mutates the cooldown map in the real
// scheduler, but tests exercise it directly.
type Supervisor struct {
	thresholds Thresholds
	transports []Transport
	logger     zerolog.Logger

	mu           sync.Mutex
	lastFiredMs map[Category]int64
}

func NewSupervisor(thresholds Thresholds, transports []Transport, logger zerolog.Logger) *Supervisor {
	thresholds.applyDefaults()
	return &Supervisor{
		thresholds:  thresholds,
		transports:  transports,
		logger:      logger.With().Str("component", "alert").Logger(),
		lastFiredMs: make(map[Category]int64),
	}
}

// Fire dispatches e to every transport in parallel, unless its category is
// still within cooldown of a previous fire, in which case it is dropped
// with a summary log line.
func (s *Supervisor) Fire(ctx context.Context, e Event) {
	s.mu.Lock()
	last, seen := s.lastFiredMs[e.Category]
	withinCooldown := seen && e.FiredAtMs-last < s.thresholds.CooldownMs
	if !withinCooldown {
		s.lastFiredMs[e.Category] = e.FiredAtMs
	}
	s.mu.Unlock()

	if withinCooldown {
		s.logger.Debug().Str("category", string(e.Category)).Msg("alert suppressed by cooldown")
		return
	}

	metrics.IncrCounterWithLabels([]string{"alert", "fired"}, 1, []metrics.Label{{Name: "category", Value: string(e.Category)}})

	var wg sync.WaitGroup
	for _, tr := range s.transports {
		wg.Add(1)
		go func(tr Transport) {
			defer wg.Done()
			if err := tr.Send(ctx, e); err != nil {
				s.logger.Warn().Err(err).Str("transport", tr.Name()).Str("category", string(e.Category)).Msg("alert transport delivery failed")
			}
		}(tr)
	}
	wg.Wait()
}

// CheckBalance fires CategoryLowNativeBalance or CategoryLowFeeTokenBalance
// when the given balance drops below the configured threshold.
func (s *Supervisor) CheckBalance(ctx context.Context, category Category, balance int64, nowMs int64) {
	var threshold int64
	switch category {
	case CategoryLowNativeBalance:
		threshold = s.thresholds.LowNativeBalanceLovelace
	case CategoryLowFeeTokenBalance:
		threshold = s.thresholds.LowFeeTokenBalance
	default:
		return
	}
	if balance >= threshold {
		return
	}
	s.Fire(ctx, Event{
		Category:  category,
		Message:   fmt.Sprintf("balance %d below threshold %d", balance, threshold),
		Severity:  "warning",
		FiredAtMs: nowMs,
	})
}

// CheckLiveness fires category when now-lastSeenMs exceeds
// timeoutVariancePct% of expectedIntervalMs.
func (s *Supervisor) CheckLiveness(ctx context.Context, category Category, lastSeenMs, expectedIntervalMs, nowMs int64) {
	bound := expectedIntervalMs * s.thresholds.TimeoutVariancePct / 100
	if nowMs-lastSeenMs <= bound {
		return
	}
	s.Fire(ctx, Event{
		Category:  category,
		Message:   fmt.Sprintf("no update in %dms, expected within %dms", nowMs-lastSeenMs, bound),
		Severity:  "critical",
		FiredAtMs: nowMs,
	})
}

// CheckMinDataSources fires CategoryMinDataSources when activeCount drops
// below the configured minimum, unless the check is disabled.
func (s *Supervisor) CheckMinDataSources(ctx context.Context, pairType string, activeCount int, nowMs int64) {
	if !s.thresholds.MinDataSourcesEnabled {
		return
	}
	if activeCount >= s.thresholds.MinDataSources {
		return
	}
	s.Fire(ctx, Event{
		Category:  CategoryMinDataSources,
		Message:   fmt.Sprintf("%s pool has %d active sources, minimum is %d", pairType, activeCount, s.thresholds.MinDataSources),
		Severity:  "warning",
		FiredAtMs: nowMs,
	})
}

// NotifyRewardCollection fires on both success and failure. It goes through
// Fire like every other category, so an outcome reported within CooldownMs
// of the previous reward-collection alert is suppressed.
func (s *Supervisor) NotifyRewardCollection(ctx context.Context, txHash string, lovelace int64, err error, nowMs int64) {
	severity := "info"
	msg := fmt.Sprintf("collected %d lovelace in tx %s", lovelace, txHash)
	if err != nil {
		severity = "critical"
		msg = fmt.Sprintf("reward collection failed: %v", err)
	}
	s.Fire(ctx, Event{Category: CategoryRewardCollection, Message: msg, Severity: severity, FiredAtMs: nowMs})
}

// nextExpectedAggTime extends the node-update liveness deadline when this
// node is intentionally deferring its own update to coincide with the
// next aggregate tick.
func nextExpectedAggTime(lastAggMs, aggregateTimeMs int64) int64 {
	return lastAggMs + aggregateTimeMs + 2*60*1000
}

// NextExpectedAggTime is exported for the scheduler to compute the
// extended deadline before calling CheckLiveness.
func NextExpectedAggTime(lastAggMs, aggregateTimeMs int64) int64 {
	return nextExpectedAggTime(lastAggMs, aggregateTimeMs)
}
