// Package oracle implements the Scheduler: the tick loop that reads
// on-chain oracle state, aggregates a fresh rate, runs the update/
// aggregate decision, executes the resulting transaction, and evaluates
// alert conditions, once per tick, never two ticks concurrently.
package oracle

import (
	"context"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/armon/go-metrics"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"oracle-node/alert"
	"oracle-node/chain"
	"oracle-node/oracle/consensus"
	"oracle-node/oracle/decision"
	"oracle-node/oracle/provider"
	"oracle-node/oracle/rate"
	"oracle-node/oracle/state"
	"oracle-node/oracle/store"
	"oracle-node/oracle/txbuilder"
	"oracle-node/oracle/types"
	"oracle-node/pkg/closer"
)

// DefaultPrecisionMultiplier converts a rational rate into the scaled
// integer the on-chain datum stores and the consensus engine operates
// on. Tokens with sub-satoshi precision require a higher multiplier
// (commonly 1_000_000_000_000): scaleRate rounds up, so at the default
// multiplier such a rate scales to 1.
const DefaultPrecisionMultiplier int64 = 1_000_000

// Settings bundles the tuning knobs the scheduler needs beyond what it
// reads fresh from chain state each tick.
type Settings struct {
	OracleAddress        string
	NFTTags              state.NFTTags
	NodePubKeyHash       []byte
	UpdateIntervalMs     int64
	RewardTriggerAmount  int64
	PrecisionMultiplier  int64
}

func (s *Settings) applyDefaults() {
	if s.PrecisionMultiplier == 0 {
		s.PrecisionMultiplier = DefaultPrecisionMultiplier
	}
}

// Status is a snapshot of the scheduler's most recent tick, exposed to the
// status API without requiring callers to replay chain state themselves.
type Status struct {
	LastTickAtMs  int64
	LastAction    decision.Action
	LastRate      sdkmath.LegacyDec
	LastError     string
	LastAlertMsg  string
}

// Scheduler is the oracle's core component: a single-tick-at-a-time loop
// wiring the oracle state reader, rate aggregator, consensus engine,
// decision table, and transaction orchestrator together.
type Scheduler struct {
	logger zerolog.Logger
	closer *closer.Closer

	settings      Settings
	chainCtx      chain.Context
	baseAdapters  []provider.Adapter
	quoteAdapters []provider.Adapter
	pair          types.CurrencyPair

	orchestrator *txbuilder.Orchestrator
	alerts       *alert.Supervisor
	store        store.RateStore

	lastAggMs    int64
	lastUpdateMs int64

	statusMtx sync.RWMutex
	status    Status
}

// Status returns a copy of the scheduler's most recently recorded tick
// outcome, safe to call concurrently with Start.
func (s *Scheduler) Status() Status {
	s.statusMtx.RLock()
	defer s.statusMtx.RUnlock()
	return s.status
}

func (s *Scheduler) setStatus(fn func(*Status)) {
	s.statusMtx.Lock()
	defer s.statusMtx.Unlock()
	fn(&s.status)
}

func New(
	logger zerolog.Logger,
	settings Settings,
	chainCtx chain.Context,
	pair types.CurrencyPair,
	baseAdapters []provider.Adapter,
	quoteAdapters []provider.Adapter,
	orchestrator *txbuilder.Orchestrator,
	alerts *alert.Supervisor,
	rateStore store.RateStore,
) *Scheduler {
	settings.applyDefaults()
	return &Scheduler{
		logger:        logger.With().Str("module", "oracle").Logger(),
		closer:        closer.NewCloser(),
		settings:      settings,
		chainCtx:      chainCtx,
		pair:          pair,
		baseAdapters:  baseAdapters,
		quoteAdapters: quoteAdapters,
		orchestrator:  orchestrator,
		alerts:        alerts,
		store:         rateStore,
	}
}

// Start runs the tick loop in a blocking fashion until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.closer.Close()
			return nil
		default:
		}

		s.logger.Debug().Msg("starting oracle tick")
		startTime := time.Now()

		if err := s.tick(ctx); err != nil {
			s.logger.Err(err).Msg("oracle tick failed")
			metrics.IncrCounter([]string{"oracle", "tick", "error"}, 1)
			s.setStatus(func(st *Status) {
				st.LastTickAtMs = time.Now().UnixMilli()
				st.LastError = err.Error()
			})
			if rerr := s.store.RecordOperationalError("scheduler", err.Error(), time.Now().UnixMilli()); rerr != nil {
				s.logger.Warn().Err(rerr).Msg("failed to persist operational error")
			}
		} else {
			metrics.IncrCounter([]string{"oracle", "tick", "success"}, 1)
		}

		metrics.MeasureSince([]string{"oracle", "tick"}, startTime)
		s.logger.Debug().Dur("elapsed", time.Since(startTime)).Msg("oracle tick complete")

		select {
		case <-ctx.Done():
			s.closer.Close()
			return nil
		case <-time.After(time.Duration(s.settings.UpdateIntervalMs) * time.Millisecond):
		}
	}
}

// Stop waits for the loop to exit. It does not end the loop itself: Start
// returns once its ctx is cancelled and closes the closer on the way out.
func (s *Scheduler) Stop() {
	<-s.closer.Done()
}

// tick is one pass of C -> B -> E -> F -> H. A soft failure at C aborts
// the tick without touching F; everything after is best-effort and
// independently logged.
func (s *Scheduler) tick(ctx context.Context) error {
	snap, err := state.Read(ctx, s.chainCtx, s.settings.OracleAddress, s.settings.NFTTags)
	if err != nil {
		return err
	}

	settings, err := state.DecodeAggState(snap.AggState)
	if err != nil {
		return err
	}
	feed, err := state.DecodeOracleFeed(snap.OracleFeed)
	if err != nil {
		return err
	}
	reward, err := state.DecodeReward(snap.Reward)
	if err != nil {
		return err
	}
	peers, own, err := decodePeersAndOwn(snap, s.settings.NodePubKeyHash)
	if err != nil {
		return err
	}

	now, err := s.chainCtx.Now(ctx)
	if err != nil {
		return err
	}
	nowMs := now.UnixMilli()

	// The change-triggered half of the aggregation-needed predicate
	// compares against a fresh rate, so B always runs before E even though
	// its result is only consumed by F when E decides to aggregate.
	aggregated, provenance := rate.GetAggregatedRate(ctx, s.pair, s.baseAdapters, s.quoteAdapters)
	s.persistProvenance(provenance)

	newRateScaled := feed.ValueScaled
	if aggregated != nil {
		newRateScaled = scaleRate(aggregated.Rate, s.settings.PrecisionMultiplier)
		if rerr := s.store.RecordAggregatedRate(*aggregated); rerr != nil {
			s.logger.Warn().Err(rerr).Msg("failed to persist aggregated rate")
		}
	}

	d := decision.Decide(settings, feed, peers, own, newRateScaled, nowMs, &reward, s.settings.RewardTriggerAmount)
	metrics.IncrCounter([]string{"oracle", "decision", string(d.Action)}, 1)

	var peerFeeds []chain.UTxO
	if d.Action == decision.ActionAggregate || d.Action == decision.ActionUpdateAndAggregate {
		peerFeeds = s.selectConsensusPeers(snap, peers, settings)
	}

	if err := s.orchestrator.Execute(ctx, d, txbuilder.Inputs{
		OracleFeed:    snap.OracleFeed,
		AggState:      snap.AggState,
		Reward:        snap.Reward,
		OwnNodeFeed:   ownUTxO(snap, s.settings.NodePubKeyHash),
		PeerFeeds:     peerFeeds,
		NewRateScaled: newRateScaled,
		NowMs:         nowMs,
	}); err != nil {
		s.logger.Err(err).Str("action", string(d.Action)).Msg("transaction execution failed")
	} else {
		switch d.Action {
		case decision.ActionAggregate, decision.ActionUpdateAndAggregate:
			s.lastAggMs = nowMs
		}
		if d.Action == decision.ActionUpdateOnly || d.Action == decision.ActionUpdateAndAggregate {
			s.lastUpdateMs = nowMs
		}
	}

	s.runAlertChecks(ctx, settings, d, nowMs)

	s.setStatus(func(st *Status) {
		st.LastTickAtMs = nowMs
		st.LastAction = d.Action
		st.LastAlertMsg = d.AlertReason
		st.LastError = ""
		if aggregated != nil {
			st.LastRate = aggregated.Rate
		}
	})
	return nil
}

// selectConsensusPeers runs the IQR-based consensus engine over the
// feeds carried in peers and returns only the UTxOs whose observation
// survived outlier rejection, in the on-chain order the per-node UTxOs
// were read in.
func (s *Scheduler) selectConsensusPeers(snap state.Snapshot, peers []decision.NodeDatum, settings decision.OracleSettings) []chain.UTxO {
	feeds := make([]int64, 0, len(peers))
	for _, p := range peers {
		if p.Feed != nil {
			feeds = append(feeds, p.Feed.ValueScaled)
		}
	}
	result := consensus.Consensus(feeds, settings.IQRMultiplier, settings.DivergenceBps)

	retained := make(map[int64]int, len(result.Retained))
	for _, v := range result.Retained {
		retained[v]++
	}

	out := make([]chain.UTxO, 0, len(snap.NodeFeeds))
	for i, p := range peers {
		if p.Feed == nil || retained[p.Feed.ValueScaled] == 0 {
			continue
		}
		retained[p.Feed.ValueScaled]--
		out = append(out, snap.NodeFeeds[i])
	}
	return out
}

func (s *Scheduler) runAlertChecks(ctx context.Context, settings decision.OracleSettings, d decision.Decision, nowMs int64) {
	if d.AlertReason != "" {
		s.alerts.Fire(ctx, alert.Event{
			Category:  alert.CategoryAggregationLiveness,
			Message:   d.AlertReason,
			Severity:  "warning",
			FiredAtMs: nowMs,
		})
	}

	s.alerts.CheckLiveness(ctx, alert.CategoryAggregationLiveness, s.lastAggMs, settings.AggregateTimeMs, nowMs)

	deadline := settings.UpdatedNodeTimeMs
	if s.lastAggMs > 0 {
		if extended := alert.NextExpectedAggTime(s.lastAggMs, settings.AggregateTimeMs) - nowMs; extended > deadline {
			deadline = extended
		}
	}
	s.alerts.CheckLiveness(ctx, alert.CategoryNodeUpdateLiveness, s.lastUpdateMs, deadline, nowMs)

	if d.CollectRewards {
		s.alerts.NotifyRewardCollection(ctx, "", 0, nil, nowMs)
	}
}

func (s *Scheduler) persistProvenance(p rate.Provenance) {
	for _, q := range p.BaseQuotes {
		if err := s.store.RecordRate(s.pair, q); err != nil {
			s.logger.Warn().Err(err).Str("source", q.SourceName).Msg("failed to persist rate observation")
		}
	}
	for _, e := range p.Errors {
		s.logger.Warn().Str("source", e.Source).Str("kind", string(e.Kind)).Err(e.Err).Msg("adapter error")
	}
}

// scaleRate converts a rational rate into the scaled integer the on-chain
// datum stores, rounding up so a tiny positive rate never floors to zero.
// sdk.Dec's MulInt64/TruncateInt64 round toward zero (banker's rounding on
// Quo), the wrong tool for a ceiling; shopspring/decimal's Ceil gives an
// exact ceiling instead.
func scaleRate(r sdkmath.LegacyDec, precisionMultiplier int64) int64 {
	d, err := decimal.NewFromString(r.String())
	if err != nil {
		return 0
	}
	scaled := d.Mul(decimal.NewFromInt(precisionMultiplier))
	return scaled.Ceil().IntPart()
}

func decodePeersAndOwn(snap state.Snapshot, ownPKH []byte) ([]decision.NodeDatum, decision.NodeDatum, error) {
	peers := make([]decision.NodeDatum, 0, len(snap.NodeFeeds))
	var own decision.NodeDatum
	for _, u := range snap.NodeFeeds {
		nd, err := state.DecodeNodeDatum(u)
		if err != nil {
			return nil, decision.NodeDatum{}, err
		}
		peers = append(peers, nd)
		if string(nd.PubKeyHash) == string(ownPKH) {
			own = nd
		}
	}
	return peers, own, nil
}

func ownUTxO(snap state.Snapshot, ownPKH []byte) chain.UTxO {
	for i, u := range snap.NodeFeeds {
		nd, err := state.DecodeNodeDatum(u)
		if err == nil && string(nd.PubKeyHash) == string(ownPKH) {
			return snap.NodeFeeds[i]
		}
	}
	return chain.UTxO{}
}
