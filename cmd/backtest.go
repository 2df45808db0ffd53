package cmd

import (
	"fmt"
	"sort"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/spf13/cobra"

	"oracle-node/config"
	"oracle-node/oracle/store"
)

// tvwapMaxTimeDeltaSeconds bounds the gap tolerated between two consecutive
// observations from the same source within a window; a larger gap means the
// window's history for that source is too sparse to trust.
const tvwapMaxTimeDeltaSeconds = int64(120)

func getBacktestCmd() *cobra.Command {
	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "replay a stored rate history and print its windowed TWAP",
		RunE:  backtestCmdHandler,
	}
	backtestCmd.Flags().StringP(flagConfig, "c", "config.toml", "path to the node's TOML configuration file")
	backtestCmd.Flags().Int64("period", 1800, "window period for the TWAP, in seconds")
	return backtestCmd
}

func backtestCmdHandler(cmd *cobra.Command, _ []string) error {
	logger, err := buildLogger(cmd)
	if err != nil {
		return err
	}

	configPath, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return err
	}
	cfg, err := config.ParseConfig(configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("backtest requires a configured database.path to replay from")
	}

	periodSeconds, err := cmd.Flags().GetInt64("period")
	if err != nil {
		return err
	}
	period := time.Duration(periodSeconds) * time.Second

	rateStore, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("opening rate store: %w", err)
	}
	defer rateStore.Close()

	pair := cfg.Node.OracleCurrency.ToPair()

	points, err := rateStore.QueryRateHistory(pair, 0, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("querying rate history: %w", err)
	}
	if len(points) == 0 {
		return fmt.Errorf("no stored rate history for pair %s", pair.String())
	}

	first := time.UnixMilli(points[0].TimestampMs)
	last := first
	for _, p := range points {
		t := time.UnixMilli(p.TimestampMs)
		if t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}

	start := first.Truncate(period)
	end := last.Truncate(period).Add(period)

	for w := start; w.Before(end); w = w.Add(period) {
		windowEnd := w.Add(period)
		twap, err := computeTWAP(points, w, windowEnd)
		if err != nil {
			fmt.Println(w.UTC(), err)
			continue
		}
		fmt.Println(w.UTC(), twap)
	}

	return nil
}

// computeTWAP time-weights each source's observations within [start, end)
// by the gap to its next observation, then averages across sources,
// following the windowing idiom of a time-weighted average price.
func computeTWAP(points []store.RateHistoryPoint, start, end time.Time) (sdkmath.LegacyDec, error) {
	startMs, endMs := start.UnixMilli(), end.UnixMilli()

	bySource := make(map[string][]store.RateHistoryPoint)
	for _, p := range points {
		if p.TimestampMs < startMs || p.TimestampMs >= endMs {
			continue
		}
		bySource[p.SourceName] = append(bySource[p.SourceName], p)
	}
	if len(bySource) == 0 {
		return sdkmath.LegacyDec{}, fmt.Errorf("no observations in window")
	}

	var sourceAverages []sdkmath.LegacyDec
	for _, obs := range bySource {
		sort.Slice(obs, func(i, j int) bool { return obs[i].TimestampMs < obs[j].TimestampMs })

		priceTotal := sdkmath.LegacyZeroDec()
		var timeTotal int64

		for i, o := range obs {
			price, err := sdkmath.LegacyNewDecFromStr(o.Price)
			if err != nil {
				return sdkmath.LegacyDec{}, fmt.Errorf("parsing stored price: %w", err)
			}

			var deltaMs int64
			if i+1 < len(obs) {
				deltaMs = obs[i+1].TimestampMs - o.TimestampMs
			} else {
				deltaMs = endMs - o.TimestampMs
			}
			deltaSeconds := deltaMs / 1000
			if deltaSeconds > tvwapMaxTimeDeltaSeconds {
				return sdkmath.LegacyDec{}, fmt.Errorf("gap exceeding %ds in source history", tvwapMaxTimeDeltaSeconds)
			}

			priceTotal = priceTotal.Add(price.MulInt64(deltaSeconds))
			timeTotal += deltaSeconds
		}

		if timeTotal == 0 {
			continue
		}
		sourceAverages = append(sourceAverages, priceTotal.QuoInt64(timeTotal))
	}

	if len(sourceAverages) == 0 {
		return sdkmath.LegacyDec{}, fmt.Errorf("no source had enough history in window")
	}

	total := sdkmath.LegacyZeroDec()
	for _, avg := range sourceAverages {
		total = total.Add(avg)
	}
	return total.QuoInt64(int64(len(sourceAverages))), nil
}
