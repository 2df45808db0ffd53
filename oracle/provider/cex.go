package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"oracle-node/oracle/types"
)

var _ Adapter = (*CEXAdapter)(nil)

// CEXAdapter queries a ticker last-trade price from each named centralized
// exchange. Exchanges that don't carry the pair are dropped, not errored.
type CEXAdapter struct {
	endpoints Endpoint
	pair      types.CurrencyPair
	pairType  types.PairType
	client    *http.Client
	sem       *semaphore.Weighted
	urlFor    func(exchange string, pair types.CurrencyPair) (string, error)
	parse     func(exchange string, body []byte) (price, bid, ask, volume float64, err error)
	logger    zerolog.Logger
}

// NewCEXAdapter builds a CEX adapter. urlFor and parse are injected so the
// same fan-out/concurrency/error-handling shell serves every exchange's
// distinct REST shape; tests supply trivial stand-ins.
func NewCEXAdapter(
	endpoints Endpoint,
	pair types.CurrencyPair,
	pairType types.PairType,
	urlFor func(string, types.CurrencyPair) (string, error),
	parse func(string, []byte) (float64, float64, float64, float64, error),
	logger zerolog.Logger,
) *CEXAdapter {
	endpoints.SetDefaults()
	return &CEXAdapter{
		endpoints: endpoints,
		pair:      pair,
		pairType:  pairType,
		client:    newDefaultHTTPClient(endpoints.Timeout),
		sem:       semaphore.NewWeighted(int64(endpoints.MaxConcurrency)),
		urlFor:    urlFor,
		parse:     parse,
		logger:    newLogger(logger, FamilyCEX),
	}
}

func (a *CEXAdapter) Name() Family { return FamilyCEX }

func (a *CEXAdapter) GetRates(ctx context.Context) types.AdapterResponse {
	type result struct {
		quote types.PriceQuote
		err   *types.AdapterError
	}
	results := make(chan result, len(a.endpoints.Sources))

	for _, exchange := range a.endpoints.Sources {
		exchange := exchange
		go func() {
			if err := a.sem.Acquire(ctx, 1); err != nil {
				results <- result{err: &types.AdapterError{Source: exchange, Kind: types.AdapterErrNetwork, Err: err}}
				return
			}
			defer a.sem.Release(1)

			q, aerr := a.fetchOne(ctx, exchange)
			results <- result{quote: q, err: aerr}
		}()
	}

	var resp types.AdapterResponse
	for range a.endpoints.Sources {
		r := <-results
		if r.err != nil {
			resp.Errors = append(resp.Errors, r.err)
			continue
		}
		resp.Quotes = append(resp.Quotes, r.quote)
	}
	return resp
}

func (a *CEXAdapter) fetchOne(ctx context.Context, exchange string) (types.PriceQuote, *types.AdapterError) {
	reqURL, err := a.urlFor(exchange, a.pair)
	if err != nil {
		return types.PriceQuote{}, &types.AdapterError{Source: exchange, Kind: types.AdapterErrUnsupported, Err: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.endpoints.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return types.PriceQuote{}, &types.AdapterError{Source: exchange, Kind: types.AdapterErrNetwork, Err: err}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return types.PriceQuote{}, &types.AdapterError{Source: exchange, Kind: types.AdapterErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.PriceQuote{}, &types.AdapterError{Source: exchange, Kind: types.AdapterErrNetwork, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return types.PriceQuote{}, &types.AdapterError{Source: exchange, Kind: types.AdapterErrNetwork, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	price, bid, ask, volume, err := a.parse(exchange, body)
	if err != nil {
		return types.PriceQuote{}, &types.AdapterError{Source: exchange, Kind: types.AdapterErrDecode, Err: err}
	}
	if price <= 0 {
		return types.PriceQuote{}, &types.AdapterError{Source: exchange, Kind: types.AdapterErrUnsupported, Err: errUnsupported}
	}

	return types.PriceQuote{
		SourceName:  exchange,
		SourceID:    exchange + ":" + a.pair.String(),
		Price:       decFromFloat(price),
		Bid:         decFromFloat(bid),
		Ask:         decFromFloat(ask),
		Volume:      decFromFloat(volume),
		TimestampMs: time.Now().UnixMilli(),
		PairType:    a.pairType,
		QuoteRequired: a.endpoints.QuoteRequired,
		QuoteCalc:     a.endpoints.QuoteCalc,
	}, nil
}

// decFromFloat converts an upstream JSON float into a LegacyDec via its
// string form, avoiding float64 binary rounding in the decimal conversion.
func decFromFloat(f float64) sdkmath.LegacyDec {
	if f == 0 {
		return sdkmath.LegacyZeroDec()
	}
	d, err := sdkmath.LegacyNewDecFromStr(strconv.FormatFloat(f, 'f', -1, 64))
	if err != nil {
		return sdkmath.LegacyZeroDec()
	}
	return d
}
