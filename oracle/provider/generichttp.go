package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"oracle-node/oracle/types"
)

var _ Adapter = (*GenericHTTPAdapter)(nil)

// GenericHTTPAdapter fetches a price from a named JSON HTTP endpoint using a
// dot-path extractor, for sources that have no dedicated CEX or DEX shape.
type GenericHTTPAdapter struct {
	endpoints Endpoint
	pair      types.CurrencyPair
	pairType  types.PairType
	client    *http.Client
	// urlFor, fieldPath, headers, and inverse are keyed by source name so
	// one adapter instance can cover several differently-shaped endpoints.
	urlFor    map[string]string
	fieldPath map[string][]string
	headers   map[string]map[string]string
	inverse   map[string]bool
	logger    zerolog.Logger
}

func NewGenericHTTPAdapter(
	endpoints Endpoint,
	pair types.CurrencyPair,
	pairType types.PairType,
	urlFor map[string]string,
	fieldPath map[string][]string,
	headers map[string]map[string]string,
	inverse map[string]bool,
	logger zerolog.Logger,
) *GenericHTTPAdapter {
	endpoints.SetDefaults()
	return &GenericHTTPAdapter{
		endpoints: endpoints,
		pair:      pair,
		pairType:  pairType,
		client:    newDefaultHTTPClient(endpoints.Timeout),
		urlFor:    urlFor,
		fieldPath: fieldPath,
		headers:   headers,
		inverse:   inverse,
		logger:    newLogger(logger, FamilyGenericHTTP),
	}
}

func (a *GenericHTTPAdapter) Name() Family { return FamilyGenericHTTP }

func (a *GenericHTTPAdapter) GetRates(ctx context.Context) types.AdapterResponse {
	var resp types.AdapterResponse

	for _, source := range a.endpoints.Sources {
		quote, err := a.fetchOne(ctx, source)
		if err != nil {
			resp.Errors = append(resp.Errors, err)
			continue
		}
		resp.Quotes = append(resp.Quotes, quote)
	}
	return resp
}

func (a *GenericHTTPAdapter) fetchOne(ctx context.Context, source string) (types.PriceQuote, *types.AdapterError) {
	url, ok := a.urlFor[source]
	if !ok {
		return types.PriceQuote{}, &types.AdapterError{Source: source, Kind: types.AdapterErrUnsupported, Err: errUnsupported}
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.endpoints.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return types.PriceQuote{}, &types.AdapterError{Source: source, Kind: types.AdapterErrNetwork, Err: err}
	}
	applyHeaders(req, a.headers[source])

	resp, err := a.client.Do(req)
	if err != nil {
		return types.PriceQuote{}, &types.AdapterError{Source: source, Kind: types.AdapterErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.PriceQuote{}, &types.AdapterError{Source: source, Kind: types.AdapterErrNetwork, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return types.PriceQuote{}, &types.AdapterError{Source: source, Kind: types.AdapterErrNetwork, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if len(body) == 0 {
		return types.PriceQuote{}, &types.AdapterError{Source: source, Kind: types.AdapterErrDecode, Err: errEmptyResponse}
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return types.PriceQuote{}, &types.AdapterError{Source: source, Kind: types.AdapterErrDecode, Err: err}
	}

	value, err := extractPath(doc, a.fieldPath[source])
	if err != nil {
		return types.PriceQuote{}, &types.AdapterError{Source: source, Kind: types.AdapterErrDecode, Err: err}
	}
	if value <= 0 {
		return types.PriceQuote{}, &types.AdapterError{Source: source, Kind: types.AdapterErrDecode, Err: errUnsupported}
	}
	if a.inverse[source] {
		value = 1 / value
	}

	return types.PriceQuote{
		SourceName:  source,
		SourceID:    source + ":" + a.pair.String(),
		Price:       decFromFloat(value),
		TimestampMs: time.Now().UnixMilli(),
		PairType:    a.pairType,
		QuoteRequired: a.endpoints.QuoteRequired,
		QuoteCalc:     a.endpoints.QuoteCalc,
	}, nil
}

// applyHeaders sets request headers from a source's configured header map,
// special-casing "bearer_token" into a standard Authorization header rather
// than sending it as a literal header name.
func applyHeaders(req *http.Request, headers map[string]string) {
	for key, value := range headers {
		if key == "bearer_token" {
			req.Header.Set("Authorization", "Bearer "+value)
			continue
		}
		req.Header.Set(key, value)
	}
}

// extractPath walks a decoded JSON document through a sequence of path
// segments, each either an object key or (when numeric) an array index, and
// returns the terminal value as a float64.
func extractPath(doc any, path []string) (float64, error) {
	cur := doc
	for _, key := range path {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return 0, fmt.Errorf("path segment %q: not found", key)
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil {
				return 0, fmt.Errorf("path segment %q: not a valid array index", key)
			}
			if idx < 0 || idx >= len(node) {
				return 0, fmt.Errorf("path segment %q: index out of range", key)
			}
			cur = node[idx]
		default:
			return 0, fmt.Errorf("path segment %q: not an object or array", key)
		}
	}

	switch v := cur.(type) {
	case float64:
		return v, nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%f", &f); err != nil {
			return 0, fmt.Errorf("value %q not numeric", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("terminal value is not numeric: %v", v)
	}
}
