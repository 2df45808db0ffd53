package provider

import (
	"context"
	"net/http"
	"time"

	"oracle-node/oracle/types"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxConcurrency = 20
)

type (
	// Adapter is the uniform interface every source-adapter family
	// implements. A single Adapter instance is bound to one currency pair
	// and one family of upstream sources at construction time.
	Adapter interface {
		// GetRates fans out across the adapter's configured sources and
		// returns the union of quotes that succeeded, plus the per-source
		// errors. A batch is never failed by a single source failure.
		GetRates(ctx context.Context) types.AdapterResponse
		// Name identifies the adapter family, e.g. "dexpool", "cex".
		Name() Family
	}

	// Family names an adapter family, analogous to an exchange Name in a
	// single-exchange feeder, except here one adapter represents an entire
	// class of sources rather than one exchange.
	Family string

	// Endpoint carries the config-driven knobs for one adapter instance:
	// which sources to query, timeouts, and concurrency bounds.
	Endpoint struct {
		Sources        []string
		QuoteRequired  bool
		QuoteCalc      types.QuoteCalcMethod
		Timeout        time.Duration
		MaxConcurrency int
	}
)

const (
	FamilyDexPool     Family = "dexpool"
	FamilyCEX         Family = "cex"
	FamilyGenericHTTP Family = "generic_http"
	FamilyLPNav       Family = "lp_nav"
)

// SetDefaults fills zero-valued fields with the package defaults, mirroring
// the defaulting every adapter family performs before its first fetch.
func (e *Endpoint) SetDefaults() {
	if e.Timeout <= 0 {
		e.Timeout = defaultTimeout
	}
	if e.MaxConcurrency <= 0 {
		e.MaxConcurrency = defaultMaxConcurrency
	}
}

func newDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func newLogger(base zerolog.Logger, family Family) zerolog.Logger {
	return base.With().Str("adapter", string(family)).Logger()
}
