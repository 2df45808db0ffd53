package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"oracle-node/oracle/types"
)

func TestCEXAdapter_GetRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/binance":
			fmt.Fprint(w, `{"price":"1.2345"}`)
		case "/kraken":
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	urlFor := func(exchange string, _ types.CurrencyPair) (string, error) {
		return srv.URL + "/" + exchange, nil
	}
	parse := func(exchange string, body []byte) (float64, float64, float64, float64, error) {
		if exchange == "binance" {
			return 1.2345, 1.23, 1.24, 100, nil
		}
		return 0, 0, 0, 0, fmt.Errorf("unsupported")
	}

	adapter := NewCEXAdapter(
		Endpoint{Sources: []string{"binance", "kraken"}},
		types.CurrencyPair{Base: "ADA", Quote: "USD"},
		types.PairTypeBase,
		urlFor, parse,
		zerolog.Nop(),
	)

	resp := adapter.GetRates(context.Background())

	require.Len(t, resp.Quotes, 1)
	require.Equal(t, "binance", resp.Quotes[0].SourceName)
	require.Len(t, resp.Errors, 1)
	require.Equal(t, types.AdapterErrNetwork, resp.Errors[0].Kind)
}

func TestCEXAdapter_UnsupportedPairIsDroppedNotErrored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"price":"0"}`)
	}))
	defer srv.Close()

	urlFor := func(exchange string, _ types.CurrencyPair) (string, error) { return srv.URL, nil }
	parse := func(_ string, _ []byte) (float64, float64, float64, float64, error) { return 0, 0, 0, 0, nil }

	adapter := NewCEXAdapter(
		Endpoint{Sources: []string{"bitget"}},
		types.CurrencyPair{Base: "ADA", Quote: "USD"},
		types.PairTypeBase,
		urlFor, parse,
		zerolog.Nop(),
	)

	resp := adapter.GetRates(context.Background())
	require.Empty(t, resp.Quotes)
	require.Len(t, resp.Errors, 1)
	require.Equal(t, types.AdapterErrUnsupported, resp.Errors[0].Kind)
}
