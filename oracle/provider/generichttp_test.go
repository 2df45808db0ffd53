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

func TestGenericHTTPAdapter_GetRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"rates":{"usd":"0.45"}}}`)
	}))
	defer srv.Close()

	adapter := NewGenericHTTPAdapter(
		Endpoint{Sources: []string{"coingecko"}},
		types.CurrencyPair{Base: "ADA", Quote: "USD"},
		types.PairTypeBase,
		map[string]string{"coingecko": srv.URL},
		map[string][]string{"coingecko": {"data", "rates", "usd"}},
		nil,
		nil,
		zerolog.Nop(),
	)

	resp := adapter.GetRates(context.Background())

	require.Len(t, resp.Quotes, 1)
	require.True(t, resp.Quotes[0].Price.IsPositive())
}

func TestGenericHTTPAdapter_UnknownSourceErrorsUnsupported(t *testing.T) {
	adapter := NewGenericHTTPAdapter(
		Endpoint{Sources: []string{"missing"}},
		types.CurrencyPair{Base: "ADA", Quote: "USD"},
		types.PairTypeBase,
		map[string]string{},
		map[string][]string{},
		nil,
		nil,
		zerolog.Nop(),
	)

	resp := adapter.GetRates(context.Background())
	require.Empty(t, resp.Quotes)
	require.Len(t, resp.Errors, 1)
	require.Equal(t, types.AdapterErrUnsupported, resp.Errors[0].Kind)
}

func TestGenericHTTPAdapter_ArrayIndexPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"price":"0.30"},{"price":"0.50"}]}`)
	}))
	defer srv.Close()

	adapter := NewGenericHTTPAdapter(
		Endpoint{Sources: []string{"indexed"}},
		types.CurrencyPair{Base: "ADA", Quote: "USD"},
		types.PairTypeBase,
		map[string]string{"indexed": srv.URL},
		map[string][]string{"indexed": {"data", "1", "price"}},
		nil,
		nil,
		zerolog.Nop(),
	)

	resp := adapter.GetRates(context.Background())

	require.Len(t, resp.Quotes, 1)
	require.True(t, resp.Quotes[0].Price.Equal(decFromFloat(0.50)))
}

func TestGenericHTTPAdapter_BearerTokenHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"price":"1.25"}`)
	}))
	defer srv.Close()

	adapter := NewGenericHTTPAdapter(
		Endpoint{Sources: []string{"authed"}},
		types.CurrencyPair{Base: "ADA", Quote: "USD"},
		types.PairTypeBase,
		map[string]string{"authed": srv.URL},
		map[string][]string{"authed": {"price"}},
		map[string]map[string]string{"authed": {"bearer_token": "secret-token"}},
		nil,
		zerolog.Nop(),
	)

	resp := adapter.GetRates(context.Background())

	require.Len(t, resp.Quotes, 1)
	require.Equal(t, "Bearer secret-token", gotAuth)
}

func TestGenericHTTPAdapter_Inverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"price":"4"}`)
	}))
	defer srv.Close()

	adapter := NewGenericHTTPAdapter(
		Endpoint{Sources: []string{"inverted"}},
		types.CurrencyPair{Base: "ADA", Quote: "USD"},
		types.PairTypeBase,
		map[string]string{"inverted": srv.URL},
		map[string][]string{"inverted": {"price"}},
		nil,
		map[string]bool{"inverted": true},
		zerolog.Nop(),
	)

	resp := adapter.GetRates(context.Background())

	require.Len(t, resp.Quotes, 1)
	require.True(t, resp.Quotes[0].Price.Equal(decFromFloat(0.25)))
}
