package provider

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"oracle-node/oracle/types"
)

// KnownCEXURLFor and KnownCEXParse are the urlFor/parse pairs CEXAdapter
// needs for the exchanges the node knows how to query over plain REST,
// keyed by exchange name exactly as it appears in a config's cex_sources
// list. Kraken, Binance, and Coinbase expose a public ticker endpoint that
// needs no API key, unlike the websocket feeds the teacher used; the adapter
// shell only ever does a single poll per tick, so REST is the better fit.
var (
	KnownCEXURLFor = func(exchange string, pair types.CurrencyPair) (string, error) {
		switch strings.ToLower(exchange) {
		case "kraken":
			return fmt.Sprintf("https://api.kraken.com/0/public/Ticker?pair=%s%s", pair.Base, pair.Quote), nil
		case "binance":
			return fmt.Sprintf("https://api1.binance.com/api/v3/ticker/price?symbol=%s%s", pair.Base, pair.Quote), nil
		case "coinbase":
			return fmt.Sprintf("https://api.exchange.coinbase.com/products/%s-%s/ticker", pair.Base, pair.Quote), nil
		default:
			return "", fmt.Errorf("unknown cex source: %s", exchange)
		}
	}

	KnownCEXParse = func(exchange string, body []byte) (price, bid, ask, volume float64, err error) {
		switch strings.ToLower(exchange) {
		case "kraken":
			return parseKrakenTicker(body)
		case "binance":
			return parseBinanceTicker(body)
		case "coinbase":
			return parseCoinbaseTicker(body)
		default:
			return 0, 0, 0, 0, fmt.Errorf("unknown cex source: %s", exchange)
		}
	}
)

func parseKrakenTicker(body []byte) (price, bid, ask, volume float64, err error) {
	var resp struct {
		Result map[string]struct {
			C []string `json:"c"` // last trade closed [price, lot volume]
			B []string `json:"b"` // best bid [price, ...]
			A []string `json:"a"` // best ask [price, ...]
			V []string `json:"v"` // volume today, last 24h
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, 0, 0, 0, err
	}
	for _, t := range resp.Result {
		price, err = strconv.ParseFloat(t.C[0], 64)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		if len(t.B) > 0 {
			bid, _ = strconv.ParseFloat(t.B[0], 64)
		}
		if len(t.A) > 0 {
			ask, _ = strconv.ParseFloat(t.A[0], 64)
		}
		if len(t.V) > 1 {
			volume, _ = strconv.ParseFloat(t.V[1], 64)
		}
		return price, bid, ask, volume, nil
	}
	return 0, 0, 0, 0, fmt.Errorf("kraken: empty ticker response")
}

func parseBinanceTicker(body []byte) (price, bid, ask, volume float64, err error) {
	var resp struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, 0, 0, 0, err
	}
	price, err = strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return price, 0, 0, 0, nil
}

func parseCoinbaseTicker(body []byte) (price, bid, ask, volume float64, err error) {
	var resp struct {
		Price  string `json:"price"`
		Bid    string `json:"bid"`
		Ask    string `json:"ask"`
		Volume string `json:"volume"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, 0, 0, 0, err
	}
	price, err = strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	bid, _ = strconv.ParseFloat(resp.Bid, 64)
	ask, _ = strconv.ParseFloat(resp.Ask, 64)
	volume, _ = strconv.ParseFloat(resp.Volume, 64)
	return price, bid, ask, volume, nil
}
