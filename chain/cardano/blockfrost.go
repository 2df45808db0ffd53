package cardano

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"oracle-node/chain"
)

// BlockfrostContext implements chain.Context against a Blockfrost-style
// REST API, used when the operator depends on a remote provider instead
// of running their own node. It is also the context used for external
// mainnet DEX price discovery when the node itself runs against testnet.
type BlockfrostContext struct {
	baseURL  string
	apiKey   string
	client   *http.Client
}

func NewBlockfrostContext(baseURL, apiKey string) *BlockfrostContext {
	return &BlockfrostContext{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type bfUTxO struct {
	TxHash      string `json:"tx_hash"`
	OutputIndex uint32 `json:"output_index"`
	Amount      []struct {
		Unit     string `json:"unit"`
		Quantity string `json:"quantity"`
	} `json:"amount"`
	DataHash      string `json:"data_hash"`
	InlineDatum   string `json:"inline_datum"`
}

func (c *BlockfrostContext) UTxOsAt(ctx context.Context, address string) ([]chain.UTxO, error) {
	var raw []bfUTxO
	if err := c.get(ctx, fmt.Sprintf("/addresses/%s/utxos", address), &raw); err != nil {
		return nil, err
	}

	utxos := make([]chain.UTxO, 0, len(raw))
	for _, u := range raw {
		assets := map[chain.AssetID]int64{}
		for _, amt := range u.Amount {
			var qty int64
			fmt.Sscanf(amt.Quantity, "%d", &qty)
			if amt.Unit == "lovelace" {
				assets[chain.Lovelace] = qty
			} else if len(amt.Unit) >= 56 {
				// A Blockfrost unit is the 56-hex-char policy ID followed
				// directly by the asset name hex.
				assets[chain.AssetID(amt.Unit[:56]+"."+amt.Unit[56:])] = qty
			} else {
				assets[chain.AssetID(amt.Unit)] = qty
			}
		}
		var datumCBOR []byte
		if u.InlineDatum != "" {
			if decoded, err := hex.DecodeString(u.InlineDatum); err == nil {
				datumCBOR = decoded
			}
		}
		utxos = append(utxos, chain.UTxO{
			TxHash:    u.TxHash,
			Index:     u.OutputIndex,
			Address:   address,
			Assets:    assets,
			DatumCBOR: datumCBOR,
		})
	}
	return utxos, nil
}

func (c *BlockfrostContext) FindPool(ctx context.Context, dex string, assetA, assetB chain.AssetID) (*chain.Pool, error) {
	return findPoolAtAddress(ctx, c, dexPoolAddress(dex), assetA, assetB)
}

func (c *BlockfrostContext) Now(ctx context.Context) (time.Time, error) {
	var tip struct {
		Slot int64 `json:"slot"`
	}
	if err := c.get(ctx, "/blocks/latest", &tip); err != nil {
		return time.Time{}, err
	}
	return slotToTime(uint64(tip.Slot)), nil
}

func (c *BlockfrostContext) Submit(ctx context.Context, signedTxCBOR []byte) (chain.SubmitResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tx/submit", bytesReader(signedTxCBOR))
	if err != nil {
		return chain.SubmitResult{}, err
	}
	req.Header.Set("Content-Type", "application/cbor")
	req.Header.Set("project_id", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return chain.SubmitResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return chain.SubmitResult{}, fmt.Errorf("submit tx: status %d", resp.StatusCode)
	}

	var txHashResp string
	if err := json.NewDecoder(resp.Body).Decode(&txHashResp); err != nil {
		return chain.SubmitResult{TxHash: txHash(signedTxCBOR)}, nil
	}
	return chain.SubmitResult{TxHash: txHashResp}, nil
}

func (c *BlockfrostContext) TxStatus(ctx context.Context, hash string) (bool, error) {
	var out json.RawMessage
	err := c.get(ctx, "/txs/"+hash, &out)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *BlockfrostContext) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("project_id", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return notFoundError{path: path}
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type notFoundError struct{ path string }

func (e notFoundError) Error() string { return fmt.Sprintf("%s: not found", e.path) }

func isNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}
