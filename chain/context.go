package chain

import (
	"context"
	"time"
)

// UTxO is a minimal, chain-library-agnostic view of one unspent output:
// enough for NFT-tag selection and datum decoding without binding callers
// to a specific backend's UTxO type.
type UTxO struct {
	TxHash  string
	Index   uint32
	Address string
	Assets  map[AssetID]int64 // multi-asset amounts, including "lovelace"
	DatumCBOR []byte
}

// HasAsset reports whether this UTxO's asset map contains at least amount
// units of id.
func (u UTxO) HasAsset(id AssetID, amount int64) bool {
	return u.Assets[id] >= amount
}

// TxRef is a reference to one transaction output, used for reference
// script inputs and pool-input pins.
type TxRef struct {
	TxHash string
	Index  uint32
}

// SubmitResult is returned by Context.Submit.
type SubmitResult struct {
	TxHash string
}

// Context is the capability the node uses to talk to the Cardano chain: it
// is satisfied by a live gouroboros/Ogmios or Blockfrost-backed
// implementation and, in tests, by an in-memory double.
//
// Time reported by Now is the chain's own view of time (derived from tip
// slot), not wall-clock time, since decision logic compares against
// on-chain timestamps.
type Context interface {
	PoolReader

	// UTxOsAt returns every UTxO currently sitting at address.
	UTxOsAt(ctx context.Context, address string) ([]UTxO, error)

	// Now returns the chain's current time.
	Now(ctx context.Context) (time.Time, error)

	// Submit posts a signed transaction's CBOR bytes to the network.
	Submit(ctx context.Context, signedTxCBOR []byte) (SubmitResult, error)

	// TxStatus polls for the confirmation status of a submitted
	// transaction. A nil error with confirmed=false means "not yet
	// visible"; a non-nil error other than a not-found condition should
	// surface.
	TxStatus(ctx context.Context, txHash string) (confirmed bool, err error)
}
