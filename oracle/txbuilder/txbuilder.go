// Package txbuilder is the transaction orchestrator: it turns a decision
// machine Action into a signed, submitted Cardano transaction and awaits
// confirmation.
package txbuilder

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Salvionied/apollo"
	"github.com/Salvionied/apollo/serialization/Key"
	"github.com/Salvionied/apollo/serialization/PlutusData"
	"github.com/Salvionied/apollo/serialization/Redeemer"
	"github.com/Salvionied/apollo/serialization/TransactionInput"
	"github.com/Salvionied/apollo/serialization/UTxO"
	"github.com/rs/zerolog"

	"oracle-node/chain"
	"oracle-node/oracle/decision"
)

// Signer holds the keys used to authorize this node's transactions,
// loaded at startup from the configured keyring.
type Signer struct {
	VKey Key.VerificationKey
	SKey Key.SigningKey
}

// Config carries the addresses and tuning knobs the orchestrator needs
// beyond the per-tick decision and state snapshot.
type Config struct {
	OracleAddress    string
	ChangeAddress    string
	ReferenceScript  *chain.TxRef
	PollInterval     time.Duration
	MaxRetries       int
	RewardDestination string
}

// Orchestrator builds, signs, submits, and confirms the transaction for
// one tick's Decision.
type Orchestrator struct {
	cfg    Config
	signer Signer
	chain  chain.Context
	logger zerolog.Logger
}

func New(cfg Config, signer Signer, chainCtx chain.Context, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, signer: signer, chain: chainCtx, logger: logger.With().Str("component", "txbuilder").Logger()}
}

// Inputs bundles everything Execute needs to construct the primary
// transaction for one tick: the oracle's singleton UTxOs, the node's own
// NodeFeed UTxO, the peer NodeFeed UTxOs selected by the consensus engine,
// and the scaled rate being posted (if any).
type Inputs struct {
	OracleFeed   chain.UTxO
	AggState     chain.UTxO
	Reward       chain.UTxO
	OwnNodeFeed  chain.UTxO
	PeerFeeds    []chain.UTxO
	NewRateScaled int64
	NowMs        int64
}

// Execute builds and submits the transaction (or pair of transactions, for
// CollectRewards) implied by d, then awaits confirmation.
func (o *Orchestrator) Execute(ctx context.Context, d decision.Decision, in Inputs) error {
	switch d.Action {
	case decision.ActionIdle:
		// nothing to submit
	case decision.ActionUpdateOnly:
		if err := o.submitAndConfirm(ctx, o.buildUpdateOnly(in)); err != nil {
			return fmt.Errorf("update-only tx: %w", err)
		}
	case decision.ActionAggregate:
		if err := o.submitAndConfirm(ctx, o.buildAggregate(in)); err != nil {
			return fmt.Errorf("aggregate tx: %w", err)
		}
	case decision.ActionUpdateAndAggregate:
		if err := o.submitAndConfirm(ctx, o.buildUpdateAndAggregate(in)); err != nil {
			return fmt.Errorf("update-and-aggregate tx: %w", err)
		}
	default:
		return fmt.Errorf("unhandled decision action %q", d.Action)
	}

	if d.CollectRewards {
		if err := o.submitAndConfirm(ctx, o.buildCollectRewards(in)); err != nil {
			return fmt.Errorf("collect-rewards tx: %w", err)
		}
	}
	return nil
}

// buildUpdateOnly posts this node's own fresh price observation by
// spending and recreating its NodeFeed UTxO with an updated datum.
func (o *Orchestrator) buildUpdateOnly(in Inputs) func() ([]byte, error) {
	return func() ([]byte, error) {
		builder := o.newBuilder()
		ownUTxO := toApolloUTxO(in.OwnNodeFeed)

		builder = builder.
			CollectFrom(ownUTxO, spendRedeemer(0)).
			PayToContract(
				o.cfg.OracleAddress,
				&PlutusData.PlutusData{Value: nodeFeedDatum(in.NewRateScaled, in.NowMs)},
				lovelaceAmount(in.OwnNodeFeed),
				true,
			)

		return o.completeAndSign(builder)
	}
}

// buildAggregate cites the consensus-retained peer feeds and the node's
// own fresh feed, spends the OracleFeed and AggState singletons, and
// recreates OracleFeed with the new aggregate value.
func (o *Orchestrator) buildAggregate(in Inputs) func() ([]byte, error) {
	return func() ([]byte, error) {
		builder := o.newBuilder()

		builder = builder.
			CollectFrom(toApolloUTxO(in.OracleFeed), spendRedeemer(0)).
			CollectFrom(toApolloUTxO(in.AggState), spendRedeemer(1))

		for _, peer := range in.PeerFeeds {
			builder = builder.AddReferenceInput(peer.TxHash, int(peer.Index))
		}

		builder = builder.PayToContract(
			o.cfg.OracleAddress,
			&PlutusData.PlutusData{Value: oracleFeedDatum(in.NewRateScaled, in.NowMs)},
			lovelaceAmount(in.OracleFeed),
			true,
		)

		if o.cfg.ReferenceScript != nil {
			builder = builder.AddReferenceInput(o.cfg.ReferenceScript.TxHash, int(o.cfg.ReferenceScript.Index))
		}

		return o.completeAndSign(builder)
	}
}

// buildUpdateAndAggregate is buildUpdateOnly and buildAggregate's effects
// combined into a single transaction: this node's own NodeFeed is spent
// and recreated with the new value alongside the aggregate spend, and the
// retained peer feeds other than its own are cited as reference inputs.
func (o *Orchestrator) buildUpdateAndAggregate(in Inputs) func() ([]byte, error) {
	return func() ([]byte, error) {
		builder := o.newBuilder()

		builder = builder.
			CollectFrom(toApolloUTxO(in.OwnNodeFeed), spendRedeemer(0)).
			CollectFrom(toApolloUTxO(in.OracleFeed), spendRedeemer(1)).
			CollectFrom(toApolloUTxO(in.AggState), spendRedeemer(2)).
			PayToContract(
				o.cfg.OracleAddress,
				&PlutusData.PlutusData{Value: nodeFeedDatum(in.NewRateScaled, in.NowMs)},
				lovelaceAmount(in.OwnNodeFeed),
				true,
			).
			PayToContract(
				o.cfg.OracleAddress,
				&PlutusData.PlutusData{Value: oracleFeedDatum(in.NewRateScaled, in.NowMs)},
				lovelaceAmount(in.OracleFeed),
				true,
			)

		for _, peer := range in.PeerFeeds {
			if peer.TxHash == in.OwnNodeFeed.TxHash && peer.Index == in.OwnNodeFeed.Index {
				continue // spent above, so not also cited
			}
			builder = builder.AddReferenceInput(peer.TxHash, int(peer.Index))
		}

		if o.cfg.ReferenceScript != nil {
			builder = builder.AddReferenceInput(o.cfg.ReferenceScript.TxHash, int(o.cfg.ReferenceScript.Index))
		}

		return o.completeAndSign(builder)
	}
}

// buildCollectRewards is submitted as a separate transaction after the
// primary one confirms, sending the operator's unclaimed reward balance to
// the configured destination address.
func (o *Orchestrator) buildCollectRewards(in Inputs) func() ([]byte, error) {
	return func() ([]byte, error) {
		builder := o.newBuilder()

		rewardUTxO := toApolloUTxO(in.Reward)
		builder = builder.
			CollectFrom(rewardUTxO, spendRedeemer(0)).
			PayToAddress(o.cfg.RewardDestination, lovelaceAmount(in.Reward))

		return o.completeAndSign(builder)
	}
}

func (o *Orchestrator) newBuilder() *apollo.Apollo {
	cc := apollo.NewEmptyBackend()
	builder := apollo.New(&cc)
	return builder.AddInputAddress(o.cfg.ChangeAddress)
}

func (o *Orchestrator) completeAndSign(builder *apollo.Apollo) ([]byte, error) {
	tx, err := builder.DisableExecutionUnitsEstimation().Complete()
	if err != nil {
		return nil, fmt.Errorf("complete tx: %w", err)
	}
	tx, err = tx.SignWithSkey(o.signer.VKey, o.signer.SKey)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	return tx.GetTx().Bytes()
}

func (o *Orchestrator) submitAndConfirm(ctx context.Context, build func() ([]byte, error)) error {
	signed, err := build()
	if err != nil {
		return err
	}

	result, err := o.chain.Submit(ctx, signed)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	return o.awaitConfirmation(ctx, result.TxHash)
}

// awaitConfirmation polls every PollInterval up to MaxRetries; a not-found
// condition is treated as "not yet" and retried, any other error surfaces
// immediately, and exhausting retries is a soft tick failure.
func (o *Orchestrator) awaitConfirmation(ctx context.Context, txHash string) error {
	for attempt := 0; attempt < o.cfg.MaxRetries; attempt++ {
		confirmed, err := o.chain.TxStatus(ctx, txHash)
		if err != nil {
			return fmt.Errorf("poll tx status: %w", err)
		}
		if confirmed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.cfg.PollInterval):
		}
	}
	return fmt.Errorf("tx %s not confirmed after %d attempts", txHash, o.cfg.MaxRetries)
}

func spendRedeemer(actionTag int) Redeemer.Redeemer {
	return Redeemer.Redeemer{
		Tag: Redeemer.SPEND,
		ExUnits: Redeemer.ExecutionUnits{
			Mem:   1_000_000,
			Steps: 500_000_000,
		},
		Data: PlutusData.PlutusData{
			Value: int64(actionTag),
		},
	}
}

// toApolloUTxO adapts our chain-agnostic UTxO view into the input outpoint
// shape Apollo's CollectFrom expects. The lovelace amount carried by each
// spent UTxO is read separately from chain.UTxO.Assets by the callers
// below, since it drives the PayToContract amount rather than anything
// Apollo needs from the Output side of this value at CollectFrom time.
func toApolloUTxO(u chain.UTxO) UTxO.UTxO {
	txID, _ := hex.DecodeString(u.TxHash)
	return UTxO.UTxO{
		Input: TransactionInput.TransactionInput{
			TransactionId: txID,
			Index:         int(u.Index),
		},
	}
}

func lovelaceAmount(u chain.UTxO) int {
	return int(u.Assets[chain.Lovelace])
}

func oracleFeedDatum(valueScaled, timestampMs int64) any {
	return PlutusData.PlutusIndefArray{
		{Value: valueScaled},
		{Value: timestampMs},
	}
}

func nodeFeedDatum(valueScaled, timestampMs int64) any {
	return PlutusData.PlutusIndefArray{
		{Value: valueScaled},
		{Value: timestampMs},
	}
}
