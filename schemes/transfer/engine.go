// Package transfer implements the solana-transfer payment scheme: a native
// SOL transfer from the payer to the resource server's wallet.
package transfer

import (
	"context"
	"time"

	solana "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/x402-solana/facilitator-go/chain"
	"github.com/x402-solana/facilitator-go/logger"
	"github.com/x402-solana/facilitator-go/schemes"
	"github.com/x402-solana/facilitator-go/types"
)

// Engine verifies and settles native SOL payments on one network.
type Engine struct {
	network        types.Network
	chain          chain.Client
	log            logger.Logger
	confirmTimeout time.Duration
}

var _ schemes.Engine = (*Engine)(nil)

// New builds a transfer engine bound to a network's chain client.
func New(network types.Network, client chain.Client, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Engine{
		network:        network,
		chain:          client,
		log:            log,
		confirmTimeout: schemes.DefaultConfirmTimeout,
	}
}

func (e *Engine) Scheme() types.Scheme   { return types.SchemeTransfer }
func (e *Engine) Network() types.Network { return e.network }

// Verify checks a native SOL payment against the requirement. It is pure:
// no RPC is performed and repeated calls yield identical verdicts. Checks
// run most-specific first so the clearest rejection reason wins.
func (e *Engine) Verify(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirement, decimals uint8) *types.VerifyResult {
	_ = ctx

	if payload.Scheme != types.SchemeTransfer || payload.Transfer == nil {
		return types.Invalid(types.ErrSchemeMismatch)
	}
	if payload.Network != req.Network {
		return types.Invalid(types.ErrNetworkMismatch)
	}

	p := payload.Transfer
	if r := schemes.CheckSignatureFormat(p.Signature); r != nil {
		return r
	}
	if r := schemes.CheckSender(p.From); r != nil {
		return r
	}
	if r := schemes.CheckAmount(p.Amount, req.MaxAmountRequired, decimals); r != nil {
		return r
	}
	if r := schemes.CheckFreshness(p.Timestamp); r != nil {
		return r
	}
	return types.Valid()
}

// Settle re-verifies, probes for an already-landed signature, then submits
// the transaction and awaits confirmed commitment. Observing the signature
// on chain during the probe is the happy path for retries, not an error.
func (e *Engine) Settle(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirement, decimals uint8) *types.SettleResult {
	if v := e.Verify(ctx, payload, req, decimals); !v.IsValid {
		return types.SettleFailure(*v.InvalidReason, "")
	}
	p := payload.Transfer

	sig, err := solana.SignatureFromBase58(p.Signature)
	if err != nil {
		return types.SettleFailure(types.ErrInvalidSignature.Message(), "")
	}

	// Idempotency probe. Never submit a landed signature twice.
	rec, err := e.chain.GetTransaction(ctx, sig)
	if err != nil {
		return types.SettleFailure(types.ErrChainRPC.Message(), "")
	}
	if rec != nil {
		e.log.Info("payment already settled", map[string]any{
			"signature": sig.String(),
			"network":   string(e.network),
		})
		return types.Settled(sig.String(), e.network, 0)
	}

	// Prefer the client's serialized signed bytes; reconstruction is the
	// fallback when the payload omits them.
	var tx *solana.Transaction
	if p.Transaction != "" {
		tx, err = schemes.DecodeSignedTransaction(p.Transaction)
	} else {
		tx, err = e.rebuild(ctx, p, req, sig)
	}
	if err != nil {
		e.log.Warn("failed to prepare transaction", map[string]any{"error": err.Error()})
		return types.SettleFailure(types.ErrTransactionRejected.Message(), "")
	}

	return schemes.SubmitAndConfirm(ctx, e.chain, e.log, tx, e.confirmTimeout)
}

// rebuild reconstructs the single System.transfer the client signed, using
// payload values for sender and amount and the current blockhash, with the
// sender as fee payer. The pre-signed blob is authoritative when present.
func (e *Engine) rebuild(ctx context.Context, p *types.TransferPayload, req *types.PaymentRequirement, sig solana.Signature) (*solana.Transaction, error) {
	from := solana.MustPublicKeyFromBase58(p.From)
	to, err := solana.PublicKeyFromBase58(req.PayTo)
	if err != nil {
		return nil, err
	}
	lamports, err := types.ParseAtomic(p.Amount)
	if err != nil {
		return nil, err
	}

	blockhash, err := e.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	builder := solana.NewTransactionBuilder().
		SetRecentBlockHash(blockhash).
		SetFeePayer(from)

	if req.Extra != nil && req.Extra.PriorityFee > 0 {
		cuPrice, err := computebudget.NewSetComputeUnitPriceInstructionBuilder().
			SetMicroLamports(req.Extra.PriorityFee).
			ValidateAndBuild()
		if err != nil {
			return nil, err
		}
		builder.AddInstruction(cuPrice)
	}

	builder.AddInstruction(
		system.NewTransferInstruction(lamports.Uint64(), from, to).Build(),
	)

	tx, err := builder.Build()
	if err != nil {
		return nil, err
	}

	// Submit without re-signing: carry the client's signature as-is.
	tx.Signatures = []solana.Signature{sig}
	return tx, nil
}
