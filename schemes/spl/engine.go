// Package spl implements the solana-spl payment scheme: an SPL token
// transfer between associated token accounts, with on-demand creation of
// the recipient's account.
package spl

import (
	"context"
	"time"

	solana "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/x402-solana/facilitator-go/chain"
	"github.com/x402-solana/facilitator-go/logger"
	"github.com/x402-solana/facilitator-go/schemes"
	"github.com/x402-solana/facilitator-go/types"
)

// Engine verifies and settles SPL token payments on one network. The asset's
// decimals are resolved by the facilitator and passed in; the engine never
// looks them up itself.
type Engine struct {
	network        types.Network
	chain          chain.Client
	log            logger.Logger
	confirmTimeout time.Duration
}

var _ schemes.Engine = (*Engine)(nil)

// New builds an SPL engine bound to a network's chain client.
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

func (e *Engine) Scheme() types.Scheme   { return types.SchemeSPL }
func (e *Engine) Network() types.Network { return e.network }

// Verify checks an SPL payment against the requirement. ATA checks are
// deterministic program derivations; no RPC is performed. Checks run
// most-specific first so the clearest rejection reason wins.
func (e *Engine) Verify(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirement, decimals uint8) *types.VerifyResult {
	_ = ctx

	if payload.Scheme != types.SchemeSPL || payload.SPL == nil {
		return types.Invalid(types.ErrSchemeMismatch)
	}
	if payload.Network != req.Network {
		return types.Invalid(types.ErrNetworkMismatch)
	}

	p := payload.SPL
	if r := schemes.CheckSignatureFormat(p.Signature); r != nil {
		return r
	}
	if r := schemes.CheckSender(p.From); r != nil {
		return r
	}

	if p.Mint != req.Asset {
		return types.Invalid(types.ErrMintMismatch)
	}

	mint, err := solana.PublicKeyFromBase58(p.Mint)
	if err != nil {
		return types.Invalid(types.ErrMintMismatch)
	}
	from := solana.MustPublicKeyFromBase58(p.From)
	payTo, err := solana.PublicKeyFromBase58(req.PayTo)
	if err != nil {
		return types.Invalid(types.ErrInvalidAddress)
	}

	fromATA, _, err := solana.FindAssociatedTokenAddress(from, mint)
	if err != nil || p.FromTokenAccount != fromATA.String() {
		return types.Invalid(types.ErrInvalidFromTokenAccount)
	}
	toATA, _, err := solana.FindAssociatedTokenAddress(payTo, mint)
	if err != nil || p.ToTokenAccount != toATA.String() {
		return types.Invalid(types.ErrInvalidToTokenAccount)
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
// the transaction and awaits confirmed commitment. When reconstructing and
// the recipient's token account does not exist yet, its creation is
// prepended to the transfer.
func (e *Engine) Settle(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirement, decimals uint8) *types.SettleResult {
	if v := e.Verify(ctx, payload, req, decimals); !v.IsValid {
		return types.SettleFailure(*v.InvalidReason, "")
	}
	p := payload.SPL

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

	var tx *solana.Transaction
	if p.Transaction != "" {
		tx, err = schemes.DecodeSignedTransaction(p.Transaction)
	} else {
		tx, err = e.rebuild(ctx, p, req, decimals, sig)
	}
	if err != nil {
		e.log.Warn("failed to prepare transaction", map[string]any{"error": err.Error()})
		return types.SettleFailure(types.ErrTransactionRejected.Message(), "")
	}

	return schemes.SubmitAndConfirm(ctx, e.chain, e.log, tx, e.confirmTimeout)
}

// rebuild reconstructs the instruction sequence the client signed: an
// optional recipient-ATA creation, then a TransferChecked between the
// derived token accounts, with the sender as fee payer.
func (e *Engine) rebuild(ctx context.Context, p *types.SPLPayload, req *types.PaymentRequirement, decimals uint8, sig solana.Signature) (*solana.Transaction, error) {
	from := solana.MustPublicKeyFromBase58(p.From)
	mint := solana.MustPublicKeyFromBase58(p.Mint)
	payTo := solana.MustPublicKeyFromBase58(req.PayTo)
	fromATA := solana.MustPublicKeyFromBase58(p.FromTokenAccount)
	toATA := solana.MustPublicKeyFromBase58(p.ToTokenAccount)

	amount, err := types.ParseAtomic(p.Amount)
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

	exists, err := e.chain.AccountExists(ctx, toATA)
	if err != nil {
		return nil, err
	}
	if !exists {
		e.log.Info("recipient token account missing, creating", map[string]any{
			"account": toATA.String(),
			"mint":    mint.String(),
		})
		builder.AddInstruction(
			associatedtokenaccount.NewCreateInstruction(from, payTo, mint).Build(),
		)
	}

	transferIx, err := token.NewTransferCheckedInstructionBuilder().
		SetAmount(amount.Uint64()).
		SetDecimals(decimals).
		SetSourceAccount(fromATA).
		SetMintAccount(mint).
		SetDestinationAccount(toATA).
		SetOwnerAccount(from).
		ValidateAndBuild()
	if err != nil {
		return nil, err
	}
	builder.AddInstruction(transferIx)

	tx, err := builder.Build()
	if err != nil {
		return nil, err
	}

	// Submit without re-signing: carry the client's signature as-is.
	tx.Signatures = []solana.Signature{sig}
	return tx, nil
}
