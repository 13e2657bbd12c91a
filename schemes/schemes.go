// Package schemes holds the contract shared by the payment scheme engines
// and the verification and settlement helpers both of them compose.
package schemes

import (
	"context"
	"encoding/base64"
	"time"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"

	"github.com/x402-solana/facilitator-go/chain"
	"github.com/x402-solana/facilitator-go/logger"
	"github.com/x402-solana/facilitator-go/types"
)

// Engine is the per-(scheme, network) verification and settlement logic.
// Verify is pure; every rejection carries a human-readable reason. Settle
// re-verifies, probes for an already-landed signature, and never submits
// twice. The decimals parameter is the asset precision resolved by the
// facilitator: 9 for native SOL, the mint's decimals for SPL.
type Engine interface {
	Scheme() types.Scheme
	Network() types.Network
	Verify(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirement, decimals uint8) *types.VerifyResult
	Settle(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirement, decimals uint8) *types.SettleResult
}

// FreshnessWindow is the replay window: payloads older than this are
// rejected. The boundary value itself passes.
const FreshnessWindow = 5 * time.Minute

// DefaultConfirmTimeout bounds the confirmation await, inside the enclosing
// request deadline.
const DefaultConfirmTimeout = 30 * time.Second

// CheckSignatureFormat rejects strings that cannot be a base58 ed25519
// transaction signature. Encoded signatures are 87 or 88 characters.
func CheckSignatureFormat(sig string) *types.VerifyResult {
	if len(sig) < 87 || len(sig) > 88 {
		return types.Invalid(types.ErrInvalidSignature)
	}
	if _, err := solana.SignatureFromBase58(sig); err != nil {
		return types.Invalid(types.ErrInvalidSignature)
	}
	return nil
}

// CheckSender rejects invalid base58 public keys.
func CheckSender(from string) *types.VerifyResult {
	if _, err := solana.PublicKeyFromBase58(from); err != nil {
		return types.Invalid(types.ErrInvalidAddress)
	}
	return nil
}

// CheckAmount compares the payload's atomic amount against the requirement's
// human-readable minimum at the given precision.
func CheckAmount(amount, required string, decimals uint8) *types.VerifyResult {
	paid, err := types.ParseAtomic(amount)
	if err != nil {
		return types.Invalid(types.ErrInvalidAmount)
	}
	want, err := types.ToAtomic(required, decimals)
	if err != nil {
		return types.Invalid(types.ErrInvalidAmount)
	}
	if paid.Cmp(want) < 0 {
		return types.Invalid(types.ErrInsufficientAmount)
	}
	return nil
}

// CheckFreshness enforces the replay window on a millisecond timestamp.
func CheckFreshness(timestampMillis int64) *types.VerifyResult {
	if time.Now().UnixMilli()-timestampMillis > FreshnessWindow.Milliseconds() {
		return types.Invalid(types.ErrPayloadExpired)
	}
	return nil
}

// DecodeSignedTransaction parses a base64 serialized signed transaction.
func DecodeSignedTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	return solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
}

// SubmitAndConfirm sends a prepared transaction and blocks until confirmed
// commitment or the timeout. A timed-out confirmation does not retract the
// submission; a later settle observes it via the idempotency probe.
func SubmitAndConfirm(ctx context.Context, client chain.Client, log logger.Logger, tx *solana.Transaction, timeout time.Duration) *types.SettleResult {
	sig, err := client.SendRawTransaction(ctx, tx)
	if err != nil {
		log.Warn("transaction submission failed", map[string]any{
			"network": string(client.Network()),
			"error":   err.Error(),
		})
		return types.SettleFailure(types.ErrTransactionRejected.Message(), "")
	}

	confirmations, err := client.ConfirmTransaction(ctx, sig, timeout)
	if err != nil {
		log.Warn("confirmation did not complete", map[string]any{
			"signature": sig.String(),
			"network":   string(client.Network()),
			"error":     err.Error(),
		})
		return types.SettleFailure(types.ErrConfirmationTimeout.Message(), sig.String())
	}

	log.Info("payment settled", map[string]any{
		"signature": sig.String(),
		"network":   string(client.Network()),
	})
	return types.Settled(sig.String(), client.Network(), confirmations)
}
