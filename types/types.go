// Package types defines the wire-level data model of the facilitator: payment
// requirements published by resource servers, the X-Payment header payloads
// signed by clients, and the verify/settle response shapes.
package types

import "encoding/json"

// X402Version is the protocol version this facilitator speaks.
const X402Version = 1

// Scheme identifies a payment mechanism.
type Scheme string

const (
	// SchemeTransfer is a native SOL transfer via the system program.
	SchemeTransfer Scheme = "solana-transfer"
	// SchemeSPL is an SPL token transfer between associated token accounts.
	SchemeSPL Scheme = "solana-spl"
)

// Valid reports whether the scheme is one the protocol knows about.
func (s Scheme) Valid() bool {
	return s == SchemeTransfer || s == SchemeSPL
}

// Network identifies a target Solana cluster.
type Network string

const (
	NetworkMainnet Network = "solana-mainnet"
	NetworkDevnet  Network = "solana-devnet"
	NetworkTestnet Network = "solana-testnet"
)

// Valid reports whether the network is a supported cluster.
func (n Network) Valid() bool {
	return n == NetworkMainnet || n == NetworkDevnet || n == NetworkTestnet
}

// AssetSOL is the asset value that selects the native-SOL scheme.
const AssetSOL = "SOL"

// LamportsPerSOLDecimals is the decimal precision of the native asset.
const LamportsPerSOLDecimals uint8 = 9

// RequirementExtra carries optional scheme hints attached to a requirement.
type RequirementExtra struct {
	// FeePayer is reserved for fee delegation. The facilitator never signs,
	// so the field is carried but not acted on.
	FeePayer string `json:"feePayer,omitempty"`
	// PriorityFee is a compute-unit price hint in microlamports.
	PriorityFee uint64 `json:"priorityFee,omitempty"`
	// Memo is an optional memo hint.
	Memo string `json:"memo,omitempty"`
}

// PaymentRequirement is one acceptable way to pay for a resource, published
// by the resource server inside a 402 response.
type PaymentRequirement struct {
	Scheme            Scheme            `json:"scheme" validate:"required"`
	Network           Network           `json:"network" validate:"required"`
	MaxAmountRequired string            `json:"maxAmountRequired" validate:"required"`
	Resource          string            `json:"resource,omitempty"`
	Description       string            `json:"description,omitempty"`
	MimeType          string            `json:"mimeType,omitempty"`
	OutputSchema      json.RawMessage   `json:"outputSchema,omitempty"`
	PayTo             string            `json:"payTo" validate:"required"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds,omitempty"`
	Asset             string            `json:"asset" validate:"required"`
	Extra             *RequirementExtra `json:"extra,omitempty"`
}

// TransferPayload is the scheme-specific payload of a solana-transfer payment.
// Amount is a decimal string of lamports; Timestamp is milliseconds since the
// Unix epoch. Transaction optionally carries the client's serialized signed
// transaction (base64) so settlement can submit it verbatim.
type TransferPayload struct {
	From        string `json:"from"`
	Signature   string `json:"signature"`
	Amount      string `json:"amount"`
	Timestamp   int64  `json:"timestamp"`
	Nonce       string `json:"nonce,omitempty"`
	Transaction string `json:"transaction,omitempty"`
}

// SPLPayload extends TransferPayload for SPL token transfers. Amount is in
// the token's atomic units.
type SPLPayload struct {
	TransferPayload
	Mint             string `json:"mint"`
	FromTokenAccount string `json:"fromTokenAccount"`
	ToTokenAccount   string `json:"toTokenAccount"`
}

// PaymentPayload is the decoded X-Payment envelope. Exactly one of Transfer
// or SPL is set, discriminated by Scheme.
type PaymentPayload struct {
	X402Version int
	Scheme      Scheme
	Network     Network

	Transfer *TransferPayload
	SPL      *SPLPayload
}

// Base returns the transfer-shaped view shared by both schemes, or nil when
// the envelope carries no payload.
func (p *PaymentPayload) Base() *TransferPayload {
	switch {
	case p.Transfer != nil:
		return p.Transfer
	case p.SPL != nil:
		return &p.SPL.TransferPayload
	}
	return nil
}

// VerifyResult is the verdict of a verification. InvalidReason is nil when
// the payment is valid.
type VerifyResult struct {
	IsValid       bool    `json:"isValid"`
	InvalidReason *string `json:"invalidReason"`
}

// Valid returns a passing verification verdict.
func Valid() *VerifyResult {
	return &VerifyResult{IsValid: true}
}

// Invalid returns a failing verdict carrying the code's human message.
func Invalid(code ErrorCode) *VerifyResult {
	msg := code.Message()
	return &VerifyResult{IsValid: false, InvalidReason: &msg}
}

// SettleResult is the outcome of a settlement attempt. TxHash is set when a
// transaction reached the chain, even if confirmation later failed.
type SettleResult struct {
	Success       bool    `json:"success"`
	Error         *string `json:"error"`
	TxHash        *string `json:"txHash"`
	NetworkID     *string `json:"networkId"`
	Confirmations uint64  `json:"confirmations,omitempty"`
}

// Settled returns a successful settlement result.
func Settled(txHash string, network Network, confirmations uint64) *SettleResult {
	id := string(network)
	return &SettleResult{
		Success:       true,
		TxHash:        &txHash,
		NetworkID:     &id,
		Confirmations: confirmations,
	}
}

// SettleFailure returns a failed settlement result with the given reason.
// txHash may be empty when nothing was submitted.
func SettleFailure(reason string, txHash string) *SettleResult {
	r := &SettleResult{Success: false, Error: &reason}
	if txHash != "" {
		r.TxHash = &txHash
	}
	return r
}

// SupportedKind is one (scheme, network) pair the facilitator can process.
type SupportedKind struct {
	Scheme  Scheme  `json:"scheme"`
	Network Network `json:"network"`
}

// SupportedResponse lists every supported payment kind.
type SupportedResponse struct {
	Kinds []SupportedKind `json:"kinds"`
}

// TransactionStatus is the response of the signature-status endpoint.
type TransactionStatus struct {
	Confirmed     bool   `json:"confirmed"`
	Confirmations uint64 `json:"confirmations,omitempty"`
	Error         string `json:"error,omitempty"`
}

// PaymentRequired is the 402 body a resource server sends to an unpaid
// client. Included for resource servers building on this module; the
// facilitator itself never emits it.
type PaymentRequired struct {
	X402Version int                  `json:"x402Version"`
	Accepts     []PaymentRequirement `json:"accepts"`
	Error       string               `json:"error,omitempty"`
}

// SettlementHeader is the X-Payment-Response body the resource server echoes
// back after a successful settlement.
type SettlementHeader struct {
	Success   bool   `json:"success"`
	TxHash    string `json:"txHash"`
	NetworkID string `json:"networkId"`
}
