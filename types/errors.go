package types

import "fmt"

// ErrorCode is a stable machine-readable code attached to every rejection.
type ErrorCode string

// Decode / shape errors.
const (
	ErrInvalidPayload         ErrorCode = "INVALID_PAYLOAD"
	ErrInvalidScheme          ErrorCode = "INVALID_SCHEME"
	ErrInvalidNetwork         ErrorCode = "INVALID_NETWORK"
	ErrInvalidPayTo           ErrorCode = "INVALID_PAY_TO"
	ErrMissingAsset           ErrorCode = "MISSING_ASSET"
	ErrInvalidAssetScheme     ErrorCode = "INVALID_ASSET_SCHEME"
	ErrInvalidAmount          ErrorCode = "INVALID_AMOUNT"
	ErrUnsupportedX402Version ErrorCode = "UNSUPPORTED_X402_VERSION"
)

// Verification (soft) errors — returned in the response body with isValid=false.
const (
	ErrSchemeMismatch          ErrorCode = "SCHEME_MISMATCH"
	ErrNetworkMismatch         ErrorCode = "NETWORK_MISMATCH"
	ErrInvalidSignature        ErrorCode = "INVALID_SIGNATURE"
	ErrInvalidAddress          ErrorCode = "INVALID_ADDRESS"
	ErrMintMismatch            ErrorCode = "MINT_MISMATCH"
	ErrInvalidFromTokenAccount ErrorCode = "INVALID_FROM_TOKEN_ACCOUNT"
	ErrInvalidToTokenAccount   ErrorCode = "INVALID_TO_TOKEN_ACCOUNT"
	ErrInsufficientAmount      ErrorCode = "INSUFFICIENT_AMOUNT"
	ErrPayloadExpired          ErrorCode = "PAYLOAD_EXPIRED"
)

// Settlement (hard) errors.
const (
	ErrConfirmationTimeout ErrorCode = "CONFIRMATION_TIMEOUT"
	ErrTransactionRejected ErrorCode = "TRANSACTION_REJECTED"
	ErrChainRPC            ErrorCode = "CHAIN_RPC_ERROR"
)

// Service errors.
const (
	ErrUnsupportedNetwork ErrorCode = "UNSUPPORTED_NETWORK"
	ErrUnsupportedScheme  ErrorCode = "UNSUPPORTED_SCHEME"
)

var errorMessages = map[ErrorCode]string{
	ErrInvalidPayload:         "Malformed payment header",
	ErrInvalidScheme:          "Invalid payment scheme",
	ErrInvalidNetwork:         "Invalid network",
	ErrInvalidPayTo:           "Invalid payTo address",
	ErrMissingAsset:           "Missing asset",
	ErrInvalidAssetScheme:     "Asset does not match payment scheme",
	ErrInvalidAmount:          "Invalid payment amount",
	ErrUnsupportedX402Version: "Unsupported x402 version",

	ErrSchemeMismatch:          "Payment scheme does not match requirements",
	ErrNetworkMismatch:         "Payment network does not match requirements",
	ErrInvalidSignature:        "Invalid transaction signature",
	ErrInvalidAddress:          "Invalid sender address",
	ErrMintMismatch:            "Mint does not match required asset",
	ErrInvalidFromTokenAccount: "Invalid from token account",
	ErrInvalidToTokenAccount:   "Invalid to token account",
	ErrInsufficientAmount:      "Insufficient payment amount",
	ErrPayloadExpired:          "Payment payload expired",

	ErrConfirmationTimeout: "confirmation timeout",
	ErrTransactionRejected: "Transaction rejected by the network",
	ErrChainRPC:            "Chain RPC error",

	ErrUnsupportedNetwork: "Unsupported network",
	ErrUnsupportedScheme:  "Unsupported payment scheme",
}

// Message returns the human-readable message for the code. Unknown codes
// fall back to the code itself.
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return string(c)
}

// PaymentError pairs a machine code with its human message. Validation and
// decoding return it as a regular error value; it is never thrown across
// request boundaries.
type PaymentError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPaymentError creates a PaymentError with the code's canonical message.
func NewPaymentError(code ErrorCode) *PaymentError {
	return &PaymentError{Code: code, Message: code.Message()}
}
