package types

import (
	solana "github.com/gagliardetto/solana-go"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"
)

var validate = validator.New()

// ValidateRequirement checks a PaymentRequirement against the protocol's
// cross-field invariants. It performs no network I/O. The returned error is
// always a *PaymentError carrying the most specific applicable code.
func ValidateRequirement(req *PaymentRequirement) error {
	if err := validate.Struct(req); err != nil {
		if fields, ok := err.(validator.ValidationErrors); ok && len(fields) > 0 {
			return NewPaymentError(requiredFieldCode(fields[0].Field()))
		}
		return NewPaymentError(ErrInvalidPayload)
	}

	if !req.Scheme.Valid() {
		return NewPaymentError(ErrInvalidScheme)
	}
	if !req.Network.Valid() {
		return NewPaymentError(ErrInvalidNetwork)
	}

	// scheme = solana-transfer <=> asset = SOL; SPL assets must be real mints.
	switch req.Scheme {
	case SchemeTransfer:
		if req.Asset != AssetSOL {
			return NewPaymentError(ErrInvalidAssetScheme)
		}
	case SchemeSPL:
		if req.Asset == AssetSOL {
			return NewPaymentError(ErrInvalidAssetScheme)
		}
		if _, err := solana.PublicKeyFromBase58(req.Asset); err != nil {
			return NewPaymentError(ErrInvalidAssetScheme)
		}
	}

	if _, err := solana.PublicKeyFromBase58(req.PayTo); err != nil {
		return NewPaymentError(ErrInvalidPayTo)
	}

	if d, err := decimal.NewFromString(req.MaxAmountRequired); err != nil || !d.IsPositive() {
		return NewPaymentError(ErrInvalidAmount)
	}

	if len(req.OutputSchema) > 0 {
		loader := gojsonschema.NewBytesLoader(req.OutputSchema)
		if _, err := gojsonschema.NewSchema(loader); err != nil {
			return NewPaymentError(ErrInvalidPayload)
		}
	}

	return nil
}

func requiredFieldCode(field string) ErrorCode {
	switch field {
	case "Scheme":
		return ErrInvalidScheme
	case "Network":
		return ErrInvalidNetwork
	case "PayTo":
		return ErrInvalidPayTo
	case "Asset":
		return ErrMissingAsset
	case "MaxAmountRequired":
		return ErrInvalidAmount
	}
	return ErrInvalidPayload
}
