package types

import (
	"encoding/base64"
	"encoding/json"
)

// paymentEnvelope is the raw JSON shape of the X-Payment header. The payload
// field stays opaque until the scheme discriminator selects its type.
type paymentEnvelope struct {
	X402Version int             `json:"x402Version"`
	Scheme      Scheme          `json:"scheme"`
	Network     Network         `json:"network"`
	Payload     json.RawMessage `json:"payload"`
}

// MarshalJSON serializes the envelope with the scheme-specific payload.
func (p PaymentPayload) MarshalJSON() ([]byte, error) {
	env := paymentEnvelope{
		X402Version: p.X402Version,
		Scheme:      p.Scheme,
		Network:     p.Network,
	}

	var inner interface{}
	switch {
	case p.SPL != nil:
		inner = p.SPL
	case p.Transfer != nil:
		inner = p.Transfer
	}
	if inner != nil {
		raw, err := json.Marshal(inner)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}

	return json.Marshal(env)
}

// UnmarshalJSON decodes the envelope, dispatching on the scheme discriminator
// before shape-checking the payload. Unknown schemes fail whole; no partial
// parse is ever exposed.
func (p *PaymentPayload) UnmarshalJSON(data []byte) error {
	var env paymentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	p.X402Version = env.X402Version
	p.Scheme = env.Scheme
	p.Network = env.Network
	p.Transfer = nil
	p.SPL = nil

	switch env.Scheme {
	case SchemeTransfer:
		var tp TransferPayload
		if err := json.Unmarshal(env.Payload, &tp); err != nil {
			return err
		}
		p.Transfer = &tp
	case SchemeSPL:
		var sp SPLPayload
		if err := json.Unmarshal(env.Payload, &sp); err != nil {
			return err
		}
		p.SPL = &sp
	default:
		return NewPaymentError(ErrInvalidScheme)
	}

	return nil
}

// EncodePaymentHeader serializes a payload to the X-Payment header value:
// standard padded base64 of the UTF-8 JSON envelope.
func EncodePaymentHeader(p *PaymentPayload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodePaymentHeader parses an X-Payment header value. Any failure, whether
// base64, JSON, or an unknown scheme, yields INVALID_PAYLOAD; decoding is
// total-failing.
func DecodePaymentHeader(header string) (*PaymentPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, NewPaymentError(ErrInvalidPayload)
	}

	var p PaymentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, NewPaymentError(ErrInvalidPayload)
	}
	return &p, nil
}
