// Package facilitator orchestrates payment verification and settlement. It
// owns the scheme→network engine registry, routes decoded payment headers to
// the right engine, and resolves token decimals for SPL payments.
package facilitator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	solana "github.com/gagliardetto/solana-go"

	"github.com/x402-solana/facilitator-go/chain"
	"github.com/x402-solana/facilitator-go/logger"
	"github.com/x402-solana/facilitator-go/metrics"
	"github.com/x402-solana/facilitator-go/schemes"
	"github.com/x402-solana/facilitator-go/types"
)

// PaymentRequest is the body of /verify and /settle.
type PaymentRequest struct {
	X402Version         int                      `json:"x402Version"`
	PaymentHeader       string                   `json:"paymentHeader" binding:"required"`
	PaymentRequirements types.PaymentRequirement `json:"paymentRequirements" binding:"required"`
}

// Facilitator routes payments to scheme engines. The registry is populated
// at startup and fixed for the lifetime of the process; the mutex protects
// registration during wiring and the read paths afterwards.
type Facilitator struct {
	mu       sync.RWMutex
	engines  map[types.Scheme]map[types.Network]schemes.Engine
	chains   map[types.Network]chain.Client
	decimals *chain.DecimalsCache
	log      logger.Logger
	metrics  metrics.Recorder
}

// Option configures a Facilitator.
type Option func(*Facilitator)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(f *Facilitator) { f.log = log }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(rec metrics.Recorder) Option {
	return func(f *Facilitator) { f.metrics = rec }
}

// New creates an empty facilitator; engines and chains are registered by the
// caller during wiring.
func New(opts ...Option) *Facilitator {
	f := &Facilitator{
		engines:  make(map[types.Scheme]map[types.Network]schemes.Engine),
		chains:   make(map[types.Network]chain.Client),
		decimals: chain.NewDecimalsCache(),
		log:      logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// RegisterChain makes a per-network chain client available for decimals
// lookups and signature-status queries.
func (f *Facilitator) RegisterChain(c chain.Client) *Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chains[c.Network()] = c
	return f
}

// Register adds an engine for its (scheme, network) pair.
func (f *Facilitator) Register(e schemes.Engine) *Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.engines[e.Scheme()] == nil {
		f.engines[e.Scheme()] = make(map[types.Network]schemes.Engine)
	}
	f.engines[e.Scheme()][e.Network()] = e
	return f
}

// Verify decodes the payment header and checks it against the requirement.
// Every rejection is returned in the result body; Verify itself never fails.
func (f *Facilitator) Verify(ctx context.Context, req *PaymentRequest) *types.VerifyResult {
	start := time.Now()
	labels := map[string]string{"network": string(req.PaymentRequirements.Network)}
	defer func() { f.metrics.ObserveLatency("verify", time.Since(start), labels) }()

	engine, payload, decimals, perr := f.route(ctx, req)
	if perr != nil {
		f.metrics.IncCounter("verify_invalid", labels)
		return &types.VerifyResult{IsValid: false, InvalidReason: &perr.Message}
	}

	result := engine.Verify(ctx, payload, &req.PaymentRequirements, decimals)
	if result.IsValid {
		f.metrics.IncCounter("verify_valid", labels)
	} else {
		f.metrics.IncCounter("verify_invalid", labels)
	}
	return result
}

// Settle routes like Verify, then delegates to the engine's settlement. The
// engine re-verifies before touching the chain.
func (f *Facilitator) Settle(ctx context.Context, req *PaymentRequest) *types.SettleResult {
	start := time.Now()
	labels := map[string]string{"network": string(req.PaymentRequirements.Network)}
	defer func() { f.metrics.ObserveLatency("settle", time.Since(start), labels) }()

	engine, payload, decimals, perr := f.route(ctx, req)
	if perr != nil {
		f.metrics.IncCounter("settle_failure", labels)
		return types.SettleFailure(perr.Message, "")
	}

	result := engine.Settle(ctx, payload, &req.PaymentRequirements, decimals)
	if result.Success {
		f.metrics.IncCounter("settle_success", labels)
	} else {
		f.metrics.IncCounter("settle_failure", labels)
	}
	return result
}

// route runs the shared request pipeline: version gate, requirement
// validation, header decoding, scheme/network consistency, engine lookup,
// and decimals resolution.
func (f *Facilitator) route(ctx context.Context, req *PaymentRequest) (schemes.Engine, *types.PaymentPayload, uint8, *types.PaymentError) {
	if req.X402Version != types.X402Version {
		return nil, nil, 0, types.NewPaymentError(types.ErrUnsupportedX402Version)
	}

	if err := types.ValidateRequirement(&req.PaymentRequirements); err != nil {
		var perr *types.PaymentError
		if errors.As(err, &perr) {
			return nil, nil, 0, perr
		}
		return nil, nil, 0, types.NewPaymentError(types.ErrInvalidPayload)
	}

	payload, err := types.DecodePaymentHeader(req.PaymentHeader)
	if err != nil {
		return nil, nil, 0, types.NewPaymentError(types.ErrInvalidPayload)
	}

	if payload.Scheme != req.PaymentRequirements.Scheme {
		return nil, nil, 0, types.NewPaymentError(types.ErrSchemeMismatch)
	}
	if payload.Network != req.PaymentRequirements.Network {
		return nil, nil, 0, types.NewPaymentError(types.ErrNetworkMismatch)
	}

	f.mu.RLock()
	byNetwork, ok := f.engines[payload.Scheme]
	var engine schemes.Engine
	if ok {
		engine = byNetwork[payload.Network]
	}
	f.mu.RUnlock()

	if !ok {
		return nil, nil, 0, types.NewPaymentError(types.ErrUnsupportedScheme)
	}
	if engine == nil {
		return nil, nil, 0, types.NewPaymentError(types.ErrUnsupportedNetwork)
	}

	decimals := types.LamportsPerSOLDecimals
	if payload.Scheme == types.SchemeSPL {
		decimals = f.resolveDecimals(ctx, payload.Network, req.PaymentRequirements.Asset)
	}

	return engine, payload, decimals, nil
}

// resolveDecimals returns the token precision for a mint: the stablecoin
// table first, then a mint lookup (cached forever), then a fallback of 9
// with a warning.
func (f *Facilitator) resolveDecimals(ctx context.Context, network types.Network, mint string) uint8 {
	if d, ok := f.decimals.Get(network, mint); ok {
		return d
	}

	f.mu.RLock()
	client := f.chains[network]
	f.mu.RUnlock()

	if client != nil {
		if pk, err := solana.PublicKeyFromBase58(mint); err == nil {
			if info, err := client.GetMintInfo(ctx, pk); err == nil {
				f.decimals.Put(network, mint, info.Decimals)
				return info.Decimals
			}
		}
	}

	f.log.Warn("could not resolve mint decimals, assuming 9", map[string]any{
		"mint":    mint,
		"network": string(network),
	})
	return types.LamportsPerSOLDecimals
}

// Supported returns every registered (scheme, network) pair.
func (f *Facilitator) Supported() types.SupportedResponse {
	f.mu.RLock()
	defer f.mu.RUnlock()

	kinds := []types.SupportedKind{}
	for scheme, byNetwork := range f.engines {
		for network := range byNetwork {
			kinds = append(kinds, types.SupportedKind{Scheme: scheme, Network: network})
		}
	}
	return types.SupportedResponse{Kinds: kinds}
}

// TransactionStatus queries a signature's confirmation status on a network.
// The per-network chain client is shared by both schemes, so one query
// serves either.
func (f *Facilitator) TransactionStatus(ctx context.Context, network types.Network, signature string) (*types.TransactionStatus, error) {
	f.mu.RLock()
	client := f.chains[network]
	f.mu.RUnlock()

	if client == nil {
		return nil, types.NewPaymentError(types.ErrUnsupportedNetwork)
	}

	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, types.NewPaymentError(types.ErrInvalidSignature)
	}

	status, err := client.GetSignatureStatus(ctx, sig)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return &types.TransactionStatus{Confirmed: false}, nil
	}

	out := &types.TransactionStatus{
		Confirmed:     status.Confirmed(),
		Confirmations: status.Confirmations,
	}
	if status.Err != nil {
		out.Error = fmt.Sprintf("%v", status.Err)
	}
	return out, nil
}
