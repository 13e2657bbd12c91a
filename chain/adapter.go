// Package chain is a thin capability over a Solana JSON-RPC endpoint. One
// adapter is built per network and shared by every scheme engine on it.
package chain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/x402-solana/facilitator-go/logger"
	"github.com/x402-solana/facilitator-go/types"
)

// Client is the chain capability the scheme engines and the facilitator rely
// on. Lookups return (nil, nil) when the queried object does not exist, so
// "not found" is always distinguishable from an RPC failure.
type Client interface {
	Network() types.Network
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	GetTransaction(ctx context.Context, sig solana.Signature) (*TransactionRecord, error)
	SendRawTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	ConfirmTransaction(ctx context.Context, sig solana.Signature, timeout time.Duration) (uint64, error)
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)
	GetMintInfo(ctx context.Context, mint solana.PublicKey) (*MintInfo, error)
	AccountExists(ctx context.Context, pk solana.PublicKey) (bool, error)
}

// TransactionRecord is a confirmed transaction as seen by the idempotency
// probe.
type TransactionRecord struct {
	Signature solana.Signature
	Slot      uint64
	Err       interface{}
}

// SignatureStatus mirrors the getSignatureStatuses response for one
// signature.
type SignatureStatus struct {
	ConfirmationStatus string
	Confirmations      uint64
	Err                interface{}
}

// Confirmed reports whether the signature reached at least confirmed
// commitment without a transaction error.
func (s *SignatureStatus) Confirmed() bool {
	if s == nil || s.Err != nil {
		return false
	}
	return s.ConfirmationStatus == string(rpc.ConfirmationStatusConfirmed) ||
		s.ConfirmationStatus == string(rpc.ConfirmationStatusFinalized)
}

// MintInfo is the decoded state of an SPL mint account.
type MintInfo struct {
	Decimals uint8
	Supply   uint64
}

// ChainError wraps a transport or node failure. Every error leaving the
// adapter is one of these.
type ChainError struct {
	Op      string
	Network types.Network
	Err     error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain %s on %s: %v", e.Op, e.Network, e.Err)
}

func (e *ChainError) Unwrap() error { return e.Err }

// RPCURL resolves the JSON-RPC endpoint for a network from the environment,
// falling back to the public cluster endpoint.
func RPCURL(network types.Network) string {
	switch network {
	case types.NetworkMainnet:
		if url := os.Getenv("SOLANA_MAINNET_RPC"); url != "" {
			return url
		}
		return rpc.MainNetBeta_RPC
	case types.NetworkDevnet:
		if url := os.Getenv("SOLANA_DEVNET_RPC"); url != "" {
			return url
		}
		return rpc.DevNet_RPC
	case types.NetworkTestnet:
		if url := os.Getenv("SOLANA_TESTNET_RPC"); url != "" {
			return url
		}
		return rpc.TestNet_RPC
	}
	return rpc.DevNet_RPC
}

// Adapter implements Client over a gagliardetto/solana-go RPC client.
type Adapter struct {
	network types.Network
	client  *rpc.Client
	log     logger.Logger
}

var _ Client = (*Adapter)(nil)

// NewAdapter builds an adapter for the network using the given RPC endpoint.
func NewAdapter(network types.Network, rpcURL string, log logger.Logger) *Adapter {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Adapter{
		network: network,
		client:  rpc.New(rpcURL),
		log:     log,
	}
}

func (a *Adapter) Network() types.Network { return a.network }

func (a *Adapter) wrap(op string, err error) error {
	return &ChainError{Op: op, Network: a.network, Err: err}
}

// LatestBlockhash fetches a recent blockhash at confirmed commitment.
func (a *Adapter) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := a.client.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, a.wrap("getLatestBlockhash", err)
	}
	return out.Value.Blockhash, nil
}

// GetTransaction looks up a confirmed transaction. A missing transaction is
// (nil, nil), not an error.
func (a *Adapter) GetTransaction(ctx context.Context, sig solana.Signature) (*TransactionRecord, error) {
	maxVersion := uint64(0)
	out, err := a.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, a.wrap("getTransaction", err)
	}
	if out == nil {
		return nil, nil
	}

	rec := &TransactionRecord{Signature: sig, Slot: out.Slot}
	if out.Meta != nil {
		rec.Err = out.Meta.Err
	}
	return rec, nil
}

// SendRawTransaction submits a serialized signed transaction. Preflight is
// skipped: the facilitator forwards pre-signed blobs and lets the cluster be
// the judge.
func (a *Adapter) SendRawTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := a.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, a.wrap("sendTransaction", err)
	}
	return sig, nil
}

// ConfirmTransaction polls until the signature reaches confirmed commitment,
// the transaction fails on chain, or the timeout elapses. It returns the
// confirmation count reported by the node (0 when already finalized).
func (a *Adapter) ConfirmTransaction(ctx context.Context, sig solana.Signature, timeout time.Duration) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		status, err := a.GetSignatureStatus(ctx, sig)
		if err != nil {
			return 0, err
		}
		if status != nil {
			if status.Err != nil {
				return 0, a.wrap("confirmTransaction", fmt.Errorf("transaction failed on chain: %v", status.Err))
			}
			if status.Confirmed() {
				return status.Confirmations, nil
			}
		}

		select {
		case <-ctx.Done():
			return 0, a.wrap("confirmTransaction", ctx.Err())
		case <-ticker.C:
		}
	}
}

// GetSignatureStatus queries a single signature, searching transaction
// history. Unknown signatures are (nil, nil).
func (a *Adapter) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	out, err := a.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, a.wrap("getSignatureStatuses", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return nil, nil
	}

	v := out.Value[0]
	status := &SignatureStatus{
		ConfirmationStatus: string(v.ConfirmationStatus),
		Err:                v.Err,
	}
	if v.Confirmations != nil {
		status.Confirmations = *v.Confirmations
	}
	return status, nil
}

// GetMintInfo fetches and decodes an SPL mint account. Fails when the account
// is missing or is not owned by the token program.
func (a *Adapter) GetMintInfo(ctx context.Context, mint solana.PublicKey) (*MintInfo, error) {
	out, err := a.client.GetAccountInfo(ctx, mint)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, a.wrap("getMintInfo", fmt.Errorf("mint account %s not found", mint))
		}
		return nil, a.wrap("getMintInfo", err)
	}
	if out == nil || out.Value == nil {
		return nil, a.wrap("getMintInfo", fmt.Errorf("mint account %s not found", mint))
	}
	if !out.Value.Owner.Equals(solana.TokenProgramID) {
		return nil, a.wrap("getMintInfo", fmt.Errorf("account %s is not an SPL mint", mint))
	}

	var data token.Mint
	if err := bin.NewBinDecoder(out.Value.Data.GetBinary()).Decode(&data); err != nil {
		return nil, a.wrap("getMintInfo", fmt.Errorf("decode mint data: %w", err))
	}

	return &MintInfo{Decimals: data.Decimals, Supply: data.Supply}, nil
}

// AccountExists reports whether an account is present on chain. Used for the
// recipient ATA probe before settlement.
func (a *Adapter) AccountExists(ctx context.Context, pk solana.PublicKey) (bool, error) {
	out, err := a.client.GetAccountInfo(ctx, pk)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, a.wrap("getAccountInfo", err)
	}
	return out != nil && out.Value != nil, nil
}
