package transfer

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402-solana/facilitator-go/chain"
	"github.com/x402-solana/facilitator-go/types"
)

const (
	testFrom  = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
	testPayTo = "D1KH1UwfTLmBg3fqSFfcaa9cb4LV44RpUjveAsCWhoHc"
)

// stubChain is a canned chain client. Settlement paths drive it; Verify must
// never touch it.
type stubChain struct {
	network types.Network

	txRecord   *chain.TransactionRecord
	txErr      error
	sendErr    error
	confirmErr error
	confirms   uint64
	exists     bool

	sentTx    *solana.Transaction
	sendCalls int
	getCalls  int
}

func (s *stubChain) Network() types.Network { return s.network }

func (s *stubChain) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return solana.Hash{}, nil
}

func (s *stubChain) GetTransaction(ctx context.Context, sig solana.Signature) (*chain.TransactionRecord, error) {
	s.getCalls++
	return s.txRecord, s.txErr
}

func (s *stubChain) SendRawTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	s.sendCalls++
	s.sentTx = tx
	if s.sendErr != nil {
		return solana.Signature{}, s.sendErr
	}
	return tx.Signatures[0], nil
}

func (s *stubChain) ConfirmTransaction(ctx context.Context, sig solana.Signature, timeout time.Duration) (uint64, error) {
	if s.confirmErr != nil {
		return 0, s.confirmErr
	}
	return s.confirms, nil
}

func (s *stubChain) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*chain.SignatureStatus, error) {
	return nil, nil
}

func (s *stubChain) GetMintInfo(ctx context.Context, mint solana.PublicKey) (*chain.MintInfo, error) {
	return nil, nil
}

func (s *stubChain) AccountExists(ctx context.Context, pk solana.PublicKey) (bool, error) {
	return s.exists, nil
}

func sigString(b byte) string {
	var sig solana.Signature
	for i := range sig {
		sig[i] = b
	}
	return sig.String()
}

func requirement() types.PaymentRequirement {
	return types.PaymentRequirement{
		Scheme:            types.SchemeTransfer,
		Network:           types.NetworkDevnet,
		MaxAmountRequired: "0.01",
		PayTo:             testPayTo,
		Asset:             types.AssetSOL,
	}
}

func payload() *types.PaymentPayload {
	return &types.PaymentPayload{
		X402Version: types.X402Version,
		Scheme:      types.SchemeTransfer,
		Network:     types.NetworkDevnet,
		Transfer: &types.TransferPayload{
			From:      testFrom,
			Signature: sigString(0xaa),
			Amount:    "10000000",
			Timestamp: time.Now().UnixMilli(),
		},
	}
}

func newEngine(stub *stubChain) *Engine {
	stub.network = types.NetworkDevnet
	return New(types.NetworkDevnet, stub, nil)
}

func TestVerifyAccepts(t *testing.T) {
	e := newEngine(&stubChain{})
	req := requirement()

	result := e.Verify(context.Background(), payload(), &req, 9)
	assert.True(t, result.IsValid)
	assert.Nil(t, result.InvalidReason)
}

func TestVerifyRejectionOrder(t *testing.T) {
	req := requirement()
	cases := []struct {
		name   string
		mutate func(*types.PaymentPayload)
		reason string
	}{
		{
			"scheme mismatch",
			func(p *types.PaymentPayload) { p.Scheme = types.SchemeSPL; p.SPL = &types.SPLPayload{}; p.Transfer = nil },
			types.ErrSchemeMismatch.Message(),
		},
		{
			"network mismatch",
			func(p *types.PaymentPayload) { p.Network = types.NetworkMainnet },
			types.ErrNetworkMismatch.Message(),
		},
		{
			"bad signature beats bad amount",
			func(p *types.PaymentPayload) { p.Transfer.Signature = "short"; p.Transfer.Amount = "1" },
			types.ErrInvalidSignature.Message(),
		},
		{
			"bad sender",
			func(p *types.PaymentPayload) { p.Transfer.From = "nope" },
			types.ErrInvalidAddress.Message(),
		},
		{
			"underpayment",
			func(p *types.PaymentPayload) { p.Transfer.Amount = "9999999" },
			"Insufficient payment amount",
		},
		{
			"amount beats freshness",
			func(p *types.PaymentPayload) {
				p.Transfer.Amount = "9999999"
				p.Transfer.Timestamp = time.Now().Add(-time.Hour).UnixMilli()
			},
			"Insufficient payment amount",
		},
		{
			"expired",
			func(p *types.PaymentPayload) { p.Transfer.Timestamp = time.Now().UnixMilli() - 301_000 },
			"Payment payload expired",
		},
	}

	e := newEngine(&stubChain{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := payload()
			tc.mutate(p)

			result := e.Verify(context.Background(), p, &req, 9)
			require.False(t, result.IsValid)
			assert.Equal(t, tc.reason, *result.InvalidReason)
		})
	}
}

func TestVerifyIsPure(t *testing.T) {
	stub := &stubChain{}
	e := newEngine(stub)
	req := requirement()
	p := payload()

	first := e.Verify(context.Background(), p, &req, 9)
	second := e.Verify(context.Background(), p, &req, 9)

	assert.Equal(t, first, second)
	assert.Zero(t, stub.getCalls)
	assert.Zero(t, stub.sendCalls)
}

func TestSettleIdempotent(t *testing.T) {
	p := payload()
	sig := p.Transfer.Signature
	stub := &stubChain{txRecord: &chain.TransactionRecord{Slot: 42}}
	e := newEngine(stub)
	req := requirement()

	first := e.Settle(context.Background(), p, &req, 9)
	require.True(t, first.Success)
	assert.Equal(t, sig, *first.TxHash)
	assert.Equal(t, string(types.NetworkDevnet), *first.NetworkID)

	second := e.Settle(context.Background(), p, &req, 9)
	require.True(t, second.Success)
	assert.Equal(t, *first.TxHash, *second.TxHash)

	// The landed signature is never re-submitted.
	assert.Zero(t, stub.sendCalls)
}

func TestSettleRejectsInvalidPayment(t *testing.T) {
	p := payload()
	p.Transfer.Amount = "9999999"
	stub := &stubChain{}
	e := newEngine(stub)
	req := requirement()

	result := e.Settle(context.Background(), p, &req, 9)
	require.False(t, result.Success)
	assert.Equal(t, "Insufficient payment amount", *result.Error)
	assert.Nil(t, result.TxHash)
	assert.Zero(t, stub.getCalls)
}

func TestSettleProbeFailure(t *testing.T) {
	stub := &stubChain{txErr: &chain.ChainError{Op: "getTransaction", Network: types.NetworkDevnet}}
	e := newEngine(stub)
	req := requirement()

	result := e.Settle(context.Background(), payload(), &req, 9)
	require.False(t, result.Success)
	assert.Equal(t, types.ErrChainRPC.Message(), *result.Error)
}

func TestSettleSubmitsAndConfirms(t *testing.T) {
	p := payload()
	stub := &stubChain{confirms: 3}
	e := newEngine(stub)
	req := requirement()

	result := e.Settle(context.Background(), p, &req, 9)
	require.True(t, result.Success)
	assert.Equal(t, p.Transfer.Signature, *result.TxHash)
	assert.Equal(t, uint64(3), result.Confirmations)
	assert.Equal(t, 1, stub.sendCalls)

	// One reconstructed System.transfer, fee payer = sender.
	require.NotNil(t, stub.sentTx)
	assert.Len(t, stub.sentTx.Message.Instructions, 1)
	assert.Equal(t, testFrom, stub.sentTx.Message.AccountKeys[0].String())
}

func TestSettlePriorityFeeInstruction(t *testing.T) {
	p := payload()
	stub := &stubChain{}
	e := newEngine(stub)
	req := requirement()
	req.Extra = &types.RequirementExtra{PriorityFee: 5_000}

	result := e.Settle(context.Background(), p, &req, 9)
	require.True(t, result.Success)
	require.NotNil(t, stub.sentTx)
	assert.Len(t, stub.sentTx.Message.Instructions, 2)
}

func TestSettleConfirmationTimeout(t *testing.T) {
	p := payload()
	stub := &stubChain{confirmErr: context.DeadlineExceeded}
	e := newEngine(stub)
	req := requirement()

	result := e.Settle(context.Background(), p, &req, 9)
	require.False(t, result.Success)
	assert.Equal(t, "confirmation timeout", *result.Error)
	// The submission is reported so the caller can probe it later.
	require.NotNil(t, result.TxHash)
	assert.Equal(t, p.Transfer.Signature, *result.TxHash)
}

func TestSettlePrefersVerbatimTransaction(t *testing.T) {
	p := payload()
	stub := &stubChain{}
	e := newEngine(stub)
	req := requirement()

	// Prepare the serialized signed bytes the client would attach.
	sig, err := solana.SignatureFromBase58(p.Transfer.Signature)
	require.NoError(t, err)
	tx, err := e.rebuild(context.Background(), p.Transfer, &req, sig)
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	p.Transfer.Transaction = base64.StdEncoding.EncodeToString(raw)

	result := e.Settle(context.Background(), p, &req, 9)
	require.True(t, result.Success)
	require.NotNil(t, stub.sentTx)
	assert.Equal(t, sig, stub.sentTx.Signatures[0])
}
