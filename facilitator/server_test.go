package facilitator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402-solana/facilitator-go/chain"
	"github.com/x402-solana/facilitator-go/types"
)

func testRouter(f *Facilitator) http.Handler {
	return NewServer(f, nil).Router()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	w := doJSON(t, testRouter(New()), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])

	_, err := time.Parse(time.RFC3339, body["timestamp"])
	assert.NoError(t, err)
}

func TestSupportedEndpoint(t *testing.T) {
	f := New().Register(&stubEngine{scheme: types.SchemeTransfer, network: types.NetworkDevnet})
	w := doJSON(t, testRouter(f), http.MethodGet, "/supported", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.SupportedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Kinds, 1)
	assert.Equal(t, types.SchemeTransfer, resp.Kinds[0].Scheme)
	assert.Equal(t, types.NetworkDevnet, resp.Kinds[0].Network)
}

func TestVerifyEndpoint(t *testing.T) {
	f := New().Register(&stubEngine{scheme: types.SchemeTransfer, network: types.NetworkDevnet})
	router := testRouter(f)

	body, err := json.Marshal(PaymentRequest{
		X402Version:         types.X402Version,
		PaymentHeader:       transferHeader(t),
		PaymentRequirements: transferRequirement(),
	})
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodPost, "/verify", string(body))
	require.Equal(t, http.StatusOK, w.Code)

	var result types.VerifyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.IsValid)
}

// Invalid payments still return 200; the verdict lives in the body. 400 is
// for bodies that do not bind at all.
func TestVerifyEndpointInvalidPayment(t *testing.T) {
	f := New() // no engines: routing rejects with UNSUPPORTED_SCHEME
	router := testRouter(f)

	body, err := json.Marshal(PaymentRequest{
		X402Version:         types.X402Version,
		PaymentHeader:       transferHeader(t),
		PaymentRequirements: transferRequirement(),
	})
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodPost, "/verify", string(body))
	require.Equal(t, http.StatusOK, w.Code)

	var result types.VerifyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.IsValid)
	assert.Equal(t, types.ErrUnsupportedScheme.Message(), *result.InvalidReason)
}

func TestVerifyEndpointBadBody(t *testing.T) {
	router := testRouter(New())

	for _, body := range []string{"", "{not json", `{"x402Version":1}`} {
		w := doJSON(t, router, http.MethodPost, "/verify", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestSettleEndpoint(t *testing.T) {
	f := New().Register(&stubEngine{scheme: types.SchemeTransfer, network: types.NetworkDevnet})
	router := testRouter(f)

	body, err := json.Marshal(PaymentRequest{
		X402Version:         types.X402Version,
		PaymentHeader:       transferHeader(t),
		PaymentRequirements: transferRequirement(),
	})
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodPost, "/settle", string(body))
	require.Equal(t, http.StatusOK, w.Code)

	var result types.SettleResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, testSignature, *result.TxHash)
}

func TestTransactionEndpoint(t *testing.T) {
	client := &stubChainClient{
		network: types.NetworkDevnet,
		status:  &chain.SignatureStatus{Confirmations: 3, ConfirmationStatus: "confirmed"},
	}
	f := New().RegisterChain(client)
	router := testRouter(f)

	w := doJSON(t, router, http.MethodGet, "/transaction/"+testSignature+"?network=solana-devnet", "")
	require.Equal(t, http.StatusOK, w.Code)

	var status types.TransactionStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Confirmed)
	assert.Equal(t, uint64(3), status.Confirmations)
}

func TestTransactionEndpointRejects(t *testing.T) {
	f := New().RegisterChain(&stubChainClient{network: types.NetworkDevnet})
	router := testRouter(f)

	// Unknown network.
	w := doJSON(t, router, http.MethodGet, "/transaction/"+testSignature+"?network=solana-localnet", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Malformed signature.
	w = doJSON(t, router, http.MethodGet, "/transaction/junk?network=solana-devnet", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	router := testRouter(New())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get("X-Request-Id"))

	// Absent on the request, one is minted.
	w = doJSON(t, router, http.MethodGet, "/health", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestUnknownRoute(t *testing.T) {
	w := doJSON(t, testRouter(New()), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
