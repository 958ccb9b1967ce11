package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/gateway"
)

func testConfig(baseURL string) gateway.Config {
	return gateway.Config{
		BaseURL:     baseURL,
		APIKey:      "test-api-key",
		CallbackURL: "https://fkash.test/callbacks/dexchange",
		SuccessURL:  "https://fkash.test/ok",
		FailureURL:  "https://fkash.test/ko",
		TimeoutS:    5,
		MaxAttempts: 3,
		MaxAmount:   1_000_000,
	}
}

func submitRequest() gateway.SubmitRequest {
	return gateway.SubmitRequest{
		Reference:    "FKASH-2024-03-01-000017777",
		OperatorCode: "OM_SN_CASHIN",
		Amount:       5000,
		Phone:        "+221771234567",
	}
}

func initBody(externalID, status string, success bool) string {
	b, _ := json.Marshal(map[string]any{
		"message": "ok",
		"transaction": map[string]any{
			"transactionId": externalID,
			"status":        status,
			"success":       success,
		},
	})
	return string(b)
}

func TestSubmit_Processing(t *testing.T) {
	var gotPayload map[string]any
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transaction/init", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(initBody("DX-1", "PENDING", true)))
	}))
	defer srv.Close()

	client := gateway.NewClient(testConfig(srv.URL), nil)

	outcome, err := client.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	assert.Equal(t, gateway.OutcomeProcessing, outcome.Kind)
	assert.Equal(t, "DX-1", outcome.ExternalID)

	assert.Equal(t, "Bearer test-api-key", gotAuth)
	assert.Equal(t, "FKASH-2024-03-01-000017777", gotPayload["externalTransactionId"])
	assert.Equal(t, "OM_SN_CASHIN", gotPayload["serviceCode"])
	assert.Equal(t, float64(5000), gotPayload["amount"])
	assert.Equal(t, "771234567", gotPayload["number"], "country prefix must be stripped")
	assert.Equal(t, "https://fkash.test/callbacks/dexchange", gotPayload["callBackURL"])
}

func TestSubmit_AcceptedOnSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(initBody("DX-2", "SUCCESS", true)))
	}))
	defer srv.Close()

	client := gateway.NewClient(testConfig(srv.URL), nil)

	outcome, err := client.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	assert.Equal(t, gateway.OutcomeAccepted, outcome.Kind)
	assert.Equal(t, "DX-2", outcome.ExternalID)
}

func TestSubmit_RejectionNotRetried(t *testing.T) {
	var requests atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`{"message": "insufficient operator float", "transaction": {"success": false}}`))
	}))
	defer srv.Close()

	client := gateway.NewClient(testConfig(srv.URL), nil)

	outcome, err := client.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	assert.Equal(t, gateway.OutcomeRejected, outcome.Kind)
	assert.Equal(t, "insufficient operator float", outcome.Reason)
	assert.Equal(t, int32(1), requests.Load(), "a definitive rejection must not be retried")
}

func TestSubmit_TransientThenProcessing(t *testing.T) {
	var requests atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(initBody("DX-3", "PENDING", true)))
	}))
	defer srv.Close()

	client := gateway.NewClient(testConfig(srv.URL), nil)

	outcome, err := client.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	assert.Equal(t, gateway.OutcomeProcessing, outcome.Kind)
	assert.Equal(t, "DX-3", outcome.ExternalID)
	assert.Equal(t, int32(3), requests.Load(), "two transport failures then success")
}

func TestSubmit_RetriesExhausted(t *testing.T) {
	var requests atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := gateway.NewClient(testConfig(srv.URL), nil)

	outcome, err := client.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	assert.Equal(t, gateway.OutcomeTransientFailure, outcome.Kind)
	assert.NotEmpty(t, outcome.Reason)
	assert.Equal(t, int32(3), requests.Load())
}

// A zero or negative attempt count clamps to one: the submission still goes
// out exactly once instead of skipping the loop.
func TestSubmit_AttemptCountClamped(t *testing.T) {
	var requests atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxAttempts = 0
	client := gateway.NewClient(cfg, nil)

	outcome, err := client.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	assert.Equal(t, gateway.OutcomeTransientFailure, outcome.Kind)
	assert.NotEmpty(t, outcome.Reason)
	assert.Equal(t, int32(1), requests.Load())
}

func TestSubmit_MalformedBodyRetried(t *testing.T) {
	var requests atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := gateway.NewClient(testConfig(srv.URL), nil)

	outcome, err := client.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	assert.Equal(t, gateway.OutcomeTransientFailure, outcome.Kind)
	assert.Equal(t, int32(3), requests.Load())
}

func TestSubmit_ValidatesBeforeNetwork(t *testing.T) {
	var requests atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	client := gateway.NewClient(testConfig(srv.URL), nil)

	tests := []struct {
		name      string
		mutate    func(*gateway.SubmitRequest)
		wantErrIs error
	}{
		{
			name:      "unknown operator code",
			mutate:    func(r *gateway.SubmitRequest) { r.OperatorCode = "MTN_GH_CASHIN" },
			wantErrIs: domain.ErrUnknownOperator,
		},
		{
			name:      "zero amount",
			mutate:    func(r *gateway.SubmitRequest) { r.Amount = 0 },
			wantErrIs: domain.ErrInvalidAmount,
		},
		{
			name:      "amount above ceiling",
			mutate:    func(r *gateway.SubmitRequest) { r.Amount = 1_000_001 },
			wantErrIs: domain.ErrLimitExceeded,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := submitRequest()
			tc.mutate(&req)

			_, err := client.Submit(context.Background(), req)
			require.ErrorIs(t, err, tc.wantErrIs)
		})
	}

	assert.Equal(t, int32(0), requests.Load(), "validation failures must not reach the wire")
}

func TestGetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/transaction/status/DX-9", r.URL.Path)
		require.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		w.Write([]byte(initBody("DX-9", "SUCCESS", true)))
	}))
	defer srv.Close()

	client := gateway.NewClient(testConfig(srv.URL), nil)

	res, err := client.GetStatus(context.Background(), "DX-9")
	require.NoError(t, err)

	assert.Equal(t, "DX-9", res.ExternalID)
	assert.Equal(t, "SUCCESS", res.Status)
}

func TestGetStatus_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := gateway.NewClient(testConfig(srv.URL), nil)

	_, err := client.GetStatus(context.Background(), "DX-9")
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}
