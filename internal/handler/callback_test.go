package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/service"
)

const testCallbackSecret = "test-secret-key"

type mockReconciler struct {
	disposition domain.CallbackDisposition
	err         error
	received    *service.CallbackInput
}

func (m *mockReconciler) Apply(_ context.Context, in service.CallbackInput) (domain.CallbackDisposition, error) {
	m.received = &in
	return m.disposition, m.err
}

func signPayload(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func validCallbackBody() string {
	b, _ := json.Marshal(callbackPayload{
		ExternalTransactionID: "FKASH-2026-03-14-000018472",
		Status:                "SUCCESS",
		ID:                    "DEX-93001",
	})
	return string(b)
}

func TestVerifyHMAC(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		signature string
		secret    string
		want      bool
	}{
		{
			name:      "valid signature",
			body:      `{"externalTransactionId":"abc"}`,
			signature: signPayload(`{"externalTransactionId":"abc"}`, testCallbackSecret),
			secret:    testCallbackSecret,
			want:      true,
		},
		{
			name:      "wrong signature",
			body:      `{"externalTransactionId":"abc"}`,
			signature: "deadbeef",
			secret:    testCallbackSecret,
			want:      false,
		},
		{
			name:      "empty signature",
			body:      `{"externalTransactionId":"abc"}`,
			signature: "",
			secret:    testCallbackSecret,
			want:      false,
		},
		{
			name:      "wrong secret",
			body:      `{"externalTransactionId":"abc"}`,
			signature: signPayload(`{"externalTransactionId":"abc"}`, "other-secret"),
			secret:    testCallbackSecret,
			want:      false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := verifyHMAC([]byte(tc.body), tc.signature, tc.secret)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReceiveCallback(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		setupSig    func(body string) string
		disposition domain.CallbackDisposition
		applyErr    error
		wantStatus  int
		wantCode    string
	}{
		{
			name:        "applied",
			body:        validCallbackBody(),
			setupSig:    func(body string) string { return signPayload(body, testCallbackSecret) },
			disposition: domain.CallbackApplied,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "duplicate terminal outcome is acknowledged",
			body:        validCallbackBody(),
			setupSig:    func(body string) string { return signPayload(body, testCallbackSecret) },
			disposition: domain.CallbackDuplicate,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "unknown reference",
			body:        validCallbackBody(),
			setupSig:    func(body string) string { return signPayload(body, testCallbackSecret) },
			disposition: domain.CallbackOrphan,
			wantStatus:  http.StatusNotFound,
			wantCode:    "UNKNOWN_REFERENCE",
		},
		{
			name:        "conflicting terminal outcome",
			body:        validCallbackBody(),
			setupSig:    func(body string) string { return signPayload(body, testCallbackSecret) },
			disposition: domain.CallbackConflict,
			applyErr:    fmt.Errorf("reconcile: %w", domain.ErrCallbackConflict),
			wantStatus:  http.StatusConflict,
			wantCode:    "CALLBACK_CONFLICT",
		},
		{
			name:       "missing signature header",
			body:       validCallbackBody(),
			setupSig:   nil,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_SIGNATURE",
		},
		{
			name:       "invalid HMAC signature",
			body:       validCallbackBody(),
			setupSig:   func(_ string) string { return "deadbeefdeadbeef" },
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_SIGNATURE",
		},
		{
			name:       "invalid JSON body",
			body:       "not-json",
			setupSig:   func(body string) string { return signPayload(body, testCallbackSecret) },
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name: "missing required fields",
			body: func() string {
				b, _ := json.Marshal(map[string]string{"id": "DEX-93001"})
				return string(b)
			}(),
			setupSig:   func(body string) string { return signPayload(body, testCallbackSecret) },
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "reconciler failure returns 500",
			body:       validCallbackBody(),
			setupSig:   func(body string) string { return signPayload(body, testCallbackSecret) },
			applyErr:   fmt.Errorf("begin: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &mockReconciler{disposition: tc.disposition, err: tc.applyErr}
			h := NewCallbackHandler(rec, testCallbackSecret)

			req := httptest.NewRequest(http.MethodPost, "/callbacks/dexchange", strings.NewReader(tc.body))
			if tc.setupSig != nil {
				req.Header.Set("X-Webhook-Signature", tc.setupSig(tc.body))
			}
			rr := httptest.NewRecorder()

			h.Receive(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)

			var resp APIResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

			if tc.wantCode == "" {
				assert.True(t, resp.Success)
			} else {
				assert.False(t, resp.Success)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestReceiveCallback_PassesInputThrough(t *testing.T) {
	rec := &mockReconciler{disposition: domain.CallbackApplied}
	h := NewCallbackHandler(rec, testCallbackSecret)

	body, _ := json.Marshal(callbackPayload{
		ExternalTransactionID: "FKASH-2026-03-14-000018472",
		Status:                "FAILED",
		ID:                    "DEX-93001",
		Error:                 "insufficient operator balance",
	})
	req := httptest.NewRequest(http.MethodPost, "/callbacks/dexchange", strings.NewReader(string(body)))
	req.Header.Set("X-Webhook-Signature", signPayload(string(body), testCallbackSecret))
	rr := httptest.NewRecorder()

	h.Receive(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, rec.received)
	assert.Equal(t, "FKASH-2026-03-14-000018472", rec.received.Reference)
	assert.Equal(t, "FAILED", rec.received.Status)
	assert.Equal(t, "DEX-93001", rec.received.ExternalID)
	assert.Equal(t, "insufficient operator balance", rec.received.Error)
	assert.Equal(t, json.RawMessage(body), rec.received.Payload)
}
