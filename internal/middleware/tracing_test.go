package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracing(t *testing.T) {
	inbound := uuid.NewString()

	tests := []struct {
		name    string
		header  string
		keepsIn bool
	}{
		{"valid inbound id kept", inbound, true},
		{"missing id assigned", "", false},
		{"garbage id replaced", "not-a-uuid", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = TraceIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/me", nil)
			if tc.header != "" {
				req.Header.Set(traceIDHeader, tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			require.NotEmpty(t, got)
			_, err := uuid.Parse(got)
			require.NoError(t, err, "the propagated id must always be a UUID")
			assert.Equal(t, got, rr.Header().Get(traceIDHeader))

			if tc.keepsIn {
				assert.Equal(t, tc.header, got)
			} else {
				assert.NotEqual(t, tc.header, got)
			}
		})
	}
}
