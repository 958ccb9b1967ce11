package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fkash/fkash-backend/internal/auth"
	"github.com/fkash/fkash-backend/internal/domain"
)

const testJWTSecret = "test-jwt-secret"

type mockUserReader struct {
	user *domain.User
}

func (m *mockUserReader) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	if m.user == nil || m.user.Phone != phone {
		return nil, fmt.Errorf("GetByPhone: %w", domain.ErrNotFound)
	}
	return m.user, nil
}

func seededUser(t *testing.T, pin string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		ID:      uuid.New(),
		Phone:   "+221770000001",
		Name:    "Awa Ndiaye",
		PinHash: string(hash),
		Role:    domain.RoleManager,
	}
}

func TestLogin_Success(t *testing.T) {
	user := seededUser(t, "1234")
	h := NewAuthHandler(&mockUserReader{user: user}, testJWTSecret, time.Hour)

	body := `{"phone":"+221770000001","pin":"1234"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	rr := httptest.NewRecorder()

	h.Login(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)

	claims, err := auth.ValidateToken(token, testJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Phone, claims.Phone)
	assert.Equal(t, string(domain.RoleManager), claims.Role)

	// The PIN hash must never ride along in the response.
	assert.NotContains(t, rr.Body.String(), user.PinHash)
}

func TestLogin_Rejections(t *testing.T) {
	user := seededUser(t, "1234")

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "wrong pin",
			body:       `{"phone":"+221770000001","pin":"9999"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_CREDENTIALS",
		},
		{
			name:       "unknown phone",
			body:       `{"phone":"+221770000099","pin":"1234"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_CREDENTIALS",
		},
		{
			name:       "missing fields",
			body:       `{"phone":"+221770000001"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "invalid json",
			body:       "not-json",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAuthHandler(&mockUserReader{user: user}, testJWTSecret, time.Hour)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()

			h.Login(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)

			var resp APIResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.wantCode, resp.Error.Code)
		})
	}
}
