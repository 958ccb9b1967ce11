package transfer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fkash/fkash-backend/internal/domain"
)

const (
	testMinAmount = 100
	testMaxAmount = 1_000_000
)

func activeAccount(userID uuid.UUID) *domain.Account {
	return &domain.Account{
		ID:     uuid.New(),
		UserID: userID,
		Status: domain.AccountStatusActive,
	}
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		wantErr error
	}{
		{name: "mid-range", amount: 5_000},
		{name: "at the floor", amount: testMinAmount},
		{name: "at the ceiling", amount: testMaxAmount},
		{name: "below the floor", amount: testMinAmount - 1, wantErr: domain.ErrInvalidAmount},
		{name: "zero", amount: 0, wantErr: domain.ErrInvalidAmount},
		{name: "negative", amount: -500, wantErr: domain.ErrInvalidAmount},
		{name: "above the ceiling", amount: testMaxAmount + 1, wantErr: domain.ErrLimitExceeded},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validateAmount(tc.amount, testMinAmount, testMaxAmount)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateDistinctParties(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	require.NoError(t, validateDistinctParties(a, b))
	require.ErrorIs(t, validateDistinctParties(a, a), domain.ErrSelfTransfer)
}

func TestVerifyAccountActive(t *testing.T) {
	tests := []struct {
		name    string
		status  domain.AccountStatus
		wantErr error
	}{
		{name: "active", status: domain.AccountStatusActive},
		{name: "frozen", status: domain.AccountStatusFrozen, wantErr: domain.ErrAccountFrozen},
		{name: "closed", status: domain.AccountStatusClosed, wantErr: domain.ErrAccountClosed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			acct := activeAccount(uuid.New())
			acct.Status = tc.status

			err := verifyAccountActive(acct, "sender account")

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.Contains(t, err.Error(), "sender account")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRequireManager(t *testing.T) {
	tests := []struct {
		name    string
		role    domain.UserRole
		wantErr error
	}{
		{name: "manager", role: domain.RoleManager},
		{name: "client", role: domain.RoleClient, wantErr: domain.ErrManagerOnly},
		// Admins read everything but do not handle cash.
		{name: "admin", role: domain.RoleAdmin, wantErr: domain.ErrManagerOnly},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := requireManager(&domain.User{ID: uuid.New(), Role: tc.role})

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateOperator(t *testing.T) {
	tests := []struct {
		name    string
		kind    domain.TransactionKind
		code    string
		wantErr error
	}{
		{name: "deposit with cash-in code", kind: domain.KindDepositMomo, code: "OM_SN_CASHIN"},
		{name: "withdrawal with cash-out code", kind: domain.KindWithdrawMomo, code: "WAVE_SN_CASHOUT"},
		{name: "deposit with cash-out code", kind: domain.KindDepositMomo, code: "OM_SN_CASHOUT", wantErr: domain.ErrUnknownOperator},
		{name: "withdrawal with cash-in code", kind: domain.KindWithdrawMomo, code: "WAVE_SN_CASHIN", wantErr: domain.ErrUnknownOperator},
		{name: "code not in catalog", kind: domain.KindDepositMomo, code: "MTN_GH_CASHIN", wantErr: domain.ErrUnknownOperator},
		{name: "non-momo kind", kind: domain.KindTransfer, code: "OM_SN_CASHIN", wantErr: domain.ErrInvalidKind},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validateOperator(tc.kind, tc.code)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
