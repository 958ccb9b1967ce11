package transfer

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/fkash/fkash-backend/internal/domain"
)

// Preconditions are checked before any transaction begins; a violation means
// nothing was written anywhere.

func validateAmount(amount, min, max int64) error {
	if amount < min {
		return fmt.Errorf("validateAmount: %w", domain.ErrInvalidAmount)
	}
	if amount > max {
		return fmt.Errorf("validateAmount: %w", domain.ErrLimitExceeded)
	}
	return nil
}

func validateDistinctParties(sender, receiver uuid.UUID) error {
	if sender == receiver {
		return fmt.Errorf("validateDistinctParties: %w", domain.ErrSelfTransfer)
	}
	return nil
}

func verifyAccountActive(acct *domain.Account, role string) error {
	if acct.Status == domain.AccountStatusFrozen {
		return fmt.Errorf("%s: %w", role, domain.ErrAccountFrozen)
	}
	if acct.Status != domain.AccountStatusActive {
		return fmt.Errorf("%s: %w", role, domain.ErrAccountClosed)
	}
	return nil
}

func requireManager(u *domain.User) error {
	if u.Role != domain.RoleManager {
		return fmt.Errorf("requireManager: %w", domain.ErrManagerOnly)
	}
	return nil
}

// validateOperator checks the service code against the static catalog and
// confirms its direction matches the flow: deposits ride cash-in codes,
// withdrawals cash-out.
func validateOperator(kind domain.TransactionKind, code string) error {
	svc, ok := domain.MomoServiceByCode(code)
	if !ok {
		return fmt.Errorf("validateOperator: %q: %w", code, domain.ErrUnknownOperator)
	}
	want, ok := domain.OperatorDirectionForKind(kind)
	if !ok {
		return fmt.Errorf("validateOperator: %w", domain.ErrInvalidKind)
	}
	if svc.Direction != want {
		return fmt.Errorf("validateOperator: %q is %s, flow needs %s: %w",
			code, svc.Direction, want, domain.ErrUnknownOperator)
	}
	return nil
}
