package domain

import (
	"time"

	"github.com/google/uuid"
)

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusFrozen AccountStatus = "frozen"
	AccountStatusClosed AccountStatus = "closed"
)

// Account holds a user's balance in integer XOF. The balance is mutated
// only through ledger.Ledger so the non-negative and paired-movement
// guarantees hold under concurrent writers.
type Account struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Balance   int64
	Status    AccountStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
