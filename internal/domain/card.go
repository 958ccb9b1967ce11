package domain

import (
	"time"

	"github.com/google/uuid"
)

// NFCCard links a physical card to a user. The physical token is burned into
// the card at personalization and never changes; the virtual token is what
// merchant terminals present and can be rotated if leaked. A locked card
// cannot initiate payments.
type NFCCard struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	PhysicalToken string
	VirtualToken  uuid.UUID
	Locked        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
