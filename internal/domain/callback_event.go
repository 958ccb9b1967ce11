package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type CallbackDisposition string

const (
	CallbackApplied   CallbackDisposition = "applied"
	CallbackDuplicate CallbackDisposition = "duplicate"
	CallbackConflict  CallbackDisposition = "conflict"
	CallbackOrphan    CallbackDisposition = "orphan"
)

// CallbackEvent is the audit row for every operator notification we receive,
// whatever the reconciler decided to do with it.
type CallbackEvent struct {
	ID          uuid.UUID
	Reference   string
	Payload     json.RawMessage
	Disposition CallbackDisposition
	ReceivedAt  time.Time
}
