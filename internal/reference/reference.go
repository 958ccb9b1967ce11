// Package reference issues the human-readable identifiers that key every
// transaction, of the form FKASH-2024-03-01-000421837: a date, a zero-padded
// per-day sequence, and a four-digit random suffix.
package reference

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Prefix heads every reference issued by this system.
const Prefix = "FKASH"

// MaxAttempts bounds allocation retries when concurrent writers race for the
// same daily sequence and the later insert hits the uniqueness constraint.
const MaxAttempts = 3

// New composes a reference for the given day and daily sequence. The random
// suffix only makes references harder to guess; uniqueness comes from the
// database constraint on the reference column, so callers must retry with a
// fresh sequence when an insert is rejected.
func New(day time.Time, seq int) (string, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return "", fmt.Errorf("New: %w", err)
	}
	return fmt.Sprintf("%s-%s-%05d%04d", Prefix, day.Format("2006-01-02"), seq, suffix), nil
}

// Day normalizes t to midnight UTC, the granularity at which sequences reset.
func Day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

func randomSuffix() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return 0, fmt.Errorf("randomSuffix: %w", err)
	}
	return 1000 + n.Int64(), nil
}
