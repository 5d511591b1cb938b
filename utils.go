package ledger

import "github.com/google/uuid"

// GenerateUUIDv7 returns a new time-ordered UUID, used as the batch run id.
func GenerateUUIDv7() (uuid.UUID, error) {
	return uuid.NewV7()
}

// NewRunID returns a fresh run id string. If the random source fails it falls
// back to a v4 UUID, which panics only if that source fails too.
func NewRunID() string {
	id, err := GenerateUUIDv7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
