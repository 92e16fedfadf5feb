package types

import "github.com/google/uuid"

// GenerateUUID returns a new random UUID string, used for entity ids and
// internal tracing ids (transaction ids, delivery attempt ids, etc).
func GenerateUUID() string {
	return uuid.New().String()
}
