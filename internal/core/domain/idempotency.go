package domain

import "github.com/google/uuid"

// BuildIdempotencyKey scopes a client-supplied Idempotency-Key to its user
// and operation, e.g. "<user_id>:send:<key>".
func BuildIdempotencyKey(userID uuid.UUID, operation, key string) string {
	return userID.String() + ":" + operation + ":" + key
}
