package services

import "github.com/google/uuid"

// newID returns a time-ordered UUIDv7 so ids sort in creation order.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
