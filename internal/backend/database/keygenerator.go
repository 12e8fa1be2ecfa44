package database

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateID returns a random RFC 4122 version 4 identifier.
func GenerateID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return id.String(), nil
}
