package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// NewRunID returns a fresh run identity. UUIDv7 keeps identities ordered by
// creation time; a random v4 is used if v7 generation fails.
func NewRunID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// ParseRunID parses an identity handed over on the command line.
func ParseRunID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, invalid("run-id", s, err.Error())
	}
	return id, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
