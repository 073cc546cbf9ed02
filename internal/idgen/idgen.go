// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultPrefix is prepended to every server-assigned note ID.
var DefaultPrefix = "note-"

// TempPrefix marks client-side placeholder IDs that have not yet been
// confirmed by the store.
const TempPrefix = "temp-"

// SessionPrefix is prepended to every session ID.
const SessionPrefix = "user_"

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Generate returns a new unique ID using the default prefix.
func Generate() (string, error) {
	return GenerateWithPrefix(DefaultPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// Temp returns a fresh placeholder ID for an unsaved note. It panics only if
// the system random source fails.
func Temp() string {
	id, err := GenerateWithPrefix(TempPrefix)
	if err != nil {
		panic(err)
	}
	return id
}

// IsTemp reports whether id is a placeholder produced by Temp.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// Session returns a new session ID: the prefix plus the first twelve hex
// digits of a random UUID.
func Session() string {
	u := strings.ReplaceAll(uuid.NewString(), "-", "")
	return SessionPrefix + u[:12]
}
