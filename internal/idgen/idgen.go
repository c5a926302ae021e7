// Package idgen provides short, URL-safe random identifiers backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet defines the character set used for generated identifiers.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generate returns a random identifier of the given length.
func Generate(length int) (string, error) {
	id, err := nanoid.Generate(Alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return id, nil
}

// Token returns a 40 character secret, used for newsletter confirmation links.
func Token() (string, error) {
	return Generate(40)
}
