// Package security issues and verifies the bearer tokens that identify
// users, and carries the verified user id through request contexts.
package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretBytes is the length of a generated signing secret.
const SecretBytes = 32

// GenerateSecret returns a random hex-encoded HMAC secret.
func GenerateSecret() (string, error) {
	b := make([]byte, SecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// LoadOrCreateSecret loads the token signing secret from home/keys/, or
// generates and stores one on first run.
func LoadOrCreateSecret(home string) (string, error) {
	keyDir := filepath.Join(home, "keys")
	path := filepath.Join(keyDir, "jwt.secret")

	if b, err := os.ReadFile(path); err == nil {
		secret := strings.TrimSpace(string(b))
		if secret == "" {
			return "", fmt.Errorf("secret file %s is empty", path)
		}
		return secret, nil
	}

	secret, err := GenerateSecret()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return "", fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(secret), 0600); err != nil {
		return "", fmt.Errorf("write secret: %w", err)
	}
	return secret, nil
}
