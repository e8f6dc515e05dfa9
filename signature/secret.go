package signature

import (
	"crypto/rand"
	"encoding/hex"
)

// SecretPrefix starts every generated signing secret.
const SecretPrefix = "cksec_"

// GenerateSecret creates a random signing secret: SecretPrefix followed by
// 32 random bytes in hex.
func GenerateSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("courier: failed to generate random secret: " + err.Error())
	}
	return SecretPrefix + hex.EncodeToString(b)
}
