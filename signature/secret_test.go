package signature_test

import (
	"strings"
	"testing"

	"github.com/xraph/courier/signature"
)

func TestGenerateSecret(t *testing.T) {
	a := signature.GenerateSecret()
	b := signature.GenerateSecret()

	if a == b {
		t.Fatalf("two secrets are equal: %q", a)
	}
	if !strings.HasPrefix(a, signature.SecretPrefix) {
		t.Fatalf("missing prefix: %q", a)
	}

	hex := strings.TrimPrefix(a, signature.SecretPrefix)
	if len(hex) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(hex))
	}
	for i, c := range hex {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Errorf("non-hex character at position %d: %c", i, c)
		}
	}
}
