package auth

import (
	"strings"
	"testing"
)

func TestRandomToken_LengthAndUniqueness(t *testing.T) {
	a, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	b, _ := NewState()

	// 32 bytes -> 64 hex characters -> 256 bits of entropy
	if len(a) != 64 {
		t.Errorf("len(state) = %d, want 64", len(a))
	}
	if a == b {
		t.Error("two states were identical")
	}
}

func TestSecretHasher_RoundTrip(t *testing.T) {
	h := NewSecretHasherForTest()

	hash, err := h.Hash("link-secret")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
	if err := h.Verify(hash, "link-secret"); err != nil {
		t.Errorf("Verify() with the right secret error = %v", err)
	}
	if err := h.Verify(hash, "other-secret"); err == nil {
		t.Error("Verify() with the wrong secret should fail")
	}
}

func TestSecretHasher_SaltIsRandom(t *testing.T) {
	h := NewSecretHasherForTest()

	hash1, _ := h.Hash("same")
	hash2, _ := h.Hash("same")
	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same secret")
	}
}

func TestSecretHasher_RejectsLongSecrets(t *testing.T) {
	h := NewSecretHasherForTest()
	if _, err := h.Hash(strings.Repeat("a", 73)); err == nil {
		t.Error("Hash() should reject secrets longer than 72 bytes")
	}
}

func TestSecretHasher_InvalidHash(t *testing.T) {
	h := NewSecretHasherForTest()
	if err := h.Verify("not-a-bcrypt-hash", "x"); err == nil {
		t.Error("Verify() should fail on a malformed hash")
	}
}
