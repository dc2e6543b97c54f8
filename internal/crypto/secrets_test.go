package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal — looks non-random", n)
	}
}

func TestNewToken(t *testing.T) {
	t.Parallel()

	tok, err := NewToken(32)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if len(tok) != 64 {
		t.Fatalf("token length=%d, want 64 hex chars", len(tok))
	}
	if strings.ToLower(tok) != tok {
		t.Fatalf("token not lowercase hex: %q", tok)
	}

	other, _ := NewToken(32)
	if tok == other {
		t.Fatalf("two tokens are equal")
	}
}

func TestNewNumericCode(t *testing.T) {
	t.Parallel()

	code, err := NewNumericCode(6)
	if err != nil {
		t.Fatalf("NewNumericCode: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code=%q, want 6 digits", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("non-digit in code %q", code)
		}
	}
}

func TestSHA256Hasher(t *testing.T) {
	t.Parallel()

	var h SHA256Hasher
	d1, err := h.Hash("admin123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	d2, _ := h.Hash("admin123")
	if d1 != d2 {
		t.Fatalf("digest not deterministic")
	}
	if !h.Compare("admin123", d1) {
		t.Fatalf("Compare rejected the matching secret")
	}
	if h.Compare("admin124", d1) {
		t.Fatalf("Compare accepted a wrong secret")
	}
}

func TestArgon2Hasher(t *testing.T) {
	t.Parallel()

	var h Argon2Hasher
	d1, err := h.Hash("s3cret-enough")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(d1, "argon2id$") {
		t.Fatalf("digest format: %q", d1)
	}

	// Fresh salt per call, so digests differ but both verify.
	d2, _ := h.Hash("s3cret-enough")
	if d1 == d2 {
		t.Fatalf("two digests are equal — salt not fresh")
	}
	if !h.Compare("s3cret-enough", d1) || !h.Compare("s3cret-enough", d2) {
		t.Fatalf("Compare rejected the matching secret")
	}
	if h.Compare("wrong", d1) {
		t.Fatalf("Compare accepted a wrong secret")
	}
	if h.Compare("s3cret-enough", "not-a-digest") {
		t.Fatalf("Compare accepted a malformed digest")
	}
}
