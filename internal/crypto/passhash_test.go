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
		t.Fatalf("two subsequent RandBytes(%d) are equal", n)
	}
}

func TestHashPassword_SaltedAndVerifiable(t *testing.T) {
	t.Parallel()

	d1, err := HashPassword("p@ssw0rd")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	d2, err := HashPassword("p@ssw0rd")
	if err != nil {
		t.Fatalf("HashPassword(2): %v", err)
	}
	if d1 == d2 {
		t.Fatalf("same password must produce different digests (fresh salt)")
	}
	if !strings.HasPrefix(d1, "argon2id$") {
		t.Fatalf("unexpected digest format: %q", d1)
	}
	if strings.Contains(d1, "p@ssw0rd") {
		t.Fatalf("digest leaks plaintext")
	}
	if !VerifyPassword("p@ssw0rd", d1) || !VerifyPassword("p@ssw0rd", d2) {
		t.Fatalf("VerifyPassword must accept the original password")
	}
	if VerifyPassword("wrong", d1) {
		t.Fatalf("VerifyPassword must reject a wrong password")
	}
}

func TestVerifyPassword_MalformedDigest(t *testing.T) {
	t.Parallel()

	for _, d := range []string{
		"",
		"plain",
		"bcrypt$abc$def",
		"argon2id$!!!$AAAA",
		"argon2id$AAAAAAAAAAAAAAAAAAAAAA$c2hvcnQ",
	} {
		if VerifyPassword("x", d) {
			t.Fatalf("digest %q must never verify", d)
		}
	}
}
