// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
	saltLen             = 16
)

const digestPrefix = "argon2id"

var errBadDigest = errors.New("malformed password digest")

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashPassword derives an Argon2id key with a fresh salt and returns it
// encoded as "argon2id$<salt>$<key>" (raw std base64).
func HashPassword(password string) (string, error) {
	salt, err := RandBytes(saltLen)
	if err != nil {
		return "", err
	}
	key := derive([]byte(password), salt)
	enc := base64.RawStdEncoding
	return digestPrefix + "$" + enc.EncodeToString(salt) + "$" + enc.EncodeToString(key), nil
}

// VerifyPassword reports whether password matches the encoded digest.
// A malformed digest never matches.
func VerifyPassword(password, digest string) bool {
	salt, want, err := decode(digest)
	if err != nil {
		return false
	}
	got := derive([]byte(password), salt)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func derive(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

func decode(digest string) (salt, key []byte, err error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 3 || parts[0] != digestPrefix {
		return nil, nil, errBadDigest
	}
	enc := base64.RawStdEncoding
	if salt, err = enc.DecodeString(parts[1]); err != nil {
		return nil, nil, errBadDigest
	}
	if key, err = enc.DecodeString(parts[2]); err != nil || len(key) != int(argonKeyLen) {
		return nil, nil, errBadDigest
	}
	return salt, key, nil
}
