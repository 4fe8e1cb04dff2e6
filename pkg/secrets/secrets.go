package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// SealedPrefix marks a config value that must be opened before use.
const SealedPrefix = "enc:"

var (
	ErrMissingKey    = errors.New("secrets: sealed value but no secret key configured")
	ErrSealFailed    = errors.New("secrets: seal failed")
	ErrOpenFailed    = errors.New("secrets: open failed")
	ErrMalformedSeal = errors.New("secrets: malformed sealed value")
)

func deriveKey(key string) []byte {
	sum := sha256.Sum256([]byte(key))
	return sum[:]
}

func newGCM(key string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(key))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plain with AES-256-GCM and returns it as "enc:<base64>".
func Seal(plain, key string) (string, error) {
	if key == "" {
		return "", ErrMissingKey
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", ErrSealFailed
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ErrSealFailed
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plain), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func Open(sealed, key string) (string, error) {
	if key == "" {
		return "", ErrMissingKey
	}
	if !IsSealed(sealed) {
		return "", ErrMalformedSeal
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, SealedPrefix))
	if err != nil {
		return "", ErrMalformedSeal
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", ErrOpenFailed
	}
	if len(data) < gcm.NonceSize() {
		return "", ErrMalformedSeal
	}

	nonce, body := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return "", ErrOpenFailed
	}
	return string(plain), nil
}

// Reveal returns value as-is unless it is sealed, in which case it is opened with key.
func Reveal(value, key string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	return Open(value, key)
}

func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}
