// Package cookies implements the encrypted cookie envelope used to persist
// session and transaction state, plus a request-scoped cookie jar that keeps
// the incoming cookie view consistent with outgoing writes.
package cookies

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-jose/go-jose/v4"
	"golang.org/x/crypto/hkdf"
)

const (
	keyByteLength  = 32
	encryptionInfo = "JWE CEK"
)

// ErrDecrypt is returned for any undecryptable cookie value: malformed token,
// failed authentication tag, or wrong key. Callers must treat all three the
// same way, as "no such cookie".
var ErrDecrypt = errors.New("unable to decrypt cookie value")

// DeriveKey derives the fixed-length content-encryption key from the
// application secret using HKDF-SHA256.
func DeriveKey(secret string) ([]byte, error) {
	key := make([]byte, keyByteLength)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(encryptionInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	return key, nil
}

// Encrypt serialises payload as JSON and encrypts it into a compact JWE using
// direct symmetric encryption (alg "dir", enc "A256GCM").
func Encrypt(payload any, secret string) (string, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return "", err
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cookie payload: %w", err)
	}

	encrypter, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.DIRECT, Key: key},
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create encrypter: %w", err)
	}

	object, err := encrypter.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt cookie payload: %w", err)
	}

	return object.CompactSerialize()
}

// Decrypt reverses Encrypt, unmarshalling the payload into out. Every failure
// mode collapses into ErrDecrypt so tampering is indistinguishable from an
// absent cookie.
func Decrypt(token, secret string, out any) error {
	key, err := DeriveKey(secret)
	if err != nil {
		return err
	}

	object, err := jose.ParseEncrypted(
		token,
		[]jose.KeyAlgorithm{jose.DIRECT},
		[]jose.ContentEncryption{jose.A256GCM},
	)
	if err != nil {
		return ErrDecrypt
	}

	plaintext, err := object.Decrypt(key)
	if err != nil {
		return ErrDecrypt
	}

	if err := json.Unmarshal(plaintext, out); err != nil {
		return ErrDecrypt
	}
	return nil
}
