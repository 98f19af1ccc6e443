package directory

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Decrypter reveals credential material that is encrypted at rest.
// Implementations treat the empty string as a passthrough.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// DecryptError reports stored credential material that could not be
// decrypted, usually a wrong key or a corrupted row.
type DecryptError struct {
	Err error
}

func (e *DecryptError) Error() string { return "directory: decrypt: " + e.Err.Error() }

func (e *DecryptError) Unwrap() error { return e.Err }

// Plaintext is the no-op Decrypter: stored credential material is used
// verbatim.
type Plaintext struct{}

func (Plaintext) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

// AES seals and reveals strings with AES-GCM. The nonce is prepended
// to the ciphertext and the whole blob is base64 encoded, so sealed
// values fit in plain text columns.
type AES struct {
	aead cipher.AEAD
}

// NewAES returns a cipher for key, which must be 16, 24 or 32 bytes.
func NewAES(key []byte) (*AES, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}
	return &AES{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh nonce. Empty input stays empty.
func (a *AES) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, a.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("directory: encrypt: %w", err)
	}
	sealed := a.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Empty input stays empty.
func (a *AES) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	decoded, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &DecryptError{Err: err}
	}
	if len(decoded) < a.aead.NonceSize() {
		return "", &DecryptError{Err: errors.New("ciphertext too short")}
	}
	nonce, sealed := decoded[:a.aead.NonceSize()], decoded[a.aead.NonceSize():]
	plain, err := a.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &DecryptError{Err: err}
	}
	return string(plain), nil
}
