package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPayload is returned when a ciphertext cannot be decrypted,
// whether it is truncated, tampered with, or encrypted under a different key.
var ErrMalformedPayload = errors.New("cipher: malformed payload")

// PayloadCipher seals and opens request/response payloads with AES-256-GCM.
// The nonce is generated per message and prepended to the ciphertext.
type PayloadCipher struct {
	aead cipher.AEAD
}

// NewPayloadCipher builds a cipher from a 32-byte pre-shared key.
func NewPayloadCipher(key []byte) (*PayloadCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("cipher: key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: init aes: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher: init gcm: %w", err)
	}

	return &PayloadCipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns nonce||ciphertext.
func (c *PayloadCipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cipher: generate nonce: %w", err)
	}

	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens nonce||ciphertext. Any authentication failure is reported
// as ErrMalformedPayload without distinguishing the cause.
func (c *PayloadCipher) Decrypt(sealed []byte) ([]byte, error) {
	if len(sealed) < c.aead.NonceSize() {
		return nil, ErrMalformedPayload
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrMalformedPayload
	}

	return plaintext, nil
}

// EncryptJSON serializes v, seals it, and returns the base64 transport form.
func (c *PayloadCipher) EncryptJSON(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("cipher: marshal payload: %w", err)
	}

	sealed, err := c.Encrypt(plaintext)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptJSON reverses EncryptJSON into v. Undecodable input fails closed.
func (c *PayloadCipher) DecryptJSON(encoded string, v any) error {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ErrMalformedPayload
	}

	plaintext, err := c.Decrypt(sealed)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return ErrMalformedPayload
	}

	return nil
}
