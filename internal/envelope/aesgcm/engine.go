package aesgcm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// KeySize is the size of the AES-256 key in bytes; aes.NewCipher selects
	// AES-256 based on the size of the key passed in.
	KeySize = 32

	// NonceSize is the size of the AES-GCM nonce in bytes. NB: nonce sizes can
	// be security critical. This package is used in contexts where a new key is
	// generated for each encryption operation, so random nonces are safe.
	NonceSize = 12

	// TagSize is the size of the GCM authentication tag in bytes.
	TagSize = 16
)

var (
	// ErrAuthenticationFailed indicates the GCM tag did not verify: the
	// envelope was tampered with, truncated, or decrypted with the wrong key.
	// Callers must not downgrade this into a generic decryption error.
	ErrAuthenticationFailed = errors.New("envelope authentication failed")

	// ErrDeserialization indicates the envelope authenticated but the
	// plaintext is not valid JSON. This is a protocol-shape problem, distinct
	// from tampering.
	ErrDeserialization = errors.New("decrypted payload is not valid JSON")
)

// GenerateKey returns a fresh random 256-bit AES key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate AES key: %w", err)
	}
	return key, nil
}

// Encrypt serializes payload as JSON and seals it with AES-256-GCM under key,
// returning nonce || ciphertext || tag. A fresh nonce is drawn on every call,
// so two encryptions of the same payload never produce the same envelope.
func Encrypt(payload any, key []byte) ([]byte, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends ciphertext and tag to the nonce, yielding one contiguous buffer.
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens an envelope produced by Encrypt and returns the verified JSON
// payload. It fails with ErrAuthenticationFailed if the tag does not verify
// and ErrDeserialization if the verified plaintext is not valid JSON.
func Decrypt(envelope, key []byte) (json.RawMessage, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(envelope) < NonceSize+TagSize {
		return nil, fmt.Errorf("%w: envelope too short (%d bytes)", ErrAuthenticationFailed, len(envelope))
	}

	nonce, ciphertext := envelope[:NonceSize], envelope[NonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	if !json.Valid(plaintext) {
		return nil, ErrDeserialization
	}
	return json.RawMessage(plaintext), nil
}

// DecryptInto decrypts an envelope and unmarshals the payload into out.
func DecryptInto(envelope, key []byte, out any) error {
	plaintext, err := Decrypt(envelope, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	return nil
}

// Hash returns the base64 SHA-256 digest of the UTF-8 bytes of input. It is
// deterministic and used for stable identifiers, not as part of the
// encryption path.
func Hash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("AES key must be %d bytes, got %d bytes", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return gcm, nil
}
