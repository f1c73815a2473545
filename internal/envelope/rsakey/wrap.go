package rsakey

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// WrapKey encrypts the raw symmetric key bytes with RSA-OAEP, using SHA-256
// as both the OAEP hash and the MGF1 mask function and no label, and returns
// the ciphertext base64-encoded. The ciphertext length is fixed by the
// modulus size: a 2048-bit key always yields 256 bytes.
func WrapKey(rawKey []byte, publicKey *rsa.PublicKey) (string, error) {
	if publicKey == nil {
		return "", fmt.Errorf("%w: public key is nil", ErrWrapFailure)
	}

	// OAEP capacity for SHA-256 is k - 2*hLen - 2; a 32-byte AES key always
	// fits in a >= 2048-bit modulus.
	if capacity := publicKey.Size() - 2*sha256.Size - 2; len(rawKey) > capacity {
		return "", fmt.Errorf("%w: plaintext of %d bytes exceeds OAEP capacity of %d bytes", ErrWrapFailure, len(rawKey), capacity)
	}

	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, rawKey, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrapFailure, err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
