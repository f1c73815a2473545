// Package aesgcm implements the symmetric half of the envelope protocol:
// authenticated encryption of JSON-serializable payloads with AES-256-GCM.
//
// Each encryption operation uses a fresh random 12-byte nonce, prepended to
// the ciphertext and 16-byte tag, so the sealed envelope is always
// nonce || ciphertext || tag. Keys are expected to be generated per operation
// and never reused across requests, which keeps random nonces safe.
package aesgcm
