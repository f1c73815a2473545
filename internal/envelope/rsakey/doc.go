// Package rsakey implements the asymmetric half of the envelope protocol:
// importing the backend's RSA public key and wrapping ephemeral AES keys with
// RSA-OAEP-SHA256.
//
// This package never decrypts; the matching private key lives only on the
// backend, entirely outside this process's trust boundary.
package rsakey
