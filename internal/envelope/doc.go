// Package envelope implements hybrid envelope encryption for individual
// request/response round trips with the secure backend.
//
// Envelope encryption uses a combination of asymmetric encryption and
// symmetric encryption; since asymmetric encryption is slow and has size
// limits, we generate a random symmetric key for each request, use that to
// encrypt the payload, then encrypt the symmetric key with the RSA public key
// issued for the request's session. The backend uses its RSA private key to
// recover the symmetric key, decrypts the request, and encrypts its response
// with the same symmetric key.
//
// This implementation uses RSA-OAEP with SHA-256 for asymmetric encryption,
// and AES-256-GCM for symmetric encryption.
package envelope
