package api

import "encoding/json"

// SessionResponse is the payload returned by the key-issuance endpoint. Each
// response describes one single-use key-exchange session.
type SessionResponse struct {
	// SessionID is the opaque, server-assigned identifier for this session.
	SessionID string `json:"sessionId"`
	// PublicKey is the server's RSA public key as base64 SPKI DER, optionally
	// wrapped in PEM delimiters.
	PublicKey string `json:"publicKey"`
	// ExpiryTime is the absolute time after which the session must not be used.
	ExpiryTime Time `json:"expiryTime"`
}

// EncryptedRequest is the outbound envelope sent to the backend.
type EncryptedRequest struct {
	SessionID string `json:"sessionId"`
	// EncryptedData is base64 of IV || ciphertext || GCM tag.
	EncryptedData string `json:"encryptedData"`
	// EncryptedKey is base64 of the RSA-OAEP ciphertext of the AES key.
	EncryptedKey string `json:"encryptedKey"`
	// PayloadType is an optional discriminator understood by the backend.
	PayloadType string `json:"payloadType,omitempty"`
}

// EncryptedResponse is the inbound envelope returned by the backend. The
// response is decrypted with the key that encrypted the paired request,
// looked up by SessionID; EncryptedKey is carried for wire-shape parity but
// is not consulted on the client.
type EncryptedResponse struct {
	SessionID     string `json:"sessionId"`
	EncryptedData string `json:"encryptedData"`
	EncryptedKey  string `json:"encryptedKey"`
}

// IsEncryptedEnvelope reports whether raw parses as a JSON object carrying
// string-typed sessionId, encryptedData and encryptedKey fields. It is a
// structural check only; authenticity is established during decryption.
func IsEncryptedEnvelope(raw []byte) bool {
	var candidate map[string]json.RawMessage
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return false
	}
	return IsEncryptedEnvelopeObject(candidate)
}

// IsEncryptedEnvelopeObject is IsEncryptedEnvelope over an already-decoded
// JSON object.
func IsEncryptedEnvelopeObject(candidate map[string]json.RawMessage) bool {
	for _, field := range []string{"sessionId", "encryptedData", "encryptedKey"} {
		value, ok := candidate[field]
		if !ok {
			return false
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return false
		}
	}
	return true
}
