package rsakey

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pmylund/go-cache"

	"github.com/jetstack/securelink/internal/envelope/aesgcm"
)

const (
	// minRSAKeySize is the minimum RSA key size in bits; we'd expect that keys
	// will be larger but 2048 is a sane floor to enforce to ensure that a weak
	// key can't accidentally be used.
	minRSAKeySize = 2048

	// Parsed keys are cached briefly so repeated requests against the same
	// issuer key skip the DER parse. Sessions themselves are never cached.
	cacheExpiry  = 15 * time.Minute
	cacheCleanup = 5 * time.Minute
)

var (
	// ErrInvalidKeyFormat indicates the public key material could not be
	// decoded or is not a valid SPKI-encoded RSA key.
	ErrInvalidKeyFormat = errors.New("invalid public key format")

	// ErrWrapFailure indicates RSA-OAEP encryption of the symmetric key failed.
	ErrWrapFailure = errors.New("failed to wrap symmetric key")
)

// Importer parses base64 SPKI DER public key material into RSA public keys.
type Importer struct {
	// AllowPEM accepts material wrapped in PEM delimiters, stripping the
	// header, footer and embedded whitespace before decoding.
	AllowPEM bool

	parsed *cache.Cache
}

// NewImporter returns an Importer. PEM-wrapped material is accepted when
// allowPEM is set.
func NewImporter(allowPEM bool) *Importer {
	return &Importer{
		AllowPEM: allowPEM,
		parsed:   cache.New(cacheExpiry, cacheCleanup),
	}
}

// Import parses public key material into an RSA public key. The material must
// be base64 SPKI DER (X.509 SubjectPublicKeyInfo), optionally PEM-wrapped.
func (i *Importer) Import(material string) (*rsa.PublicKey, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, fmt.Errorf("%w: key material is empty", ErrInvalidKeyFormat)
	}

	cacheKey := aesgcm.Hash(material)
	if cached, ok := i.parsed.Get(cacheKey); ok {
		return cached.(*rsa.PublicKey), nil
	}

	b64 := material
	if strings.Contains(b64, "-----BEGIN") {
		if !i.AllowPEM {
			return nil, fmt.Errorf("%w: PEM-wrapped keys are not accepted here", ErrInvalidKeyFormat)
		}
		b64 = stripPEM(b64)
	}
	// Whitespace and line breaks are tolerated inside the base64 body.
	b64 = strings.Join(strings.Fields(b64), "")

	der, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode: %v", ErrInvalidKeyFormat, err)
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parse SPKI: %v", ErrInvalidKeyFormat, err)
	}

	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: key is not an RSA public key, got %T", ErrInvalidKeyFormat, parsed)
	}

	if keySize := rsaKey.N.BitLen(); keySize < minRSAKeySize {
		return nil, fmt.Errorf("%w: RSA key size must be at least %d bits, got %d bits", ErrInvalidKeyFormat, minRSAKeySize, keySize)
	}

	i.parsed.Set(cacheKey, rsaKey, cache.DefaultExpiration)
	return rsaKey, nil
}

// stripPEM removes the PEM header and footer lines, keeping only the base64
// body.
func stripPEM(material string) string {
	var body []string
	for _, line := range strings.Split(material, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-----") {
			continue
		}
		body = append(body, line)
	}
	return strings.Join(body, "")
}
