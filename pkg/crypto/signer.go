package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
)

// RSAKeySize is the modulus size, in bits, used when generating new signing
// keys. 3072 bits comfortably exceeds the minimum strength implied by
// SHA-256 digests under RSA-PSS.
const RSAKeySize = 3072

// Signer produces RSA-PSS/SHA-256 signatures over arbitrary byte payloads.
// Implementations are expected to sign the SHA-256 digest of the caller's
// canonical representation of the value being signed, never raw
// attacker-controlled bytes of unbounded size.
type Signer interface {
	Sign(data []byte) (string, error)
	PublicKey() string
	PublicKeyBytes() []byte
	KeyID() string
}

// RSASigner signs with RSA-PSS/SHA-256. Signatures are returned as
// lowercase hex strings; public keys are exported as PEM-encoded SPKI.
type RSASigner struct {
	privKey *rsa.PrivateKey
	keyID   string
}

// NewRSASigner generates a fresh RSASigner keyed under keyID.
func NewRSASigner(keyID string) (*RSASigner, error) {
	priv, err := rsa.GenerateKey(rand.Reader, RSAKeySize)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return &RSASigner{privKey: priv, keyID: keyID}, nil
}

// NewRSASignerFromKey wraps an existing private key.
func NewRSASignerFromKey(priv *rsa.PrivateKey, keyID string) *RSASigner {
	return &RSASigner{privKey: priv, keyID: keyID}
}

// NewRSASignerFromPEM parses a PKCS#1 or PKCS#8 PEM-encoded private key.
func NewRSASignerFromPEM(pemBytes []byte, keyID string) (*RSASigner, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM block")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &RSASigner{privKey: key, keyID: keyID}, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("PEM does not contain an RSA private key")
	}
	return &RSASigner{privKey: rsaKey, keyID: keyID}, nil
}

// Sign signs the SHA-256 digest of data with RSA-PSS, returning a lowercase
// hex-encoded signature.
func (s *RSASigner) Sign(data []byte) (string, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPSS(rand.Reader, s.privKey, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", fmt.Errorf("RSA-PSS signing failed: %w", err)
	}
	return hex.EncodeToString(sig), nil
}

// SignWithKey signs data's SHA-256 digest under an arbitrary RSA private
// key, for callers that hold a raw key rather than a constructed Signer
// (e.g. the ledger, which accepts a caller-supplied key per append).
func SignWithKey(priv *rsa.PrivateKey, data []byte) (string, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", fmt.Errorf("RSA-PSS signing failed: %w", err)
	}
	return hex.EncodeToString(sig), nil
}

// PublicKey returns the PEM-encoded SPKI form of the signer's public key.
func (s *RSASigner) PublicKey() string {
	return string(PublicKeyToPEM(&s.privKey.PublicKey))
}

// PublicKeyBytes returns the DER-encoded SPKI public key.
func (s *RSASigner) PublicKeyBytes() []byte {
	der, _ := x509.MarshalPKIXPublicKey(&s.privKey.PublicKey)
	return der
}

// KeyID returns the identifier this signer was constructed with.
func (s *RSASigner) KeyID() string {
	return s.keyID
}

// PublicKeyToPEM encodes an RSA public key as PEM (SPKI/PKIX).
func PublicKeyToPEM(pub *rsa.PublicKey) []byte {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

// ParsePublicKeyPEM parses a PEM-encoded public key, accepting either SPKI
// (PKIX) or PKCS#1 RSA-specific encodings.
func ParsePublicKeyPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM block")
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("PEM does not contain an RSA public key")
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}
