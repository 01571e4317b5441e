package crypto

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Verifier checks RSA-PSS/SHA-256 signatures.
type Verifier interface {
	Verify(data []byte, signatureHex string) (bool, error)
}

// RSAVerifier verifies signatures against a single known public key.
type RSAVerifier struct {
	PublicKey *rsa.PublicKey
}

// NewRSAVerifier builds a verifier from a PEM-encoded public key (SPKI or
// PKCS#1).
func NewRSAVerifier(pemBytes []byte) (*RSAVerifier, error) {
	pub, err := ParsePublicKeyPEM(pemBytes)
	if err != nil {
		return nil, err
	}
	return &RSAVerifier{PublicKey: pub}, nil
}

func (v *RSAVerifier) Verify(data []byte, signatureHex string) (bool, error) {
	return Verify(string(PublicKeyToPEM(v.PublicKey)), signatureHex, data)
}

// Verify checks an RSA-PSS/SHA-256 signature against a PEM-encoded public
// key. pubKeyPEM accepts either SPKI or PKCS#1 encoding; sigHex is the
// lowercase hex signature produced by Signer.Sign.
func Verify(pubKeyPEM, sigHex string, data []byte) (bool, error) {
	pub, err := ParsePublicKeyPEM([]byte(pubKeyPEM))
	if err != nil {
		return false, fmt.Errorf("invalid public key: %w", err)
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("invalid signature hex: %w", err)
	}

	digest := sha256.Sum256(data)
	err = rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	return err == nil, nil
}
