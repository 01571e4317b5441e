package identity

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AttestationClaims is the portable, cross-system-consumable snapshot of
// an identity's cached trust score. It is never consulted by
// validateAction or any invariant of the core pipeline — it exists purely
// so another system can cheaply check a signed trust snapshot without
// talking to the registry.
type AttestationClaims struct {
	jwt.RegisteredClaims
	TrustComposite float64 `json:"trust_composite"`
	OriginSystem   string  `json:"origin_system"`
}

// IssueAttestation signs a time-boxed JWT (PS256, RSA-PSS under the hood)
// carrying identity i's public trust snapshot.
func IssueAttestation(i Identity, signer *rsa.PrivateKey, ttl time.Duration, now time.Time) (string, error) {
	claims := AttestationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   i.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TrustComposite: i.TrustScore,
		OriginSystem:   i.OriginSystem,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodPS256, claims)
	return token.SignedString(signer)
}

// ParseAttestation verifies and decodes a portable attestation token
// against the issuing identity's RSA public key.
func ParseAttestation(tokenString string, publicKey *rsa.PublicKey) (*AttestationClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AttestationClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSAPSS); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AttestationClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return claims, nil
}
