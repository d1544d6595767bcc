// Package fidocrypto wraps the crypto primitives this authenticator
// needs: SHA-256, ECDSA P-256 key generation with PKCS#8/SPKI export, and
// DER-encoded ES256 signing, grounded directly in crypto/ecdsa's
// ASN.1-DER signing API rather than a raw r||s encoding.
package fidocrypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
)

// SHA256 returns the SHA-256 digest of b.
func SHA256(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// GenerateP256KeyPair creates a fresh ECDSA P-256 key pair and returns the
// private key both as a live *ecdsa.PrivateKey and as its PKCS#8 DER
// encoding, the form in which it is persisted to the vault.
func GenerateP256KeyPair() (priv *ecdsa.PrivateKey, pkcs8 []byte, err error) {
	priv, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("fidocrypto: cannot generate P-256 key: %w", err)
	}

	pkcs8, err = x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("fidocrypto: cannot marshal PKCS#8 private key: %w", err)
	}

	return priv, pkcs8, nil
}

// ParsePKCS8PrivateKey decodes a stored private key back into its live
// form so it can sign an assertion.
func ParsePKCS8PrivateKey(pkcs8 []byte) (*ecdsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(pkcs8)
	if err != nil {
		return nil, fmt.Errorf("fidocrypto: cannot parse PKCS#8 private key: %w", err)
	}

	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("fidocrypto: stored key is not an ECDSA key")
	}

	return ecKey, nil
}

// MarshalSPKI exports pub in SPKI DER form, the encoding returned to the
// caller as CreateCredential's publicKey output.
func MarshalSPKI(pub *ecdsa.PublicKey) ([]byte, error) {
	b, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("fidocrypto: cannot marshal SPKI public key: %w", err)
	}
	return b, nil
}

// SignES256 signs SHA256(message) with priv and returns the signature as
// ASN.1 DER SEQUENCE{r,s}, never raw r||s.
func SignES256(priv *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	digest := SHA256(message)

	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest)
	if err != nil {
		return nil, fmt.Errorf("fidocrypto: cannot sign: %w", err)
	}

	return sig, nil
}

// VerifyES256 verifies a DER ECDSA signature produced by SignES256. Used
// only by tests, to check the sign/verify round trip.
func VerifyES256(pub *ecdsa.PublicKey, message, sig []byte) bool {
	digest := SHA256(message)
	return ecdsa.VerifyASN1(pub, digest, sig)
}
