// Package cose produces the CTAP2-canonical CBOR structures this
// authenticator emits: COSE_Key for ES256 public keys, and the three-entry
// attestation object that wraps authenticator data.
package cose

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ldclabs/cose/iana"
	"github.com/ldclabs/cose/key"
)

// EncMode returns the CTAP2 canonical CBOR encoder: definite-length,
// shortest-form integers, map keys sorted in canonical order. This is the
// mode pkg/options.NewOptions defaults to; MarshalKey/MarshalAttestationObject
// take their mode as a parameter rather than hardcoding this one, so a
// caller can override it via options.WithEncMode. Exported for tests and
// other callers that need a bare CTAP2 mode without constructing Options.
func EncMode() cbor.EncMode {
	mode, err := cbor.CTAP2EncOptions().EncMode()
	if err != nil {
		// CTAP2EncOptions() always yields a valid configuration; a failure
		// here means the cbor package itself is broken.
		panic(fmt.Sprintf("cose: cannot build CTAP2 encode mode: %v", err))
	}
	return mode
}

// KeyFromECDSA builds the COSE_Key (EC2/P-256/ES256) map for pub, with its
// five entries in the canonical key order 1, 3, -1, -2, -3. X and Y are
// left-padded to 32 bytes, preserving leading zeros.
func KeyFromECDSA(pub *ecdsa.PublicKey) key.Key {
	x := make([]byte, 32)
	y := make([]byte, 32)
	pub.X.FillBytes(x)
	pub.Y.FillBytes(y)

	return key.Key{
		iana.KeyParameterKty:    iana.KeyTypeEC2,
		iana.KeyParameterAlg:    iana.AlgorithmES256,
		iana.EC2KeyParameterCrv: iana.EllipticCurveP_256,
		iana.EC2KeyParameterX:   x,
		iana.EC2KeyParameterY:   y,
	}
}

// MarshalKey encodes a COSE_Key with mode, the caller's configured CBOR
// encoder (see pkg/options.WithEncMode).
func MarshalKey(k key.Key, mode cbor.EncMode) ([]byte, error) {
	b, err := mode.Marshal(k)
	if err != nil {
		return nil, fmt.Errorf("cose: cannot marshal COSE_Key: %w", err)
	}
	return b, nil
}

// AttestationObject is the three-entry CBOR map this authenticator always
// produces: "none" attestation with an empty statement.
type AttestationObject struct {
	Format               string         `cbor:"fmt"`
	AttestationStatement map[string]any `cbor:"attStmt"`
	AuthData             []byte         `cbor:"authData"`
}

// MarshalAttestationObject builds and encodes, with mode, the attestation
// object wrapping authData. This authenticator only ever emits "none"
// attestation, so attStmt is always an empty map.
func MarshalAttestationObject(authData []byte, mode cbor.EncMode) ([]byte, error) {
	obj := AttestationObject{
		Format:               "none",
		AttestationStatement: map[string]any{},
		AuthData:             authData,
	}

	b, err := mode.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("cose: cannot marshal attestation object: %w", err)
	}
	return b, nil
}
