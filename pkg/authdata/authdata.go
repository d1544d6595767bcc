// Package authdata builds and parses the authenticator-data byte string:
// rpIdHash(32) || flags(1) || signCount(4) || [attestedCredentialData] ||
// [extensions].
package authdata

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Flags is the single authenticator-data flags byte. Bit numbering
// matches the WebAuthn spec exactly: bit 7 is extension data, not the
// buggy bit-6 collision some CTAP source trees carry.
type Flags byte

const (
	FlagUserPresent            Flags = 1 << 0
	FlagUserVerified           Flags = 1 << 2
	FlagBackupEligible         Flags = 1 << 3
	FlagBackupState            Flags = 1 << 4
	FlagAttestedCredentialData Flags = 1 << 6
	FlagExtensionDataIncluded  Flags = 1 << 7
)

func (f Flags) UserPresent() bool            { return f&FlagUserPresent != 0 }
func (f Flags) UserVerified() bool           { return f&FlagUserVerified != 0 }
func (f Flags) BackupEligible() bool         { return f&FlagBackupEligible != 0 }
func (f Flags) BackupState() bool            { return f&FlagBackupState != 0 }
func (f Flags) AttestedCredentialData() bool { return f&FlagAttestedCredentialData != 0 }
func (f Flags) ExtensionData() bool          { return f&FlagExtensionDataIncluded != 0 }

// AAGUID is the fixed authenticator model identifier this implementation
// reports for every credential it attests.
var AAGUID = uuid.MustParse("d548826e-79b4-db40-a3d8-11116f7e8349")

// RPIDHash returns SHA256(utf8(rpID)).
func RPIDHash(rpID string) []byte {
	sum := sha256.Sum256([]byte(rpID))
	return sum[:]
}

// Build assembles authenticator data for an assertion (no attested
// credential data, AT=0).
func Build(rpID string, userPresent, userVerified bool, signCount uint32) []byte {
	flags := baseFlags(userPresent, userVerified)

	out := make([]byte, 37)
	copy(out[0:32], RPIDHash(rpID))
	out[32] = byte(flags)
	binary.BigEndian.PutUint32(out[33:37], signCount)
	return out
}

// BuildWithAttestedCredential assembles authenticator data for a
// registration (AT=1), appending AAGUID || credIdLen || credId ||
// COSE_Key after the 37-byte fixed header.
func BuildWithAttestedCredential(
	rpID string,
	userPresent, userVerified bool,
	signCount uint32,
	credentialID []byte,
	coseKey []byte,
) ([]byte, error) {
	if len(credentialID) > 0xFFFF {
		return nil, fmt.Errorf("authdata: credential id too long (%d bytes)", len(credentialID))
	}

	flags := baseFlags(userPresent, userVerified) | FlagAttestedCredentialData

	header := make([]byte, 37)
	copy(header[0:32], RPIDHash(rpID))
	header[32] = byte(flags)
	binary.BigEndian.PutUint32(header[33:37], signCount)

	attested := make([]byte, 0, 16+2+len(credentialID)+len(coseKey))
	attested = append(attested, AAGUID[:]...)
	credIDLen := make([]byte, 2)
	binary.BigEndian.PutUint16(credIDLen, uint16(len(credentialID)))
	attested = append(attested, credIDLen...)
	attested = append(attested, credentialID...)
	attested = append(attested, coseKey...)

	return append(header, attested...), nil
}

func baseFlags(userPresent, userVerified bool) Flags {
	// BE/BS are hardcoded: credentials live in the synchronised, encrypted
	// vault, so backup eligibility and backup state are always true.
	flags := FlagBackupEligible | FlagBackupState
	if userPresent {
		flags |= FlagUserPresent
	}
	if userVerified {
		flags |= FlagUserVerified
	}
	return flags
}

// Parsed is the decomposed form of an authenticator-data blob.
type Parsed struct {
	RPIDHash              []byte
	Flags                 Flags
	SignCount             uint32
	AttestedCredentialID  []byte
	AttestedAAGUID        uuid.UUID
	AttestedCredentialKey []byte // raw COSE_Key CBOR bytes
}

// Parse decomposes an authenticator-data blob. Extension data, if present,
// is not decoded: this authenticator never emits any.
func Parse(data []byte) (*Parsed, error) {
	if len(data) < 37 {
		return nil, fmt.Errorf("authdata: too short (%d bytes)", len(data))
	}

	p := &Parsed{
		RPIDHash:  data[0:32],
		Flags:     Flags(data[32]),
		SignCount: binary.BigEndian.Uint32(data[33:37]),
	}

	offset := 37
	if p.Flags.AttestedCredentialData() {
		if len(data) < offset+16+2 {
			return nil, fmt.Errorf("authdata: truncated attested credential data")
		}
		copy(p.AttestedAAGUID[:], data[offset:offset+16])
		offset += 16

		credIDLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if len(data) < offset+credIDLen {
			return nil, fmt.Errorf("authdata: truncated credential id")
		}
		p.AttestedCredentialID = data[offset : offset+credIDLen]
		offset += credIDLen

		p.AttestedCredentialKey = data[offset:]
	}

	return p, nil
}
