// Package webauthntypes holds the wire-level WebAuthn entity shapes
// consumed by the client and authenticator layers.
package webauthntypes

import "github.com/ldclabs/cose/key"

type (
	// PublicKeyCredentialType defines the valid credential types.
	// https://www.w3.org/TR/webauthn-3/#enumdef-publickeycredentialtype
	PublicKeyCredentialType string
	// AuthenticatorTransport defines hints as to how clients might communicate
	// with a particular authenticator in order to obtain an assertion for a specific credential.
	// https://www.w3.org/TR/webauthn-3/#enumdef-authenticatortransport
	AuthenticatorTransport string
	// AttestationStatementFormatIdentifier names an IANA registered Attestation Statement Format.
	// This authenticator only ever emits AttestationStatementFormatIdentifierNone.
	AttestationStatementFormatIdentifier string
)

const (
	PublicKeyCredentialTypePublicKey PublicKeyCredentialType = "public-key"
)

const (
	AuthenticatorTransportUSB      AuthenticatorTransport = "usb"
	AuthenticatorTransportNFC      AuthenticatorTransport = "nfc"
	AuthenticatorTransportBLE      AuthenticatorTransport = "ble"
	AuthenticatorTransportHybrid   AuthenticatorTransport = "hybrid"
	AuthenticatorTransportInternal AuthenticatorTransport = "internal"
)

const (
	AttestationStatementFormatIdentifierNone AttestationStatementFormatIdentifier = "none"
)

// AlgorithmES256 is the only COSE algorithm identifier this authenticator supports.
const AlgorithmES256 key.Alg = -7

// PublicKeyCredentialRpEntity supplies Relying Party attributes for a new credential.
// https://www.w3.org/TR/webauthn-3/#dictdef-publickeycredentialrpentity
type PublicKeyCredentialRpEntity struct {
	ID   string `cbor:"id" json:"id"`
	Name string `cbor:"name,omitempty" json:"name,omitempty"`
}

// PublicKeyCredentialUserEntity supplies user account attributes for a new credential.
// https://www.w3.org/TR/webauthn-3/#dictdef-publickeycredentialuserentity
type PublicKeyCredentialUserEntity struct {
	ID          []byte `cbor:"id" json:"id"`
	DisplayName string `cbor:"displayName,omitempty" json:"displayName,omitempty"`
	Name        string `cbor:"name,omitempty" json:"name,omitempty"`
}

// PublicKeyCredentialDescriptor identifies a specific public key credential.
// https://www.w3.org/TR/webauthn-3/#dictdef-publickeycredentialdescriptor
type PublicKeyCredentialDescriptor struct {
	Type       PublicKeyCredentialType  `cbor:"type" json:"type"`
	ID         []byte                   `cbor:"id" json:"id"`
	Transports []AuthenticatorTransport `cbor:"transports,omitempty" json:"transports,omitempty"`
}

// PublicKeyCredentialParameters supplies the signature algorithm a caller is willing to accept.
// https://www.w3.org/TR/webauthn-3/#dictdef-publickeycredentialparameters
type PublicKeyCredentialParameters struct {
	Type      PublicKeyCredentialType `cbor:"type" json:"type"`
	Algorithm key.Alg                 `cbor:"alg" json:"alg"`
}

// SupportsES256 reports whether params contains an ES256 entry.
func SupportsES256(params []PublicKeyCredentialParameters) bool {
	for _, p := range params {
		if p.Algorithm == AlgorithmES256 {
			return true
		}
	}
	return false
}

// FilterES256 returns the subset of params accepted by this authenticator (ES256 only).
func FilterES256(params []PublicKeyCredentialParameters) []PublicKeyCredentialParameters {
	out := make([]PublicKeyCredentialParameters, 0, len(params))
	for _, p := range params {
		if p.Type == PublicKeyCredentialTypePublicKey && p.Algorithm == AlgorithmES256 {
			out = append(out, p)
		}
	}
	return out
}

// ResidentKeyRequirement mirrors the WebAuthn residentKey enum on
// AuthenticatorSelectionCriteria.
type ResidentKeyRequirement string

const (
	ResidentKeyRequirementDiscouraged ResidentKeyRequirement = "discouraged"
	ResidentKeyRequirementPreferred   ResidentKeyRequirement = "preferred"
	ResidentKeyRequirementRequired    ResidentKeyRequirement = "required"
)

// UserVerificationRequirement mirrors the WebAuthn userVerification enum.
type UserVerificationRequirement string

const (
	UserVerificationRequirementDiscouraged UserVerificationRequirement = "discouraged"
	UserVerificationRequirementPreferred   UserVerificationRequirement = "preferred"
	UserVerificationRequirementRequired    UserVerificationRequirement = "required"
)

// AuthenticatorSelectionCriteria carries the caller's resident-key and
// user-verification preferences for a registration ceremony.
// https://www.w3.org/TR/webauthn-3/#dictdef-authenticatorselectioncriteria
type AuthenticatorSelectionCriteria struct {
	ResidentKey        ResidentKeyRequirement      `json:"residentKey,omitempty"`
	RequireResidentKey bool                        `json:"requireResidentKey,omitempty"`
	UserVerification   UserVerificationRequirement `json:"userVerification,omitempty"`
}

// ClientDataType distinguishes the two WebAuthn ceremonies.
type ClientDataType string

const (
	ClientDataTypeCreate ClientDataType = "webauthn.create"
	ClientDataTypeGet    ClientDataType = "webauthn.get"
)

// CollectedClientData is serialized verbatim, field order included, as the
// clientDataJSON the relying party hashes into the signed payload.
// https://www.w3.org/TR/webauthn-3/#dictdef-collectedclientdata
type CollectedClientData struct {
	Type        ClientDataType `json:"type"`
	Challenge   string         `json:"challenge"`
	Origin      string         `json:"origin"`
	CrossOrigin bool           `json:"crossOrigin"`
}
