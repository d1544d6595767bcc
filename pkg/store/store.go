// Package store models the FIDO2 credential as persisted inside a vault
// entry, and the filtering rules MakeCredential/GetAssertion/
// SilentDiscovery run over a caller's vault to find candidate entries.
//
// The vault itself — encryption, sync, persistence — is an external
// collaborator (pkg/collab.Vault); this package only knows the shape of
// the decrypted record and how to search a slice of them.
package store

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// CipherType mirrors the vault entry types the surrounding password
// manager supports; only Login entries can carry a FIDO2 credential.
type CipherType int

const (
	CipherTypeLogin      CipherType = 1
	CipherTypeSecureNote CipherType = 2
	CipherTypeCard       CipherType = 3
	CipherTypeIdentity   CipherType = 4
)

// RepromptType mirrors the vault's master-password reprompt setting on a
// cipher; a non-None value forces user verification on assertion even
// when the caller did not ask for it.
type RepromptType int

const (
	RepromptNone     RepromptType = 0
	RepromptPassword RepromptType = 1
)

// Credential is the FIDO2 credential persisted inside a vault entry,
// decrypted form. KeyValue holds base64url(PKCS#8 private key); UserHandle
// holds base64url(user.id).
type Credential struct {
	CredentialID    string // canonical UUID text
	KeyType         string
	KeyAlgorithm    string
	KeyCurve        string
	KeyValue        string
	RPID            string
	RPName          string
	UserHandle      string
	UserName        string
	UserDisplayName string
	Counter         uint32
	Discoverable    bool
	CreationDate    time.Time
}

const (
	CredentialKeyType      = "public-key"
	CredentialKeyAlgorithm = "ECDSA"
	CredentialKeyCurve     = "P-256"
)

// CredentialIDToRaw decodes a canonical UUID string into its 16-byte
// big-endian form.
func CredentialIDToRaw(id string) ([]byte, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("store: invalid credential id %q: %w", id, err)
	}
	return u[:], nil
}

// RawToCredentialID encodes a 16-byte raw UUID into canonical text. raw
// must be exactly 16 bytes.
func RawToCredentialID(raw []byte) (string, error) {
	if len(raw) != 16 {
		return "", fmt.Errorf("store: raw credential id must be 16 bytes, got %d", len(raw))
	}
	u, err := uuid.FromBytes(raw)
	if err != nil {
		return "", fmt.Errorf("store: invalid raw credential id: %w", err)
	}
	return u.String(), nil
}

// NewCredentialID generates a fresh random credential id, in both its
// canonical text and raw forms.
func NewCredentialID() (text string, raw []byte) {
	u := uuid.New()
	return u.String(), u[:]
}

// EncodeUserHandle and DecodeUserHandle convert between a raw user.id and
// its base64url persisted form.
func EncodeUserHandle(userID []byte) string {
	return base64.RawURLEncoding.EncodeToString(userID)
}

func DecodeUserHandle(handle string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(handle)
	if err != nil {
		return nil, fmt.Errorf("store: invalid user handle: %w", err)
	}
	return b, nil
}

// EncodeKeyValue and DecodeKeyValue convert between a PKCS#8-encoded
// private key and its base64url persisted form.
func EncodeKeyValue(pkcs8 []byte) string {
	return base64.RawURLEncoding.EncodeToString(pkcs8)
}

func DecodeKeyValue(value string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("store: invalid key value: %w", err)
	}
	return b, nil
}

// Entry is the decrypted shape of a vault entry this core cares about. Its
// full cipher record (name, folder, history, ...) is the vault
// collaborator's concern; this is the minimal projection the authenticator
// layer reads and mutates.
type Entry struct {
	ID             string
	Deleted        bool
	OrganizationID *string
	Type           CipherType
	Reprompt       RepromptType
	FIDO2          *Credential
	LastUsedDate   *time.Time
}

// EligibleForFIDO2Exclusion reports whether e is a candidate for the
// MakeCredential exclude-list check: not deleted, unowned by an
// organization, login-typed, and carrying a FIDO2 credential.
func (e *Entry) EligibleForFIDO2Exclusion() bool {
	return !e.Deleted && e.OrganizationID == nil && e.Type == CipherTypeLogin && e.FIDO2 != nil
}

// EligibleForAssertion reports whether e is a candidate for GetAssertion:
// not deleted, login-typed, carrying a FIDO2 credential.
func (e *Entry) EligibleForAssertion() bool {
	return !e.Deleted && e.Type == CipherTypeLogin && e.FIDO2 != nil
}

// MatchExcluded returns the entries in entries whose credential id is in
// excludedIDs (canonical text), restricted to entries eligible for
// exclusion.
func MatchExcluded(entries []*Entry, excludedIDs []string) []*Entry {
	excluded := make(map[string]struct{}, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = struct{}{}
	}

	return lo.Filter(entries, func(e *Entry, _ int) bool {
		if !e.EligibleForFIDO2Exclusion() {
			return false
		}
		_, found := excluded[e.FIDO2.CredentialID]
		return found
	})
}

// MatchAllowList returns the entries matching the resolved allow-list
// credential ids for rpID (the allow-list branch).
func MatchAllowList(entries []*Entry, rpID string, allowedIDs []string) []*Entry {
	allowed := make(map[string]struct{}, len(allowedIDs))
	for _, id := range allowedIDs {
		allowed[id] = struct{}{}
	}

	return lo.Filter(entries, func(e *Entry, _ int) bool {
		if !e.EligibleForAssertion() {
			return false
		}
		if e.FIDO2.RPID != rpID {
			return false
		}
		_, found := allowed[e.FIDO2.CredentialID]
		return found
	})
}

// MatchDiscoverable returns the entries matching rpID with a discoverable
// credential (the no-allow-list branch), and is also used by
// SilentDiscovery.
func MatchDiscoverable(entries []*Entry, rpID string) []*Entry {
	return lo.Filter(entries, func(e *Entry, _ int) bool {
		return e.EligibleForAssertion() && e.FIDO2.RPID == rpID && e.FIDO2.Discoverable
	})
}

// FindByID returns the entry in entries with the given cipher id, if any.
func FindByID(entries []*Entry, id string) (*Entry, bool) {
	return lo.Find(entries, func(e *Entry) bool { return e.ID == id })
}
