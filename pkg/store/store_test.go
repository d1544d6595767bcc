package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-ctap/fido2vault/pkg/store"
)

func TestCredentialIDRoundTrip(t *testing.T) {
	text, raw := store.NewCredentialID()
	require.Len(t, raw, 16)

	gotRaw, err := store.CredentialIDToRaw(text)
	require.NoError(t, err)
	assert.Equal(t, raw, gotRaw)

	gotText, err := store.RawToCredentialID(raw)
	require.NoError(t, err)
	assert.Equal(t, text, gotText)
}

func TestMatchDiscoverable(t *testing.T) {
	entries := []*store.Entry{
		{ID: "a", Type: store.CipherTypeLogin, FIDO2: &store.Credential{RPID: "example.com", Discoverable: true}},
		{ID: "b", Type: store.CipherTypeLogin, FIDO2: &store.Credential{RPID: "example.com", Discoverable: false}},
		{ID: "c", Type: store.CipherTypeLogin, FIDO2: &store.Credential{RPID: "other.com", Discoverable: true}},
		{ID: "d", Deleted: true, Type: store.CipherTypeLogin, FIDO2: &store.Credential{RPID: "example.com", Discoverable: true}},
	}

	got := store.MatchDiscoverable(entries, "example.com")
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestMatchAllowList(t *testing.T) {
	entries := []*store.Entry{
		{ID: "a", Type: store.CipherTypeLogin, FIDO2: &store.Credential{CredentialID: "x", RPID: "example.com"}},
		{ID: "b", Type: store.CipherTypeLogin, FIDO2: &store.Credential{CredentialID: "y", RPID: "example.com"}},
		{ID: "c", Type: store.CipherTypeLogin, FIDO2: &store.Credential{CredentialID: "x", RPID: "other.com"}},
		{ID: "d", Deleted: true, Type: store.CipherTypeLogin, FIDO2: &store.Credential{CredentialID: "x", RPID: "example.com"}},
	}

	got := store.MatchAllowList(entries, "example.com", []string{"x"})
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	gotNone := store.MatchAllowList(entries, "example.com", []string{"z"})
	assert.Empty(t, gotNone)
}

func TestMatchExcluded_SkipsOrgOwnedEntries(t *testing.T) {
	orgID := "org-1"
	entries := []*store.Entry{
		{ID: "a", Type: store.CipherTypeLogin, FIDO2: &store.Credential{CredentialID: "x"}},
		{ID: "b", Type: store.CipherTypeLogin, OrganizationID: &orgID, FIDO2: &store.Credential{CredentialID: "x"}},
	}

	got := store.MatchExcluded(entries, []string{"x"})
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestUserHandleRoundTrip(t *testing.T) {
	userID := []byte{0xAA, 0xBB, 0xCC}
	handle := store.EncodeUserHandle(userID)
	got, err := store.DecodeUserHandle(handle)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}
