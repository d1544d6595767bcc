package authenticator_test

import (
	"context"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/require"

	"github.com/go-ctap/fido2vault/internal/memui"
	"github.com/go-ctap/fido2vault/internal/memvault"
	"github.com/go-ctap/fido2vault/pkg/authdata"
	"github.com/go-ctap/fido2vault/pkg/authenticator"
	"github.com/go-ctap/fido2vault/pkg/fidocrypto"
	"github.com/go-ctap/fido2vault/pkg/store"
	"github.com/go-ctap/fido2vault/pkg/webauthnerr"
	"github.com/go-ctap/fido2vault/pkg/webauthntypes"
)

type noopSync struct{}

func (noopSync) FullSync(context.Context, bool) error { return nil }

func TestMakeCredential_Success(t *testing.T) {
	ctx := context.Background()
	vault := memvault.New(&store.Entry{ID: "cipher-1", Type: store.CipherTypeLogin})
	ui := &memui.UI{CipherID: mo.Some("cipher-1"), UserVerified: true}

	auth := authenticator.New(vault, noopSync{}).WithUI(ui)

	result, err := auth.MakeCredential(ctx, authenticator.MakeCredentialParams{
		Hash: make([]byte, 32),
		RP:   webauthntypes.PublicKeyCredentialRpEntity{ID: "example.com", Name: "Example"},
		User: webauthntypes.PublicKeyCredentialUserEntity{ID: []byte{0xAA}, Name: "alice"},
		CredTypesAndPubKeyAlgs: []webauthntypes.PublicKeyCredentialParameters{
			{Type: webauthntypes.PublicKeyCredentialTypePublicKey, Algorithm: -7},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.CredentialID, 16)
	require.Equal(t, -7, result.PublicKeyAlgorithm)

	parsed, err := authdata.Parse(result.AuthData)
	require.NoError(t, err)
	require.True(t, parsed.Flags.AttestedCredentialData())
	require.True(t, parsed.Flags.UserPresent())
	require.True(t, parsed.Flags.UserVerified())

	entries, err := vault.GetAllDecrypted(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].FIDO2)
	require.Equal(t, uint32(0), entries[0].FIDO2.Counter)
}

func TestMakeCredential_NoSupportedAlgorithm(t *testing.T) {
	ctx := context.Background()
	vault := memvault.New()
	ui := &memui.UI{}
	auth := authenticator.New(vault, noopSync{}).WithUI(ui)

	_, err := auth.MakeCredential(ctx, authenticator.MakeCredentialParams{
		CredTypesAndPubKeyAlgs: []webauthntypes.PublicKeyCredentialParameters{
			{Type: webauthntypes.PublicKeyCredentialTypePublicKey, Algorithm: -257},
		},
	})
	require.Equal(t, webauthnerr.KindNotSupported, webauthnerr.AsKind(err))
}

func TestMakeCredential_Cancelled(t *testing.T) {
	ctx := context.Background()
	vault := memvault.New()
	ui := &memui.UI{} // CipherID unset -> cancelled
	auth := authenticator.New(vault, noopSync{}).WithUI(ui)

	_, err := auth.MakeCredential(ctx, authenticator.MakeCredentialParams{
		CredTypesAndPubKeyAlgs: []webauthntypes.PublicKeyCredentialParameters{
			{Type: webauthntypes.PublicKeyCredentialTypePublicKey, Algorithm: -7},
		},
	})
	require.Equal(t, webauthnerr.KindNotAllowed, webauthnerr.AsKind(err))
}

func discoverableEntry(t *testing.T, rpID string, counter uint32) (*store.Entry, string) {
	t.Helper()

	_, pkcs8, err := fidocrypto.GenerateP256KeyPair()
	require.NoError(t, err)

	credID, _ := store.NewCredentialID()
	return &store.Entry{
		ID:   "cipher-1",
		Type: store.CipherTypeLogin,
		FIDO2: &store.Credential{
			CredentialID: credID,
			KeyValue:     store.EncodeKeyValue(pkcs8),
			RPID:         rpID,
			UserHandle:   store.EncodeUserHandle([]byte{0xAA}),
			Counter:      counter,
			Discoverable: true,
		},
	}, credID
}

func TestGetAssertion_DiscoverableCounterIncrement(t *testing.T) {
	ctx := context.Background()
	entry, _ := discoverableEntry(t, "example.com", 5)
	vault := memvault.New(entry)
	ui := &memui.UI{CipherID: mo.Some("cipher-1"), UserVerified: true}
	auth := authenticator.New(vault, noopSync{}).WithUI(ui)

	result, err := auth.GetAssertion(ctx, authenticator.GetAssertionParams{
		RPID: "example.com",
		Hash: make([]byte, 32),
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x06}, result.AuthenticatorData[33:37])

	entries, err := vault.GetAllDecrypted(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(6), entries[0].FIDO2.Counter)
}

func TestGetAssertion_CounterZeroSentinelNeverIncrements(t *testing.T) {
	ctx := context.Background()
	entry, _ := discoverableEntry(t, "example.com", 0)
	vault := memvault.New(entry)
	ui := &memui.UI{CipherID: mo.Some("cipher-1"), UserVerified: true}
	auth := authenticator.New(vault, noopSync{}).WithUI(ui)

	result, err := auth.GetAssertion(ctx, authenticator.GetAssertionParams{
		RPID: "example.com",
		Hash: make([]byte, 32),
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x00}, result.AuthenticatorData[33:37])

	entries, err := vault.GetAllDecrypted(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(0), entries[0].FIDO2.Counter)
}

func TestGetAssertion_AllowListOfOne_BypassesUIPick(t *testing.T) {
	ctx := context.Background()
	entry, credID := discoverableEntry(t, "example.com", 5)
	vault := memvault.New(entry)
	ui := &memui.UI{CipherID: mo.Some("cipher-1"), UserVerified: true}
	auth := authenticator.New(vault, noopSync{}).WithUI(ui)

	rawID, err := store.CredentialIDToRaw(credID)
	require.NoError(t, err)

	result, err := auth.GetAssertion(ctx, authenticator.GetAssertionParams{
		RPID: "example.com",
		Hash: make([]byte, 32),
		AllowCredentialDescriptorList: []webauthntypes.PublicKeyCredentialDescriptor{
			{Type: webauthntypes.PublicKeyCredentialTypePublicKey, ID: rawID},
		},
		RequireUserPresence: false,
	})
	require.NoError(t, err)
	require.False(t, ui.PickCalled)
	require.Equal(t, rawID, result.SelectedCredential.ID)
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x06}, result.AuthenticatorData[33:37])
}

func TestGetAssertion_AllowListMultiple_PromptsUIPick(t *testing.T) {
	ctx := context.Background()
	entryA, credA := discoverableEntry(t, "example.com", 0)
	entryA.ID = "cipher-a"
	entryA.FIDO2.Discoverable = false
	entryB, credB := discoverableEntry(t, "example.com", 0)
	entryB.ID = "cipher-b"
	entryB.FIDO2.Discoverable = false
	vault := memvault.New(entryA, entryB)
	ui := &memui.UI{CipherID: mo.Some("cipher-b"), UserVerified: true}
	auth := authenticator.New(vault, noopSync{}).WithUI(ui)

	rawA, err := store.CredentialIDToRaw(credA)
	require.NoError(t, err)
	rawB, err := store.CredentialIDToRaw(credB)
	require.NoError(t, err)

	result, err := auth.GetAssertion(ctx, authenticator.GetAssertionParams{
		RPID: "example.com",
		Hash: make([]byte, 32),
		AllowCredentialDescriptorList: []webauthntypes.PublicKeyCredentialDescriptor{
			{Type: webauthntypes.PublicKeyCredentialTypePublicKey, ID: rawA},
			{Type: webauthntypes.PublicKeyCredentialTypePublicKey, ID: rawB},
		},
		RequireUserPresence: true,
	})
	require.NoError(t, err)
	require.True(t, ui.PickCalled)
	require.Equal(t, rawB, result.SelectedCredential.ID)
}

func TestGetAssertion_NoMatch(t *testing.T) {
	ctx := context.Background()
	vault := memvault.New()
	ui := &memui.UI{}
	auth := authenticator.New(vault, noopSync{}).WithUI(ui)

	_, err := auth.GetAssertion(ctx, authenticator.GetAssertionParams{RPID: "example.com", Hash: make([]byte, 32)})
	require.Equal(t, webauthnerr.KindNotAllowed, webauthnerr.AsKind(err))
}

func TestSilentDiscovery(t *testing.T) {
	ctx := context.Background()
	entry, credID := discoverableEntry(t, "example.com", 3)
	vault := memvault.New(entry)
	auth := authenticator.New(vault, noopSync{})

	discovered, err := auth.SilentDiscovery(ctx, "example.com")
	require.NoError(t, err)
	require.Len(t, discovered, 1)

	raw, err := store.CredentialIDToRaw(credID)
	require.NoError(t, err)
	require.Equal(t, raw, discovered[0].ID)

	// Calling twice without intervening writes yields identical lists.
	again, err := auth.SilentDiscovery(ctx, "example.com")
	require.NoError(t, err)
	require.Equal(t, discovered, again)
}
