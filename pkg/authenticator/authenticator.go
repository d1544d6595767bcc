// Package authenticator implements the virtual CTAP2 authenticator:
// MakeCredential, GetAssertion and SilentDiscovery. It holds no credential
// material of its own — everything lives in the vault collaborator — and
// is invoked through direct calls rather than CTAP-HID transport framing.
package authenticator

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/samber/lo"

	"github.com/go-ctap/fido2vault/pkg/authdata"
	"github.com/go-ctap/fido2vault/pkg/collab"
	"github.com/go-ctap/fido2vault/pkg/cose"
	"github.com/go-ctap/fido2vault/pkg/fidocrypto"
	"github.com/go-ctap/fido2vault/pkg/options"
	"github.com/go-ctap/fido2vault/pkg/store"
	"github.com/go-ctap/fido2vault/pkg/webauthnerr"
	"github.com/go-ctap/fido2vault/pkg/webauthntypes"
)

// Authenticator is constructed without a UI collaborator (it is not
// available yet at construction time) and made ready to use via WithUI,
// per the late-bound-UI design note: New returns a value that can only
// call Vault/Sync; WithUI returns a new value that can also prompt.
type Authenticator struct {
	logger  *slog.Logger
	encMode cbor.EncMode
	vault   collab.Vault
	sync    collab.Sync
	ui      collab.UI
}

// New constructs an Authenticator with no UI attached yet.
func New(vault collab.Vault, sync collab.Sync, opts ...options.Option) *Authenticator {
	oo := options.NewOptions(opts...)
	return &Authenticator{logger: oo.Logger, encMode: oo.EncMode, vault: vault, sync: sync}
}

// WithUI returns a ready-to-use Authenticator with ui attached. It does
// not mutate a, so the no-UI value a remains usable on its own.
func (a *Authenticator) WithUI(ui collab.UI) *Authenticator {
	cp := *a
	cp.ui = ui
	return &cp
}

func (a *Authenticator) requireUI() (collab.UI, error) {
	if a.ui == nil {
		return nil, webauthnerr.Unknown(fmt.Errorf("authenticator: no UI collaborator attached, call WithUI first"))
	}
	return a.ui, nil
}

// MakeCredentialParams carries the registration inputs.
type MakeCredentialParams struct {
	Hash                            []byte
	RP                              webauthntypes.PublicKeyCredentialRpEntity
	User                            webauthntypes.PublicKeyCredentialUserEntity
	CredTypesAndPubKeyAlgs          []webauthntypes.PublicKeyCredentialParameters
	RequireResidentKey              bool
	RequireUserVerification         bool
	ExcludeCredentialDescriptorList []webauthntypes.PublicKeyCredentialDescriptor
}

// MakeCredentialResult is the registration output.
type MakeCredentialResult struct {
	CredentialID       []byte
	AttestationObject  []byte
	AuthData           []byte
	PublicKey          []byte // SPKI DER
	PublicKeyAlgorithm int
}

// MakeCredential performs registration.
func (a *Authenticator) MakeCredential(ctx context.Context, params MakeCredentialParams) (*MakeCredentialResult, error) {
	if !webauthntypes.SupportsES256(params.CredTypesAndPubKeyAlgs) {
		return nil, webauthnerr.NotSupported("no acceptable public key algorithm (only ES256 is supported)")
	}

	ui, err := a.requireUI()
	if err != nil {
		return nil, err
	}

	if err := ui.EnsureUnlockedVault(ctx); err != nil {
		return nil, webauthnerr.Unknown(err)
	}
	if err := a.sync.FullSync(ctx, false); err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	allEntries, err := a.vault.GetAllDecrypted(ctx)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	excludedIDs, err := decodeDescriptorIDs(params.ExcludeCredentialDescriptorList)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}
	if len(excludedIDs) > 0 {
		excluded := store.MatchExcluded(allEntries, excludedIDs)
		if len(excluded) > 0 {
			_ = ui.InformExcludedCredential(ctx, lo.Map(excluded, func(e *store.Entry, _ int) string {
				return e.FIDO2.CredentialID
			}))
			a.logger.Warn("MakeCredential denied: excluded credential matched", "rpId", params.RP.ID)
			return nil, webauthnerr.NotAllowed("credential is excluded")
		}
	}

	confirmation, err := ui.ConfirmNewCredential(ctx, collab.ConfirmNewCredentialRequest{
		CredentialName:   params.RP.Name,
		UserName:         params.User.Name,
		UserVerification: params.RequireUserVerification,
		RPID:             params.RP.ID,
	})
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}
	cipherID, ok := confirmation.CipherID.Get()
	if !ok {
		return nil, webauthnerr.NotAllowed("user cancelled credential creation")
	}

	return a.finishMakeCredential(ctx, params, cipherID, confirmation.UserVerified)
}

func (a *Authenticator) finishMakeCredential(
	ctx context.Context,
	params MakeCredentialParams,
	cipherID string,
	uiVerified bool,
) (*MakeCredentialResult, error) {
	priv, pkcs8, err := fidocrypto.GenerateP256KeyPair()
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	credentialIDText, credentialIDRaw := store.NewCredentialID()

	encrypted, err := a.vault.GetEncrypted(ctx, cipherID)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}
	entry, err := a.vault.Decrypt(ctx, encrypted)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	if !uiVerified && (params.RequireUserVerification || entry.Reprompt != store.RepromptNone) {
		return nil, webauthnerr.NotAllowed("user verification required but not performed")
	}

	entry.FIDO2 = &store.Credential{
		CredentialID:    credentialIDText,
		KeyType:         store.CredentialKeyType,
		KeyAlgorithm:    store.CredentialKeyAlgorithm,
		KeyCurve:        store.CredentialKeyCurve,
		KeyValue:        store.EncodeKeyValue(pkcs8),
		RPID:            params.RP.ID,
		RPName:          params.RP.Name,
		UserHandle:      store.EncodeUserHandle(params.User.ID),
		UserName:        params.User.Name,
		UserDisplayName: params.User.DisplayName,
		Counter:         0,
		Discoverable:    params.RequireResidentKey,
		CreationDate:    time.Now(),
	}

	reEncrypted, err := a.vault.Encrypt(ctx, entry)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}
	if err := a.vault.SaveWithServer(ctx, reEncrypted); err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	coseKeyBytes, err := cose.MarshalKey(cose.KeyFromECDSA(&priv.PublicKey), a.encMode)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	authData, err := authdata.BuildWithAttestedCredential(
		params.RP.ID,
		true,
		uiVerified,
		0,
		credentialIDRaw,
		coseKeyBytes,
	)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	attestationObject, err := cose.MarshalAttestationObject(authData, a.encMode)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	spki, err := fidocrypto.MarshalSPKI(&priv.PublicKey)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	a.logger.Debug("MakeCredential attestation object",
		"rpId", params.RP.ID,
		"credentialId", credentialIDText,
		"hex", hex.EncodeToString(attestationObject),
	)

	return &MakeCredentialResult{
		CredentialID:       credentialIDRaw,
		AttestationObject:  attestationObject,
		AuthData:           authData,
		PublicKey:          spki,
		PublicKeyAlgorithm: int(webauthntypes.AlgorithmES256),
	}, nil
}

// GetAssertionParams carries the assertion inputs.
type GetAssertionParams struct {
	RPID                          string
	Hash                          []byte
	AllowCredentialDescriptorList []webauthntypes.PublicKeyCredentialDescriptor
	RequireUserPresence           bool
	RequireUserVerification       bool
}

// SelectedCredential identifies the credential an assertion was produced
// with.
type SelectedCredential struct {
	ID         []byte
	UserHandle string
}

// GetAssertionResult is the assertion output.
type GetAssertionResult struct {
	SelectedCredential SelectedCredential
	AuthenticatorData  []byte
	Signature          []byte
}

// GetAssertion performs an assertion ceremony.
func (a *Authenticator) GetAssertion(ctx context.Context, params GetAssertionParams) (*GetAssertionResult, error) {
	ui, err := a.requireUI()
	if err != nil {
		return nil, err
	}

	if err := ui.EnsureUnlockedVault(ctx); err != nil {
		return nil, webauthnerr.Unknown(err)
	}
	if err := a.sync.FullSync(ctx, false); err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	allEntries, err := a.vault.GetAllDecrypted(ctx)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	var candidates []*store.Entry
	var allowedIDs []string
	if len(params.AllowCredentialDescriptorList) > 0 {
		allowedIDs, err = decodeDescriptorIDs(params.AllowCredentialDescriptorList)
		if err != nil {
			return nil, webauthnerr.Unknown(err)
		}
		candidates = store.MatchAllowList(allEntries, params.RPID, allowedIDs)
	} else {
		candidates = store.MatchDiscoverable(allEntries, params.RPID)
	}

	if len(candidates) == 0 {
		return nil, webauthnerr.NotAllowed("no matching credential")
	}

	var cipherID string
	var userPresence, userVerified bool

	if len(allowedIDs) == 1 && !params.RequireUserPresence {
		cipherID = candidates[0].ID
		userPresence = false
		userVerified = false
	} else {
		pick, err := ui.PickCredential(ctx, collab.PickCredentialRequest{
			CipherIDs:        lo.Map(candidates, func(e *store.Entry, _ int) string { return e.ID }),
			UserVerification: params.RequireUserVerification,
		})
		if err != nil {
			return nil, webauthnerr.Unknown(err)
		}
		id, ok := pick.CipherID.Get()
		if !ok {
			return nil, webauthnerr.NotAllowed("user cancelled credential selection")
		}
		cipherID = id
		userPresence = true
		userVerified = pick.UserVerified
	}

	selected, found := store.FindByID(candidates, cipherID)
	if !found {
		return nil, webauthnerr.NotAllowed("selected credential is not a candidate")
	}

	if !userPresence && params.RequireUserPresence {
		return nil, webauthnerr.NotAllowed("user presence required but not performed")
	}
	if !userVerified && (params.RequireUserVerification || selected.Reprompt != store.RepromptNone) {
		return nil, webauthnerr.NotAllowed("user verification required but not performed")
	}

	return a.finishGetAssertion(ctx, params, selected, userPresence, userVerified)
}

func (a *Authenticator) finishGetAssertion(
	ctx context.Context,
	params GetAssertionParams,
	entry *store.Entry,
	userPresence, userVerified bool,
) (*GetAssertionResult, error) {
	cred := entry.FIDO2

	newCounter := cred.Counter
	if cred.Counter != 0 {
		newCounter = cred.Counter + 1
	}
	cred.Counter = newCounter

	reEncrypted, err := a.vault.Encrypt(ctx, entry)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}
	if err := a.vault.SaveWithServer(ctx, reEncrypted); err != nil {
		return nil, webauthnerr.Unknown(err)
	}
	if err := a.vault.UpdateLastUsedDate(ctx, entry.ID); err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	authData := authdata.Build(params.RPID, userPresence, userVerified, newCounter)

	pkcs8, err := store.DecodeKeyValue(cred.KeyValue)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}
	priv, err := fidocrypto.ParsePKCS8PrivateKey(pkcs8)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	signature, err := fidocrypto.SignES256(priv, append(append([]byte{}, authData...), params.Hash...))
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	credentialIDRaw, err := store.CredentialIDToRaw(cred.CredentialID)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	a.logger.Debug("GetAssertion signature",
		"rpId", params.RPID,
		"credentialId", cred.CredentialID,
		"signCount", newCounter,
		"hex", hex.EncodeToString(signature),
	)

	return &GetAssertionResult{
		SelectedCredential: SelectedCredential{
			ID:         credentialIDRaw,
			UserHandle: cred.UserHandle,
		},
		AuthenticatorData: authData,
		Signature:         signature,
	}, nil
}

// DiscoveredCredential is one SilentDiscovery result entry.
type DiscoveredCredential struct {
	Type       webauthntypes.PublicKeyCredentialType
	ID         []byte
	RPID       string
	UserHandle string
	UserName   string
}

// SilentDiscovery returns discoverable credentials for rpID with no UI
// interaction and no mutation.
func (a *Authenticator) SilentDiscovery(ctx context.Context, rpID string) ([]DiscoveredCredential, error) {
	entries, err := a.vault.GetAllDecrypted(ctx)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	matches := store.MatchDiscoverable(entries, rpID)

	out := make([]DiscoveredCredential, 0, len(matches))
	for _, e := range matches {
		raw, err := store.CredentialIDToRaw(e.FIDO2.CredentialID)
		if err != nil {
			return nil, webauthnerr.Unknown(err)
		}
		out = append(out, DiscoveredCredential{
			Type:       webauthntypes.PublicKeyCredentialTypePublicKey,
			ID:         raw,
			RPID:       e.FIDO2.RPID,
			UserHandle: e.FIDO2.UserHandle,
			UserName:   e.FIDO2.UserName,
		})
	}
	return out, nil
}

func decodeDescriptorIDs(descriptors []webauthntypes.PublicKeyCredentialDescriptor) ([]string, error) {
	ids := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		text, err := store.RawToCredentialID(d.ID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, text)
	}
	return ids, nil
}
