// Package collab declares the external collaborator contracts the core
// consumes: vault encryption, UI prompts, sync, and the surrounding
// app/account state. Concrete implementations (real vault, real UI) live
// outside this module; internal/memvault and internal/memui provide
// in-memory fixtures for tests and the demo command.
package collab

import (
	"context"

	"github.com/samber/mo"

	"github.com/go-ctap/fido2vault/pkg/store"
)

// State reports account-level facts the client layer's guard clauses need.
type State interface {
	AutofillBlocklistedHosts(ctx context.Context) (map[string]struct{}, error)
	IsAuthenticated(ctx context.Context) (bool, error)
}

// Environment exposes the backend configuration the client layer checks
// against (the self-registration guard).
type Environment interface {
	WebVaultURL(ctx context.Context) string
}

// Sync triggers a full vault sync before the authenticator layer reads
// from it, so UI prompts always reflect current data.
type Sync interface {
	FullSync(ctx context.Context, force bool) error
}

// Crypto hashes bytes on the caller's behalf. The client layer hashes
// clientDataJSON with pkg/fidocrypto.SHA256 unless a Crypto is attached
// via client.Client.WithCrypto, so an embedding app can route that hash
// through its own crypto engine (e.g. one backed by native code). The
// authenticator layer does not use this interface.
type Crypto interface {
	SHA256(b []byte) []byte
}

// ConfirmNewCredentialRequest is passed to UI.ConfirmNewCredential.
type ConfirmNewCredentialRequest struct {
	CredentialName   string
	UserName         string
	UserVerification bool
	RPID             string
}

// ConfirmNewCredentialResult is the UI's response to a registration
// prompt. CipherID is absent when the user cancels.
type ConfirmNewCredentialResult struct {
	CipherID     mo.Option[string]
	UserVerified bool
}

// PickCredentialRequest is passed to UI.PickCredential.
type PickCredentialRequest struct {
	CipherIDs        []string
	UserVerification bool
}

// PickCredentialResult is the UI's response to an assertion prompt.
type PickCredentialResult struct {
	CipherID     mo.Option[string]
	UserVerified bool
}

// UI is the late-bound user-interface collaborator (see
// authenticator.Authenticator.WithUI): the authenticator is constructed before
// a UI is available and only gets one handed to it afterward.
type UI interface {
	EnsureUnlockedVault(ctx context.Context) error
	InformExcludedCredential(ctx context.Context, excludedCredentialIDs []string) error
	ConfirmNewCredential(ctx context.Context, req ConfirmNewCredentialRequest) (ConfirmNewCredentialResult, error)
	PickCredential(ctx context.Context, req PickCredentialRequest) (PickCredentialResult, error)
}

// Vault is the encrypted credential store. GetEncrypted/Decrypt/Encrypt
// model the vault's encryption boundary explicitly: callers must decrypt
// before reading a FIDO2 credential and encrypt before persisting one.
type Vault interface {
	GetEncrypted(ctx context.Context, id string) (EncryptedEntry, error)
	Decrypt(ctx context.Context, entry EncryptedEntry) (*store.Entry, error)
	Encrypt(ctx context.Context, entry *store.Entry) (EncryptedEntry, error)
	SaveWithServer(ctx context.Context, entry EncryptedEntry) error
	GetAllDecrypted(ctx context.Context) ([]*store.Entry, error)
	UpdateLastUsedDate(ctx context.Context, id string) error
}

// EncryptedEntry is an opaque, vault-owned encrypted blob. This core never
// inspects its contents directly; it only round-trips it through
// Decrypt/Encrypt/SaveWithServer.
type EncryptedEntry interface {
	ID() string
}
