// Package memui is a scripted in-memory UI collaborator for tests and the
// demo command: instead of prompting a human, it returns preconfigured
// answers.
package memui

import (
	"context"

	"github.com/samber/mo"

	"github.com/go-ctap/fido2vault/pkg/collab"
)

// UI answers every prompt with a fixed decision. A zero-value UI cancels
// every prompt (CipherID unset), matching "user cancelled" by default.
type UI struct {
	// CipherID, if set, is returned from ConfirmNewCredential and
	// PickCredential. Leaving it unset simulates user cancellation.
	CipherID mo.Option[string]
	// UserVerified is returned alongside CipherID from both prompts.
	UserVerified bool

	Excluded []string
	Informed bool

	// PickCalled records whether PickCredential was invoked, so tests can
	// assert the silent allow-list-of-one path skipped the UI prompt.
	PickCalled bool
}

func (u *UI) EnsureUnlockedVault(_ context.Context) error {
	return nil
}

func (u *UI) InformExcludedCredential(_ context.Context, excludedCredentialIDs []string) error {
	u.Excluded = excludedCredentialIDs
	u.Informed = true
	return nil
}

func (u *UI) ConfirmNewCredential(_ context.Context, _ collab.ConfirmNewCredentialRequest) (collab.ConfirmNewCredentialResult, error) {
	return collab.ConfirmNewCredentialResult{
		CipherID:     u.CipherID,
		UserVerified: u.UserVerified,
	}, nil
}

func (u *UI) PickCredential(_ context.Context, _ collab.PickCredentialRequest) (collab.PickCredentialResult, error) {
	u.PickCalled = true
	return collab.PickCredentialResult{
		CipherID:     u.CipherID,
		UserVerified: u.UserVerified,
	}, nil
}
