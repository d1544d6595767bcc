package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	"github.com/samber/mo"

	"github.com/go-ctap/fido2vault/internal/memui"
	"github.com/go-ctap/fido2vault/internal/memvault"
	"github.com/go-ctap/fido2vault/pkg/authenticator"
	"github.com/go-ctap/fido2vault/pkg/client"
	"github.com/go-ctap/fido2vault/pkg/options"
	"github.com/go-ctap/fido2vault/pkg/store"
	"github.com/go-ctap/fido2vault/pkg/webauthntypes"
)

type state struct{}

func (state) AutofillBlocklistedHosts(context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (state) IsAuthenticated(context.Context) (bool, error) { return true, nil }

type environment struct{}

func (environment) WebVaultURL(context.Context) string { return "https://vault.bitwarden.com" }

type noopSync struct{}

func (noopSync) FullSync(context.Context, bool) error { return nil }

func main() {
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelDebug)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))

	ctx := context.Background()

	vault := memvault.New(&store.Entry{ID: "cipher-1", Type: store.CipherTypeLogin})
	ui := &memui.UI{CipherID: mo.Some("cipher-1"), UserVerified: true}

	auth := authenticator.New(vault, noopSync{}, options.WithLogger(logger)).WithUI(ui)
	c := client.New(auth, state{}, environment{}, options.WithLogger(logger))

	created, err := c.CreateCredential(ctx, client.CreateCredentialParams{
		Origin:                  "https://example.com",
		SameOriginWithAncestors: true,
		Challenge:               []byte("server-issued-registration-challenge"),
		RP:                      webauthntypes.PublicKeyCredentialRpEntity{ID: "example.com", Name: "Example Corp"},
		User: webauthntypes.PublicKeyCredentialUserEntity{
			ID:          []byte("alice"),
			Name:        "alice",
			DisplayName: "Alice",
		},
		AuthenticatorSelection: webauthntypes.AuthenticatorSelectionCriteria{
			ResidentKey: webauthntypes.ResidentKeyRequirementRequired,
		},
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("registered credential %s\n", base64.RawURLEncoding.EncodeToString(created.CredentialID))

	asserted, err := c.AssertCredential(ctx, client.AssertCredentialParams{
		Origin:                  "https://example.com",
		SameOriginWithAncestors: true,
		Challenge:               []byte("server-issued-assertion-challenge"),
		RPID:                    "example.com",
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("asserted credential %s, signature %d bytes\n", asserted.ID, len(asserted.Signature))
}
