// Package client implements the WebAuthn client-side algorithms: origin
// and RP-ID validation, client-data assembly, algorithm negotiation, and
// dispatch to the authenticator layer.
package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-ctap/fido2vault/pkg/authenticator"
	"github.com/go-ctap/fido2vault/pkg/collab"
	"github.com/go-ctap/fido2vault/pkg/fidocrypto"
	"github.com/go-ctap/fido2vault/pkg/options"
	"github.com/go-ctap/fido2vault/pkg/rpid"
	"github.com/go-ctap/fido2vault/pkg/webauthnerr"
	"github.com/go-ctap/fido2vault/pkg/webauthntypes"
)

// defaultPubKeyCredParams is substituted when the caller provides no
// pubKeyCredParams at all. The result is then filtered to the algorithms
// this authenticator actually supports; a caller list that filters down to
// nothing is rejected, not replaced by these defaults.
var defaultPubKeyCredParams = []webauthntypes.PublicKeyCredentialParameters{
	{Type: webauthntypes.PublicKeyCredentialTypePublicKey, Algorithm: webauthntypes.AlgorithmES256},
	{Type: webauthntypes.PublicKeyCredentialTypePublicKey, Algorithm: -257},
}

// Client wires the guard clauses and client-data assembly to an
// Authenticator and the surrounding app's State/Environment collaborators.
type Client struct {
	logger *slog.Logger
	auth   *authenticator.Authenticator
	state  collab.State
	env    collab.Environment
	crypto collab.Crypto
}

// New constructs a Client bound to auth, state and env.
func New(auth *authenticator.Authenticator, state collab.State, env collab.Environment, opts ...options.Option) *Client {
	oo := options.NewOptions(opts...)
	return &Client{logger: oo.Logger, auth: auth, state: state, env: env}
}

// WithCrypto returns a copy of c that hashes clientDataJSON through crypto
// instead of this module's own fidocrypto.SHA256, for callers that want
// hashing routed through their own crypto engine.
func (c *Client) WithCrypto(crypto collab.Crypto) *Client {
	cp := *c
	cp.crypto = crypto
	return &cp
}

func (c *Client) sha256(b []byte) []byte {
	if c.crypto != nil {
		return c.crypto.SHA256(b)
	}
	return fidocrypto.SHA256(b)
}

// CreateCredentialParams mirrors navigator.credentials.create()'s
// publicKey options, as consumed by this client.
type CreateCredentialParams struct {
	Origin                  string
	SameOriginWithAncestors bool
	Challenge               []byte
	RP                      webauthntypes.PublicKeyCredentialRpEntity
	User                    webauthntypes.PublicKeyCredentialUserEntity
	PubKeyCredParams        []webauthntypes.PublicKeyCredentialParameters
	AuthenticatorSelection  webauthntypes.AuthenticatorSelectionCriteria
	ExcludeCredentials      []webauthntypes.PublicKeyCredentialDescriptor
}

// CreateCredentialResult is the registration output returned to the
// caller.
type CreateCredentialResult struct {
	CredentialID       []byte
	AttestationObject  []byte
	AuthData           []byte
	ClientDataJSON     []byte
	PublicKey          []byte
	PublicKeyAlgorithm int
	Transports         []webauthntypes.AuthenticatorTransport
}

// CreateCredential validates params, assembles client data, and dispatches
// to the authenticator layer's MakeCredential.
func (c *Client) CreateCredential(ctx context.Context, params CreateCredentialParams) (*CreateCredentialResult, error) {
	if err := c.commonGuards(ctx, params.Origin); err != nil {
		return nil, err
	}

	if !params.SameOriginWithAncestors {
		return nil, webauthnerr.NotAllowed("credential creation is not allowed from a cross-origin iframe")
	}
	if l := len(params.User.ID); l < 1 || l > 64 {
		return nil, webauthnerr.TypeErr(fmt.Sprintf("user.id must be 1..64 bytes, got %d", l))
	}
	if err := originAndRPIDGuards(params.Origin, params.RP.ID); err != nil {
		return nil, err
	}

	filtered := webauthntypes.FilterES256(withDefaults(params.PubKeyCredParams))
	if len(filtered) == 0 {
		return nil, webauthnerr.NotSupported("no acceptable public key algorithm in pubKeyCredParams")
	}

	requireResidentKey := residentKeyPolicy(params.AuthenticatorSelection)
	requireUserVerification := userVerificationPolicy(params.AuthenticatorSelection.UserVerification)

	clientDataJSON, clientDataHash, err := c.buildClientData(
		webauthntypes.ClientDataTypeCreate, params.Challenge, params.Origin, params.SameOriginWithAncestors,
	)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	result, err := c.auth.MakeCredential(ctx, authenticator.MakeCredentialParams{
		Hash:                            clientDataHash,
		RP:                              params.RP,
		User:                            params.User,
		CredTypesAndPubKeyAlgs:          filtered,
		RequireResidentKey:              requireResidentKey,
		RequireUserVerification:         requireUserVerification,
		ExcludeCredentialDescriptorList: params.ExcludeCredentials,
	})
	if err != nil {
		return nil, remapAuthenticatorError(err)
	}

	c.logger.Debug("credential registered", "rpId", params.RP.ID, "origin", params.Origin)

	return &CreateCredentialResult{
		CredentialID:       result.CredentialID,
		AttestationObject:  result.AttestationObject,
		AuthData:           result.AuthData,
		ClientDataJSON:     clientDataJSON,
		PublicKey:          result.PublicKey,
		PublicKeyAlgorithm: result.PublicKeyAlgorithm,
		Transports:         transportsFor(params.RP.ID),
	}, nil
}

// AssertCredentialParams mirrors navigator.credentials.get()'s publicKey
// options, as consumed by this client.
type AssertCredentialParams struct {
	Origin                  string
	SameOriginWithAncestors bool
	Challenge               []byte
	RPID                    string
	AllowCredentials        []webauthntypes.PublicKeyCredentialDescriptor
	UserVerification        webauthntypes.UserVerificationRequirement
}

// AssertCredentialResult is the assertion output returned to the caller.
type AssertCredentialResult struct {
	AuthenticatorData []byte
	ClientDataJSON    []byte
	ID                string // base64url(rawId)
	RawID             []byte
	Signature         []byte
	UserHandle        string
}

// AssertCredential validates params, assembles client data, and
// dispatches to the authenticator layer's GetAssertion.
func (c *Client) AssertCredential(ctx context.Context, params AssertCredentialParams) (*AssertCredentialResult, error) {
	if err := c.commonGuards(ctx, params.Origin); err != nil {
		return nil, err
	}
	if err := originAndRPIDGuards(params.Origin, params.RPID); err != nil {
		return nil, err
	}

	requireUserVerification := userVerificationPolicy(params.UserVerification)

	clientDataJSON, clientDataHash, err := c.buildClientData(
		webauthntypes.ClientDataTypeGet, params.Challenge, params.Origin, params.SameOriginWithAncestors,
	)
	if err != nil {
		return nil, webauthnerr.Unknown(err)
	}

	result, err := c.auth.GetAssertion(ctx, authenticator.GetAssertionParams{
		RPID:                          params.RPID,
		Hash:                          clientDataHash,
		AllowCredentialDescriptorList: params.AllowCredentials,
		RequireUserPresence:           true,
		RequireUserVerification:       requireUserVerification,
	})
	if err != nil {
		return nil, remapAuthenticatorError(err)
	}

	c.logger.Debug("credential asserted", "rpId", params.RPID, "origin", params.Origin)

	return &AssertCredentialResult{
		AuthenticatorData: result.AuthenticatorData,
		ClientDataJSON:    clientDataJSON,
		ID:                base64.RawURLEncoding.EncodeToString(result.SelectedCredential.ID),
		RawID:             result.SelectedCredential.ID,
		Signature:         result.Signature,
		UserHandle:        result.SelectedCredential.UserHandle,
	}, nil
}

// commonGuards runs the three checks shared by both ceremonies, in order:
// blocklist, authentication state, self-registration.
func (c *Client) commonGuards(ctx context.Context, origin string) error {
	host, err := hostOf(origin)
	if err == nil {
		blocked, err := c.state.AutofillBlocklistedHosts(ctx)
		if err != nil {
			return webauthnerr.Unknown(err)
		}
		if _, found := blocked[host]; found {
			c.logger.Warn("credential ceremony denied: origin blocklisted", "host", host)
			return webauthnerr.UriBlocked(fmt.Sprintf("%s is on the autofill blocklist", host))
		}
	}

	authenticated, err := c.state.IsAuthenticated(ctx)
	if err != nil {
		return webauthnerr.Unknown(err)
	}
	if !authenticated {
		return webauthnerr.InvalidState("no authenticated user")
	}

	if origin == c.env.WebVaultURL(ctx) {
		return webauthnerr.NotAllowed("refusing to save a credential for the web vault itself")
	}

	return nil
}

// originAndRPIDGuards checks the HTTPS-origin and RP-ID rules shared by
// both ceremonies (guards 5 and 6).
func originAndRPIDGuards(origin, rpID string) error {
	if !strings.HasPrefix(origin, "https://") {
		return webauthnerr.Security("origin must be https")
	}
	if !rpid.IsValid(rpID, origin) {
		return webauthnerr.Security(fmt.Sprintf("rpId %q is not a valid suffix of the caller's origin", rpID))
	}
	return nil
}

func hostOf(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}

func withDefaults(params []webauthntypes.PublicKeyCredentialParameters) []webauthntypes.PublicKeyCredentialParameters {
	if len(params) == 0 {
		return defaultPubKeyCredParams
	}
	return params
}

func residentKeyPolicy(sel webauthntypes.AuthenticatorSelectionCriteria) bool {
	switch sel.ResidentKey {
	case webauthntypes.ResidentKeyRequirementRequired, webauthntypes.ResidentKeyRequirementPreferred:
		return true
	case webauthntypes.ResidentKeyRequirementDiscouraged:
		return false
	default:
		return sel.RequireResidentKey
	}
}

func userVerificationPolicy(uv webauthntypes.UserVerificationRequirement) bool {
	switch uv {
	case webauthntypes.UserVerificationRequirementDiscouraged:
		return false
	default:
		// Required, Preferred, and the unset zero value all require UV.
		return true
	}
}

// buildClientData assembles CollectedClientData and returns its JSON
// serialisation alongside its hash (via c.crypto if set, else this
// module's own fidocrypto.SHA256). encoding/json.Marshal always
// serializes struct fields in declaration order, which is what gives
// clientDataJSON its spec-mandated field order (type, challenge, origin,
// crossOrigin).
func (c *Client) buildClientData(typ webauthntypes.ClientDataType, challenge []byte, origin string, sameOriginWithAncestors bool) (clientDataJSON []byte, clientDataHash []byte, err error) {
	data := webauthntypes.CollectedClientData{
		Type:        typ,
		Challenge:   base64.RawURLEncoding.EncodeToString(challenge),
		Origin:      origin,
		CrossOrigin: !sameOriginWithAncestors,
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, nil, err
	}

	return b, c.sha256(b), nil
}

// transportsFor implements the Google transports workaround: registering
// for google.com reports both internal and usb transports so legacy
// Google relying-party code that rejects internal-only credentials still
// accepts this one.
func transportsFor(rpID string) []webauthntypes.AuthenticatorTransport {
	if rpID == "google.com" {
		return []webauthntypes.AuthenticatorTransport{
			webauthntypes.AuthenticatorTransportInternal,
			webauthntypes.AuthenticatorTransportUSB,
		}
	}
	return []webauthntypes.AuthenticatorTransport{webauthntypes.AuthenticatorTransportInternal}
}

// remapAuthenticatorError implements the client/authenticator boundary's
// error-propagation rule: InvalidState is re-raised verbatim, and every
// other authenticator error (NotAllowed, NotSupported, Unknown alike) is
// mapped to Unknown.
func remapAuthenticatorError(err error) error {
	if webauthnerr.Is(err, webauthnerr.KindInvalidState) {
		return err
	}
	return webauthnerr.Unknown(err)
}
