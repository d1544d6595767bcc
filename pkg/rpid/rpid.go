// Package rpid implements the WebAuthn RP-ID validation rule: an RP ID is
// acceptable for a given caller origin iff it is a registrable suffix of
// that origin's host.
package rpid

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// IsValid reports whether rpID is a registrable suffix of origin's host.
//
// origin must be an HTTPS URL with a DNS host; IP literals and non-HTTPS
// schemes are always rejected. host == rpID matches exactly. A strict
// suffix match additionally requires that rpID not itself be a public
// suffix (e.g. "com"), since that would scope a credential to every site
// under a TLD.
func IsValid(rpID, origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" || net.ParseIP(host) != nil {
		return false
	}

	id := strings.ToLower(rpID)
	if id == "" {
		return false
	}

	if host == id {
		return true
	}

	if !strings.HasSuffix(host, "."+id) {
		return false
	}

	// rpId must itself be registrable, not a bare public suffix (e.g.
	// "com", "co.uk"); otherwise it would scope the credential to every
	// site under that suffix.
	suffix, _ := publicsuffix.PublicSuffix(id)
	return suffix != id
}
