// Package auth implements the Authenticator (Component E): a single local
// credential check accepting an X-API-Key header, an x-goog-api-key header,
// or an Authorization Bearer token, reporting which scheme the caller used so the Proxy Engine
// can substitute the matching upstream credential scheme.
package auth

import (
	"net/http"
	"strings"
)

// Scheme identifies which header shape a caller's credential arrived in.
type Scheme int

const (
	// SchemeNone is returned when no recognized credential header was
	// present at all.
	SchemeNone Scheme = iota
	SchemeBearer
	SchemeAPIKey
	SchemeGoogAPIKey
)

const bearerPrefix = "Bearer "

// Authenticator checks inbound requests against a single configured local
// credential. The credential itself is never forwarded upstream.
type Authenticator struct {
	credential string
}

// New returns an Authenticator that accepts only credential.
func New(credential string) *Authenticator {
	return &Authenticator{credential: credential}
}

// Authenticate inspects r for a recognized credential header and reports
// whether it matches the configured credential, along with which scheme was
// used (needed later to pick the upstream substitution scheme).
func (a *Authenticator) Authenticate(r *http.Request) (authorized bool, scheme Scheme) {
	if v := r.Header.Get("Authorization"); strings.HasPrefix(v, bearerPrefix) {
		token := strings.TrimPrefix(v, bearerPrefix)
		return token == a.credential, SchemeBearer
	}
	if v := r.Header.Get("X-API-Key"); v != "" {
		return v == a.credential, SchemeAPIKey
	}
	if v := r.Header.Get("x-goog-api-key"); v != "" {
		return v == a.credential, SchemeGoogAPIKey
	}
	return false, SchemeNone
}
