package proxy

import (
	"net/http"

	"github.com/raikyou/uniapi/pkg/security/auth"
)

// hopByHopHeaders are stripped from both the outbound request and are never
// forwarded from the upstream response, per RFC 7230 §6.1.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// credentialHeaders are the inbound caller-credential headers that must
// never reach the upstream verbatim; buildOutboundHeader replaces them with
// the provider's own credential in the same scheme the caller used.
var credentialHeaders = []string{"Authorization", "X-API-Key", "x-goog-api-key"}

// buildOutboundHeader copies src, scrubbing hop-by-hop and credential
// headers, then injects the upstream credential using callerScheme (the
// scheme the inbound caller authenticated with). If the caller used no
// recognized scheme, the default is Authorization: Bearer <key>.
func buildOutboundHeader(src http.Header, callerScheme auth.Scheme, upstreamKey string) http.Header {
	out := make(http.Header, len(src))
	for k, v := range src {
		out[k] = append([]string(nil), v...)
	}

	for _, h := range hopByHopHeaders {
		out.Del(h)
	}
	for _, h := range credentialHeaders {
		out.Del(h)
	}
	out.Del("Host")
	out.Del("Content-Length")

	switch callerScheme {
	case auth.SchemeAPIKey:
		out.Set("X-API-Key", upstreamKey)
	case auth.SchemeGoogAPIKey:
		out.Set("x-goog-api-key", upstreamKey)
	default:
		out.Set("Authorization", "Bearer "+upstreamKey)
	}

	return out
}

// scrubResponseHeader strips hop-by-hop headers from an upstream response
// before forwarding it to the caller. Content-Length and Transfer-Encoding
// are deliberately left to the local HTTP server to re-emit based on how the
// response is actually sent.
func scrubResponseHeader(dst http.Header, src http.Header) {
	for k, v := range src {
		dst[k] = append([]string(nil), v...)
	}
	for _, h := range hopByHopHeaders {
		dst.Del(h)
	}
	dst.Del("Content-Length")
}
