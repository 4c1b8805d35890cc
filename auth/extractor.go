package auth

import (
	"net/http"
	"net/url"
	"strings"
)

// Handshake carries the three transport locations a credential may
// arrive in: the initial connect frame payload, the upgrade request
// headers, and the upgrade URI query string.
type Handshake struct {
	Payload map[string]string
	Header  http.Header
	Query   url.Values
}

// CredentialExtractor tries a single transport location. It returns
// the credential and true on a hit.
type CredentialExtractor interface {
	Extract(h Handshake) (string, bool)
}

// PayloadExtractor reads the explicit token field of the handshake payload.
type PayloadExtractor struct{}

func (PayloadExtractor) Extract(h Handshake) (string, bool) {
	token, ok := h.Payload["token"]
	return token, ok && token != ""
}

// BearerExtractor reads a bearer value from the Authorization header.
type BearerExtractor struct{}

func (BearerExtractor) Extract(h Handshake) (string, bool) {
	header := h.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	return token, token != ""
}

// QueryExtractor reads the token query parameter of the connection URI.
type QueryExtractor struct{}

func (QueryExtractor) Extract(h Handshake) (string, bool) {
	token := h.Query.Get("token")
	return token, token != ""
}

// DefaultExtractors is the precedence order of the handshake:
// explicit payload field first, then bearer header, then query
// parameter. First match wins.
func DefaultExtractors() []CredentialExtractor {
	return []CredentialExtractor{PayloadExtractor{}, BearerExtractor{}, QueryExtractor{}}
}

// ExtractCredential runs the extractor chain in order.
func ExtractCredential(extractors []CredentialExtractor, h Handshake) (string, bool) {
	for _, e := range extractors {
		if token, ok := e.Extract(h); ok {
			return token, true
		}
	}
	return "", false
}
