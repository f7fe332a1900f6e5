package transport

import "net/http"

// Authenticator applies credentials to an outgoing request.
type Authenticator interface {
	Apply(req *http.Request)
}

// NoAuth performs no authentication.
type NoAuth struct{}

// Apply implements Authenticator.
func (NoAuth) Apply(_ *http.Request) {}

// TokenAuth sends a bearer token, the scheme metadata services expect for
// service accounts.
type TokenAuth struct {
	Token string
}

// Apply implements Authenticator.
func (a TokenAuth) Apply(req *http.Request) {
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}
}
