package api

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/hotelauth/internal/client/authstate"
	"github.com/dmitrijs2005/hotelauth/internal/common"
)

// authEndpoints answer 401 for a failed login attempt. Such a 401 says
// nothing about the current session.
var authEndpoints = []string{
	"/auth/login",
	"/auth/register",
	"/auth/refresh",
	"/auth/passkey/register/start",
	"/auth/passkey/register/finish",
	"/auth/passkey/login/start",
	"/auth/passkey/login/finish",
}

// IsAuthEndpoint reports whether path is one of the authentication
// endpoints, under any API base path.
func IsAuthEndpoint(path string) bool {
	path = strings.TrimRight(path, "/")
	for _, e := range authEndpoints {
		if path == e || strings.HasSuffix(path, e) {
			return true
		}
	}
	return false
}

// Interceptor attaches the bearer token to outgoing requests and ends the
// session when a protected endpoint answers 401. Responses are returned
// untouched; bodies are never read.
type Interceptor struct {
	next  http.RoundTripper
	state *authstate.Store
}

// NewInterceptor wraps next, or http.DefaultTransport when next is nil.
func NewInterceptor(next http.RoundTripper, state *authstate.Store) *Interceptor {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Interceptor{next: next, state: state}
}

func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	if token := i.state.AccessToken(); token != "" && req.Header.Get(common.AuthorizationHeaderName) == "" {
		req = req.Clone(req.Context())
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	resp, err := i.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !IsAuthEndpoint(req.URL.Path) {
		i.state.Clear(req.Context())
	}
	return resp, nil
}
