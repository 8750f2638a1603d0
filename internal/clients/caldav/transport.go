package caldav

import (
	"encoding/base64"
	"net/http"

	"github.com/tazhate/tasksync/internal/domain"
)

// authTransport stamps the client id and Authorization header on every
// request of a session.
type authTransport struct {
	clientID      string
	authorization string
	base          http.RoundTripper
}

func newAuthTransport(cfg *domain.ProviderConfig, clientID string, base http.RoundTripper) *authTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &authTransport{
		clientID:      clientID,
		authorization: authorizationHeader(cfg),
		base:          base,
	}
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	r := req.Clone(req.Context())
	if t.clientID != "" {
		r.Header.Set("X-Requested-With", t.clientID)
	}
	r.Header.Set("Authorization", t.authorization)
	return t.base.RoundTrip(r)
}

func authorizationHeader(cfg *domain.ProviderConfig) string {
	if cfg.AuthType == domain.AuthBearer {
		return "Bearer " + cfg.BearerToken
	}
	creds := cfg.Username + ":" + cfg.Password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}
