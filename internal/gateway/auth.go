package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Gurupranav-tech/kalpi-assignment/internal/model"
)

// ErrUnauthorized is returned when the request carries no usable credential.
var ErrUnauthorized = errors.New("missing or invalid credentials")

// Authenticator resolves a request to a caller identity. Token issuance and
// verification live outside this service; the gateway only needs the
// resolved subject and tier.
type Authenticator interface {
	Authenticate(r *http.Request) (model.Identity, error)
}

// StaticTokens authenticates bearer tokens against a fixed token → identity
// table, typically loaded from configuration. Suitable for deployments where
// an upstream proxy has already verified the token signature.
type StaticTokens map[string]model.Identity

// Authenticate implements Authenticator.
func (s StaticTokens) Authenticate(r *http.Request) (model.Identity, error) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" {
		return model.Identity{}, ErrUnauthorized
	}
	id, ok := s[token]
	if !ok {
		return model.Identity{}, ErrUnauthorized
	}
	return id, nil
}
