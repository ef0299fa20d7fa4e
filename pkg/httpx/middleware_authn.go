package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/starterkit/pkg/jwtx"
	"github.com/aussiebroadwan/starterkit/pkg/slogx"
)

// ErrNoCredentials is returned by Authenticate when no bearer token is sent.
var ErrNoCredentials = errors.New("httpx: missing bearer token")

// SessionValidator confirms the session a token is bound to is still live.
type SessionValidator interface {
	ValidateSession(ctx context.Context, userID, sessionID string) error
}

// Authenticator verifies bearer tokens and their sessions.
type Authenticator struct {
	Verifier jwtx.Verifier
	Sessions SessionValidator
}

// Authenticate returns the claims of a valid bearer token on r.
func (a *Authenticator) Authenticate(r *http.Request) (jwtx.Claims, error) {
	raw, ok := BearerToken(r)
	if !ok {
		return jwtx.Claims{}, ErrNoCredentials
	}

	claims, err := a.Verifier.Verify(raw)
	if err != nil {
		return jwtx.Claims{}, err
	}

	if a.Sessions != nil {
		if err := a.Sessions.ValidateSession(r.Context(), claims.Subject, claims.SID); err != nil {
			return jwtx.Claims{}, err
		}
	}
	return claims, nil
}

// Require rejects requests without a valid token using an RFC 6750 challenge.
func (a *Authenticator) Require() Middleware {
	return a.middleware(false, func(w http.ResponseWriter, err error) {
		desc := "token verification failed"
		if errors.Is(err, ErrNoCredentials) {
			desc = "missing bearer token"
		}
		writeBearerError(w, desc)
	})
}

// RequireEnvelope rejects unauthenticated requests with the 401 envelope.
func (a *Authenticator) RequireEnvelope() Middleware {
	return a.middleware(false, func(w http.ResponseWriter, _ error) {
		WriteEnvelopeUnauthorized(w)
	})
}

// Optional attaches the identity when a token is present. A token that is
// present but invalid is still rejected.
func (a *Authenticator) Optional() Middleware {
	return a.middleware(true, func(w http.ResponseWriter, _ error) {
		writeBearerError(w, "token verification failed")
	})
}

func (a *Authenticator) middleware(optional bool, reject func(http.ResponseWriter, error)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.Authenticate(r)
			switch {
			case err == nil:
				ctx := contextWithAuth(r.Context(), claims)
				ctx = slogx.With(ctx, "user_id", claims.Subject)
				next.ServeHTTP(w, r.WithContext(ctx))
			case optional && errors.Is(err, ErrNoCredentials):
				next.ServeHTTP(w, r)
			default:
				if !errors.Is(err, ErrNoCredentials) {
					slogx.FromContext(r.Context()).Warn("authentication failed", "err", err)
				}
				reject(w, err)
			}
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if len(authz) < 7 || !strings.EqualFold(authz[:7], "bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(authz[7:])
	return raw, raw != ""
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}
