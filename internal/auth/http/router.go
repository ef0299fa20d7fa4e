package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/starterkit/internal/auth/service"
	"github.com/aussiebroadwan/starterkit/pkg/httpx"
	"github.com/aussiebroadwan/starterkit/pkg/jwtx"
	"github.com/aussiebroadwan/starterkit/pkg/slogx"

	_ "github.com/aussiebroadwan/starterkit/internal/auth/http/docs" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RateLimits are the three tiers routes are assigned to.
type RateLimits struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Lenient  httpx.RateLimitConfig
}

// DefaultRateLimits returns the httpx tiers, which honour RATELIMIT_* env
// overrides.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   httpx.StrictLimit,
		Moderate: httpx.ModerateLimit,
		Lenient:  httpx.LenientLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       RateLimits
	auth         *httpx.Authenticator

	db               Pinger
	Challenges       Pinger // Optional: set when challenges live in Redis
	UserService      *service.UserService
	SessionService   *service.SessionService
	TwoFactorService *service.TwoFactorService
	AvatarService    *service.AvatarService

	// Uploads serves locally stored avatars under UploadsPath. Nil when
	// avatars live in an object store with its own public URL.
	Uploads     http.Handler
	UploadsPath string
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	db Pinger,
	logger *slog.Logger,
	limits RateLimits,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		db:           db,
		logger:       logger,
		limits:       limits,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.auth = &httpx.Authenticator{Verifier: r.verifier, Sessions: r.SessionService}

	r.registerAuth()
	r.registerAccount()
	r.registerTwoFactor()
	r.registerSessions()
	r.registerSystem()

	if r.Uploads != nil {
		r.Mux.Handle("GET "+r.UploadsPath+"/", r.Uploads)
	}
	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Starterkit Authentication Service API
//	@version		0.1.0
//	@description	Email and password accounts with optional TOTP two-factor authentication, backup codes,
//	@description	trusted devices, session management and profile images.
//	@description
//	@description				Access tokens are EdDSA-signed JWTs bound to a server-side session; revoking the
//	@description				session invalidates the token immediately.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/starterkit
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// secured chains the bearer middleware and a per-user limit in front of h.
func (r *Router) secured(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		r.auth.Require(),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		UserService:    r.UserService,
		SessionService: r.SessionService,
	}

	// Public credential endpoints - strict rate limit by IP
	r.Mux.Handle("POST /v1/auth/sign-up",
		httpx.Chain(http.HandlerFunc(h.HandleSignUp),
			httpx.RateLimitByIP(r.limits.Strict),
		),
	)
	r.Mux.Handle("POST /v1/auth/sign-in",
		httpx.Chain(http.HandlerFunc(h.HandleSignIn),
			httpx.RateLimitByIP(r.limits.Strict),
		),
	)

	r.Mux.Handle("POST /v1/auth/sign-out", r.secured(h.HandleSignOut, r.limits.Moderate))
}

func (r *Router) registerAccount() {
	h := &AccountHandler{UserService: r.UserService}
	r.Mux.Handle("GET /v1/account", r.secured(h.HandleGet, r.limits.Lenient))
	r.Mux.Handle("DELETE /v1/account", r.secured(h.HandleDelete, r.limits.Strict))

	a := &AvatarHandler{AvatarService: r.AvatarService}
	r.Mux.Handle("POST /v1/upload/avatar", r.secured(a.HandleUpload, r.limits.Moderate))
	r.Mux.Handle("DELETE /v1/upload/avatar", r.secured(a.HandleDelete, r.limits.Moderate))
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{TwoFactorService: r.TwoFactorService}

	// Password re-verification - strict rate limit by user
	r.Mux.Handle("POST /v1/two-factor/enable", r.secured(h.HandleEnable, r.limits.Strict))
	r.Mux.Handle("POST /v1/two-factor/disable", r.secured(h.HandleDisable, r.limits.Strict))
	r.Mux.Handle("POST /v1/two-factor/generate-backup-codes", r.secured(h.HandleRegenerate, r.limits.Strict))

	// Code verification serves both a pending sign-in (challenge token, no
	// bearer) and a signed-in user. Limited per user when known, else per IP.
	for path, fn := range map[string]http.HandlerFunc{
		"POST /v1/two-factor/verify-totp":        h.HandleVerifyTOTP,
		"POST /v1/two-factor/verify-backup-code": h.HandleVerifyBackupCode,
	} {
		r.Mux.Handle(path,
			httpx.Chain(fn,
				r.auth.Optional(),
				httpx.RateLimitByUser(r.limits.Strict),
			),
		)
	}

	// The recovery-code panel speaks the envelope format, including its 401.
	r.Mux.Handle("GET /v1/two-factor/recovery-codes",
		httpx.Chain(http.HandlerFunc(h.HandleRecoveryCodes),
			r.auth.RequireEnvelope(),
			httpx.RateLimitByUser(r.limits.Moderate),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{SessionService: r.SessionService}
	r.Mux.Handle("GET /v1/sessions", r.secured(h.HandleList, r.limits.Lenient))
	r.Mux.Handle("DELETE /v1/sessions/{id}", r.secured(h.HandleRevoke, r.limits.Moderate))
	r.Mux.Handle("POST /v1/sessions/revoke-others", r.secured(h.HandleRevokeOthers, r.limits.Moderate))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.db, r.keys, r.Challenges),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
}
