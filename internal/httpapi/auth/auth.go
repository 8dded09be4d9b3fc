// v0
// internal/httpapi/auth/auth.go
package auth

import (
	"context"
	"net/http"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
)

// APIKeyAuth gates requests behind a static set of API keys sent via
// the X-API-Key header — grounded on
// Flamware-CapIot.influxDB/utils.CombinedAuthMiddleware's header-driven
// gate, checked against a configured in-memory set rather than a
// remote call, since the engine has no identity service to call.
func APIKeyAuth(keys []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(keys))
	for _, k := range keys {
		allowed[k] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("X-API-Key")
			if key == "" || !allowed[key] {
				http.Error(w, "missing or invalid API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// JWTAuth gates dashboard/administrative routes behind a bearer JWT,
// verified with github.com/auth0/go-jwt-middleware/v2 against an HMAC
// secret — the real dependency declared in Flamware-CapIot.influxDB's
// go.mod. An empty secret disables auth entirely, for local/dev use.
func JWTAuth(hmacSecret string) (func(http.Handler) http.Handler, error) {
	if hmacSecret == "" {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	keyFunc := func(ctx context.Context) (interface{}, error) {
		return []byte(hmacSecret), nil
	}

	jwtValidator, err := validator.New(
		keyFunc,
		validator.HS256,
		"stve",
		[]string{"stve-dashboard"},
	)
	if err != nil {
		return nil, err
	}

	mw := jwtmiddleware.New(jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(jwtmiddleware.ErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, "invalid or missing bearer token", http.StatusUnauthorized)
		})),
	)

	return mw.CheckJWT, nil
}

// ClaimsFromContext retrieves the validated JWT claims a handler may
// want to inspect.
func ClaimsFromContext(ctx context.Context) (*validator.ValidatedClaims, bool) {
	claims, ok := ctx.Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
	return claims, ok
}
