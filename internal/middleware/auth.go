package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ametori/storefront/internal/config"
	"github.com/ametori/storefront/internal/constants"
	inErrors "github.com/ametori/storefront/internal/errors"
	inHttp "github.com/ametori/storefront/internal/http"
	"github.com/ametori/storefront/internal/identity"
	"github.com/ametori/storefront/internal/log"
)

func unauthorized(c zerolog.Context, w http.ResponseWriter, r *http.Request, err error) {
	logger := c.Logger()
	logger.Error().Err(err).Msg(err.Error())
	inHttp.WriteJsonResponse(r.Context(), w, map[string]string{}, map[string]interface{}{
		"status":     "failed",
		"statusCode": http.StatusUnauthorized,
		"message":    err.Error(),
	})
}

func bearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return ""
	}
	return strings.TrimPrefix(strings.TrimPrefix(authorization, "Bearer "), "bearer ")
}

// Auth requires an authenticated user and attaches its identity to the
// request context.
func Auth(cfg config.Application) func(http.Handler) http.Handler {
	return authWithAudience(cfg, constants.AudienceUser)
}

// AdminAuth guards the privileged endpoints: only tokens minted for the
// admin audience pass.
func AdminAuth(cfg config.Application) func(http.Handler) http.Handler {
	return authWithAudience(cfg, constants.AudienceAdmin)
}

func authWithAudience(cfg config.Application, audience string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logCtx := zerolog.Ctx(r.Context()).With().Str(log.KeyTag, "middleware Auth")

			token := bearerToken(r)
			if token == "" {
				unauthorized(logCtx, w, r, inErrors.ErrEmptyAuth)
				return
			}

			jwtToken, err := identity.VerifyToken(r.Context(), token, cfg.SecretKey, audience)
			if err != nil {
				unauthorized(logCtx, w, r, inErrors.ErrTokenInvalid)
				return
			}

			userId, err := identity.UserIDFromToken(jwtToken)
			if err != nil {
				unauthorized(logCtx, w, r, err)
				return
			}

			c := identity.AttachOwnerToContext(r.Context(), identity.User(userId))
			next.ServeHTTP(w, r.WithContext(c))
		})
	}
}

// CartIdentity resolves the cart owner: an authenticated user when a valid
// bearer token is present, otherwise a guest session. A guest without a
// session token gets one minted and echoed back in the response header.
func CartIdentity(cfg config.Application) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logCtx := zerolog.Ctx(r.Context()).With().Str(log.KeyTag, "middleware CartIdentity")

			if token := bearerToken(r); token != "" {
				jwtToken, err := identity.VerifyToken(
					r.Context(),
					token,
					cfg.SecretKey,
					constants.AudienceUser,
				)
				if err != nil {
					unauthorized(logCtx, w, r, inErrors.ErrTokenInvalid)
					return
				}
				userId, err := identity.UserIDFromToken(jwtToken)
				if err != nil {
					unauthorized(logCtx, w, r, err)
					return
				}
				c := identity.AttachOwnerToContext(r.Context(), identity.User(userId))
				next.ServeHTTP(w, r.WithContext(c))
				return
			}

			sessionToken := r.Header.Get(inHttp.HeaderSessionID)
			if sessionToken == "" {
				sessionToken = identity.NewSessionToken()
				w.Header().Set(inHttp.HeaderSessionID, sessionToken)
			}
			c := identity.AttachOwnerToContext(r.Context(), identity.Session(sessionToken))
			next.ServeHTTP(w, r.WithContext(c))
		})
	}
}
