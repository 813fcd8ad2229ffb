package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"companion-saas/backend/pkg/auth"
	"companion-saas/backend/pkg/errors"
	"companion-saas/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// TokenVerifier resolves an identity from a session token
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// IdentityOptions configures IdentityMiddleware
type IdentityOptions struct {
	// SessionCookie names the cookie holding the session token for browser requests
	SessionCookie string
	// AllowedOrigins may send cookie-authenticated writes besides the
	// server's own origin. "*" does not apply to cookies.
	AllowedOrigins []string
}

// IdentityMiddleware resolves the caller from the Authorization bearer token
// or, for browser form posts, from the session cookie. Requests without a
// token continue as anonymous; requests with an invalid token are rejected.
// Cookie-authenticated writes must come from the server's origin or an
// allowed one.
func IdentityMiddleware(verifier TokenVerifier, opts IdentityOptions) gin.HandlerFunc {
	trusted := make(map[string]bool, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		if o != "*" {
			trusted[strings.TrimSuffix(o, "/")] = true
		}
	}

	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		fromCookie := false
		if token == "" && opts.SessionCookie != "" {
			if cookie, err := c.Cookie(opts.SessionCookie); err == nil && cookie != "" {
				token = cookie
				fromCookie = true
			}
		}

		if token == "" {
			c.Next()
			return
		}

		if fromCookie && !safeMethod(c.Request.Method) && !sameOrigin(c.Request, trusted) {
			logger.FromContext(c).Warn("Cross-site cookie request rejected",
				"origin", c.GetHeader("Origin"),
				"referer", c.GetHeader("Referer"),
			)
			c.Error(errors.NewForbiddenError("CSRF_REJECTED", "Cookie-authenticated requests must come from a trusted origin"))
			c.Abort()
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			logger.FromContext(c).Warn("Invalid session token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", "Invalid or expired session token").Wrap(err))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), identity))
		c.Set("userId", identity.UserID)
		c.Next()
	}
}

// RequireIdentity rejects anonymous callers. details, when set, is returned
// in the error envelope.
func RequireIdentity(details any) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth.FromContext(c.Request.Context()).IsAnonymous() {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required").WithDetails(details))
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// sameOrigin checks Origin, or Referer when Origin is absent, against the
// request host and the trusted origins. Requests carrying neither fail.
func sameOrigin(r *http.Request, trusted map[string]bool) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		ref, err := url.Parse(r.Header.Get("Referer"))
		if err != nil || ref.Host == "" {
			return false
		}
		origin = ref.Scheme + "://" + ref.Host
	}

	if trusted[origin] {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host != "" && strings.EqualFold(u.Host, r.Host)
}
