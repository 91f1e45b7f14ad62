package middleware

import (
	"context"
	"net/http"
	"strings"
)

// PrincipalHeader carries the authenticated portal user ID. The portal's
// session layer authenticates users and sets this header before proxying to
// the moderation service; an empty value means an unauthenticated request.
const PrincipalHeader = "X-Vine-User"

type principalKey struct{}

// PrincipalMiddleware extracts the authenticated user ID from the request
// header and stores it in the request context.
func PrincipalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := strings.TrimSpace(r.Header.Get(PrincipalHeader))
		if principal != "" {
			r = r.WithContext(context.WithValue(r.Context(), principalKey{}, principal))
		}
		next.ServeHTTP(w, r)
	})
}

// Principal returns the authenticated user ID from the context, or "" when
// the request is unauthenticated.
func Principal(ctx context.Context) string {
	principal, _ := ctx.Value(principalKey{}).(string)
	return principal
}
