package middleware

import "net/http"

// MaxBodyBytes caps request bodies. Moderation payloads are small JSON
// documents; anything bigger is abuse.
const MaxBodyBytes = 64 * 1024

// LimitBodyMiddleware caps the size of request bodies
func LimitBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
