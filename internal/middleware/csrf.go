// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

const (
	// csrfTokenLength is the byte length of CSRF tokens (32 bytes = 64 hex chars).
	csrfTokenLength = 32

	// CSRFCookieName is the cookie that holds the CSRF token.
	CSRFCookieName = "tdp_csrf"

	// CSRFHeaderName is the header API clients send the CSRF token in.
	CSRFHeaderName = "X-CSRF-Token"

	// CSRFFormField is the hidden form field name for plain form posts.
	CSRFFormField = "csrf_token"
)

type csrfCtxKey struct{}

// NewCSRF returns double-submit cookie CSRF protection. It generates a
// token stored in a cookie and validates that subsequent state-changing
// requests (POST, PUT, PATCH, DELETE) include the same token as a header
// or form field. The secure flag controls the cookie's Secure attribute
// and should be true behind TLS.
//
// The admin frontend reads the cookie and echoes the token in the
// request header on every state-changing call.
func NewCSRF(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Ensure a CSRF token cookie exists.
			cookie, err := r.Cookie(CSRFCookieName)
			if err != nil || cookie.Value == "" {
				token, err := generateCSRFToken()
				if err != nil {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     CSRFCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: false, // the frontend reads this to build the header
					Secure:   secure,
					SameSite: http.SameSiteStrictMode,
				})
				cookie = &http.Cookie{Value: token}
			}

			r = r.WithContext(context.WithValue(r.Context(), csrfCtxKey{}, cookie.Value))

			// Safe methods don't need CSRF validation.
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			// For state-changing methods, validate the token.
			// Check header first, then form field.
			submitted := r.Header.Get(CSRFHeaderName)
			if submitted == "" {
				submitted = r.FormValue(CSRFFormField)
			}

			if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(submitted)) != 1 {
				http.Error(w, "CSRF token mismatch", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CSRFTokenFromCtx returns the CSRF token stored by the middleware, or
// an empty string when the middleware did not run.
func CSRFTokenFromCtx(ctx context.Context) string {
	token, _ := ctx.Value(csrfCtxKey{}).(string)
	return token
}

// generateCSRFToken creates a cryptographically random token.
func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
