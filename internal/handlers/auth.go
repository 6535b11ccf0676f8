// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/poer2023/tdp/internal/middleware"
	"github.com/poer2023/tdp/internal/session"
	"github.com/poer2023/tdp/internal/store"
)

// totpIssuer is the issuer label shown in authenticator apps.
const totpIssuer = "tdp"

// Auth groups all authentication-related HTTP handlers.
type Auth struct {
	sessions  *session.Store
	userStore *store.UserStore
}

// NewAuth creates a new Auth handler group.
func NewAuth(sessions *session.Store, userStore *store.UserStore) *Auth {
	return &Auth{
		sessions:  sessions,
		userStore: userStore,
	}
}

// Login validates credentials and opens a session. The session starts
// with TwoFADone false; the client must complete 2FA before reaching
// protected endpoints.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	user, err := a.userStore.FindByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Error("login lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if user == nil || !a.userStore.CheckPassword(user, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	_, err = a.sessions.Create(r.Context(), w, &session.Data{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		TwoFADone:   false,
	})
	if err != nil {
		slog.Error("session create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"needs_2fa_setup": user.Needs2FASetup(),
	})
}

// TwoFASetup generates a fresh TOTP secret for the logged-in user and
// returns it with a QR code PNG. Calling it again before verification
// rotates the secret.
func (a *Auth) TwoFASetup(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: sess.Email,
	})
	if err != nil {
		slog.Error("totp generate failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := a.userStore.SetTOTPSecret(r.Context(), sess.UserID, key.Secret()); err != nil {
		slog.Error("save totp secret failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	qrPNG, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		slog.Error("qr code generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"secret":      key.Secret(),
		"otpauth_url": key.URL(),
		"qr_png":      base64.StdEncoding.EncodeToString(qrPNG),
	})
}

// TwoFAVerify validates a TOTP code and completes authentication for
// this session. On first-time setup it also enables TOTP on the account.
func (a *Auth) TwoFAVerify(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	user, err := a.userStore.FindByID(r.Context(), sess.UserID)
	if err != nil || user == nil {
		slog.Error("user lookup for 2fa failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if user.TOTPSecret == nil {
		writeError(w, http.StatusConflict, "two-factor setup has not been started")
		return
	}

	if !totp.Validate(req.Code, *user.TOTPSecret) {
		writeError(w, http.StatusUnauthorized, "invalid code")
		return
	}

	if !user.TOTPEnabled {
		if err := a.userStore.EnableTOTP(r.Context(), user.ID); err != nil {
			slog.Error("enable totp failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	sess.TwoFADone = true
	if err := a.sessions.Update(r.Context(), r, sess); err != nil {
		slog.Error("session update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me returns the authenticated user's session info.
func (a *Auth) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":      sess.UserID,
		"email":        sess.Email,
		"display_name": sess.DisplayName,
		"role":         sess.Role,
		"two_fa_done":  sess.TwoFADone,
	})
}

// Logout destroys the session.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("session destroy failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
