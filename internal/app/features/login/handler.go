// internal/app/features/login/handler.go
package login

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/groupdeal/internal/app/features/shared"
	userstore "github.com/dalemusser/groupdeal/internal/app/store/users"
	"github.com/dalemusser/groupdeal/internal/app/system/auditlog"
	"github.com/dalemusser/groupdeal/internal/app/system/auth"
	"github.com/dalemusser/groupdeal/internal/app/system/ratelimit"
	"github.com/dalemusser/groupdeal/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Users    *userstore.Store
	Sessions *auth.SessionManager
	Audit    *auditlog.Recorder
	Limiter  *ratelimit.Limiter
	Log      *zap.Logger
}

func NewHandler(users *userstore.Store, sessions *auth.SessionManager, audit *auditlog.Recorder, limiter *ratelimit.Limiter, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Sessions: sessions, Audit: audit, Limiter: limiter, Log: logger}
}

type loginRequest struct {
	LoginID  string `json:"login_id"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

// HandleLogin handles POST /login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ClientIP(r)
	if !h.Limiter.Allow(ip) {
		h.Audit.LoginThrottled(r.Context(), r)
		shared.JSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate_limited"})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.BadRequest(w, "invalid JSON body")
		return
	}
	if req.LoginID == "" || req.Password == "" {
		shared.BadRequest(w, "login_id and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.FindByLogin(ctx, req.LoginID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			h.Audit.LoginFailed(ctx, r, "unknown login")
			shared.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_credentials"})
			return
		}
		shared.Error(w, h.Log, err)
		return
	}
	if u.Status == "disabled" {
		h.Audit.LoginFailed(ctx, r, "account disabled")
		shared.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_credentials"})
		return
	}
	if !userstore.VerifyPassword(u, req.Password) {
		h.Audit.LoginFailed(ctx, r, "wrong password")
		shared.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_credentials"})
		return
	}

	if err := h.Sessions.SignIn(w, r, auth.SessionUser{
		ID:       u.ID.Hex(),
		Nickname: u.Nickname,
		Role:     u.Role,
	}); err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	h.Limiter.Reset(ip)
	h.Audit.LoginSuccess(ctx, r, u.ID, u.Role)
	h.Log.Info("user signed in", zap.String("user_id", u.ID.Hex()))
	shared.JSON(w, http.StatusOK, loginResponse{
		UserID:   u.ID.Hex(),
		Nickname: u.Nickname,
		Role:     u.Role,
	})
}

// HandleLogout handles POST /logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.Audit.Logout(r.Context(), r, u.ID)
	}
	if err := h.Sessions.SignOut(w, r); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
