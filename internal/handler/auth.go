package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pathak/internal/account"
	"pathak/internal/auth"
)

type registerRequest struct {
	FullName string `json:"fullname" binding:"required,notblank"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	DeviceID string `json:"device_id"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	DeviceID string `json:"device_id"`
}

type firebaseLoginRequest struct {
	IDToken  string `json:"id_token" binding:"required"`
	DeviceID string `json:"device_id"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}
	u, err := h.accounts.Register(c.Request.Context(), account.NewUser{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		DeviceID: req.DeviceID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.issue(c, http.StatusCreated, "Account created.", u)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	u, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password, req.DeviceID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.issue(c, http.StatusOK, "Welcome back.", u)
}

// firebaseLogin exchanges a Firebase ID token for API tokens. The account
// must already exist in the users collection.
func (h *Handler) firebaseLogin(c *gin.Context) {
	if h.identity == nil {
		h.fail(c, auth.ErrIdentityUnavailable)
		return
	}
	var req firebaseLoginRequest
	if !h.bind(c, &req) {
		return
	}
	uid, err := h.identity.VerifyIDToken(c.Request.Context(), req.IDToken)
	if err != nil {
		h.log.Warn("firebase token rejected", map[string]interface{}{"error": err.Error()})
		writeFailure(c, failure{http.StatusUnauthorized, CodeInvalidToken, "Sign-in failed. Please try again."})
		return
	}
	u, err := h.accounts.Authenticate(c.Request.Context(), uid, req.DeviceID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.issue(c, http.StatusOK, "Welcome back.", u)
}

// refresh re-reads the account so role changes and device resets apply.
// A token whose device is no longer bound forces a fresh login.
func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if !h.bind(c, &req) {
		return
	}
	claims, err := h.issuer.Parse(req.RefreshToken, auth.KindRefresh)
	if err != nil {
		writeFailure(c, failure{http.StatusUnauthorized, CodeInvalidToken, "Your session has ended. Please log in again."})
		return
	}
	u, err := h.accounts.Refresh(c.Request.Context(), claims.Subject, claims.DeviceID)
	if errors.Is(err, account.ErrDeviceMismatch) {
		writeFailure(c, failure{http.StatusUnauthorized, CodeDeviceMismatch, "Your device was reset. Please log in again."})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.issue(c, http.StatusOK, "Token refreshed.", u)
}

func (h *Handler) issue(c *gin.Context, status int, message string, u account.User) {
	tokens, err := h.issuer.Issue(u)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, status, message, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
		"user":          u,
	})
}

func (h *Handler) me(c *gin.Context) {
	u, err := h.accounts.Get(c.Request.Context(), auth.ActorFrom(c).UID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", gin.H{"user": u})
}

func (h *Handler) requestRebind(c *gin.Context) {
	if err := h.accounts.RequestRebind(c.Request.Context(), auth.ActorFrom(c).UID); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusAccepted, "Device change requested. An admin will review it.", nil)
}
