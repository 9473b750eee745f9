package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pathak/internal/auth"
)

type resetDeviceRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *Handler) rebindRequests(c *gin.Context) {
	users, err := h.accounts.RebindRequests(c.Request.Context(), auth.ActorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", gin.H{"users": users})
}

func (h *Handler) approveRebind(c *gin.Context) {
	if err := h.accounts.ApproveRebind(c.Request.Context(), auth.ActorFrom(c), c.Param("uid")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Device reset. The student can log in on a new device.", nil)
}

func (h *Handler) resetDevice(c *gin.Context) {
	var req resetDeviceRequest
	if !h.bind(c, &req) {
		return
	}
	u, err := h.accounts.ResetDevice(c.Request.Context(), auth.ActorFrom(c), req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Device reset for "+u.Email+".", gin.H{"user": u})
}

// stats feeds the admin dashboard.
func (h *Handler) stats(c *gin.Context) {
	ctx := c.Request.Context()
	actor := auth.ActorFrom(c)

	students, err := h.accounts.Students(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	sessions, err := h.attendance.ListSessions(ctx, actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	pending, err := h.attendance.PendingCorrections(ctx, actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	rebinds, err := h.accounts.RebindRequests(ctx, actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	released, err := h.parikshan.Released(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", gin.H{
		"students":            len(students),
		"sessions":            len(sessions),
		"pending_corrections": len(pending),
		"pending_rebinds":     len(rebinds),
		"results_released":    released,
	})
}
