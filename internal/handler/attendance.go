package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"pathak/internal/attendance"
	"pathak/internal/auth"
	"pathak/internal/geo"
	"pathak/internal/metrics"
	"pathak/internal/report"
)

type createSessionRequest struct {
	Title string `json:"title"`
}

type checkInRequest struct {
	Code      string   `json:"code"`
	SessionID string   `json:"session_id"`
	Location  *geo.Fix `json:"location"`
}

type correctionRequest struct {
	SessionID string `json:"session_id" binding:"required,notblank"`
}

type historyRow struct {
	attendance.SessionSummary
	Mark string `json:"mark"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if !h.bind(c, &req) {
		return
	}
	sess, err := h.attendance.CreateSession(c.Request.Context(), auth.ActorFrom(c), req.Title)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Session created.", gin.H{"session": sess})
}

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.attendance.ListSessions(c.Request.Context(), auth.ActorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", gin.H{"sessions": sessions})
}

// activeSession prefills the manual entry screen.
func (h *Handler) activeSession(c *gin.Context) {
	sess, err := h.attendance.LatestActive(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", gin.H{"session": gin.H{"id": sess.ID, "title": sess.Title, "code": sess.Code, "expires_at": sess.ExpiresAt}})
}

func (h *Handler) sessionRoster(c *gin.Context) {
	sess, attendees, err := h.attendance.Roster(c.Request.Context(), auth.ActorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", gin.H{"session": sess, "attendees": attendees, "count": len(attendees)})
}

func (h *Handler) exportRoster(c *gin.Context) {
	sess, attendees, err := h.attendance.Roster(c.Request.Context(), auth.ActorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+report.Filename(sess)+`"`)
	c.Status(http.StatusOK)
	if err := report.WriteRoster(c.Writer, sess, attendees); err != nil {
		h.log.Error("write roster csv", err, map[string]interface{}{"session": sess.ID})
	}
}

// sessionQR renders the session id as a QR code for students to scan.
func (h *Handler) sessionQR(c *gin.Context) {
	sess, err := h.attendance.SessionByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	png, err := qrcode.Encode(sess.ID, qrcode.Medium, 300)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) checkIn(c *gin.Context) {
	var req checkInRequest
	if !h.bind(c, &req) {
		return
	}
	req.SessionID = ""
	h.doCheckIn(c, req)
}

func (h *Handler) scan(c *gin.Context) {
	var req checkInRequest
	if !h.bind(c, &req) {
		return
	}
	if req.SessionID == "" {
		h.fail(c, attendance.ErrSessionNotFound)
		return
	}
	h.doCheckIn(c, req)
}

func (h *Handler) doCheckIn(c *gin.Context, req checkInRequest) {
	var loc geo.Locator
	if req.Location != nil {
		loc = *req.Location
	}
	receipt, err := h.attendance.CheckIn(c.Request.Context(), auth.ActorFrom(c), attendance.CheckInRequest{
		Code:      req.Code,
		SessionID: req.SessionID,
		Location:  loc,
	})
	metrics.CheckIns.WithLabelValues(checkInOutcome(err)).Inc()
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Attendance marked for "+receipt.Session.Title+".", gin.H{
		"record":   receipt.Record,
		"session":  gin.H{"id": receipt.Session.ID, "title": receipt.Session.Title},
		"distance": receipt.Distance,
	})
}

func checkInOutcome(err error) string {
	switch {
	case err == nil:
		return "marked"
	case errors.Is(err, attendance.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, attendance.ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, geo.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, geo.ErrLocationUnavailable):
		return "location_unavailable"
	case errors.Is(err, attendance.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, attendance.ErrAlreadyMarked):
		return "already_marked"
	}
	return "failed"
}

func (h *Handler) history(c *gin.Context) {
	rows, err := h.attendance.History(c.Request.Context(), auth.ActorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]historyRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, historyRow{SessionSummary: r, Mark: r.Mark()})
	}
	ok(c, http.StatusOK, "", gin.H{"sessions": out})
}

func (h *Handler) requestCorrection(c *gin.Context) {
	var req correctionRequest
	if !h.bind(c, &req) {
		return
	}
	cr, err := h.attendance.RequestCorrection(c.Request.Context(), auth.ActorFrom(c), req.SessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.Corrections.WithLabelValues("requested").Inc()
	ok(c, http.StatusCreated, "Attendance request sent.", gin.H{"request": cr})
}

func (h *Handler) undoCorrection(c *gin.Context) {
	n, err := h.attendance.UndoCorrection(c.Request.Context(), auth.ActorFrom(c), c.Param("sessionId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.Corrections.WithLabelValues("undone").Add(float64(n))
	ok(c, http.StatusOK, "Request withdrawn.", gin.H{"deleted": n})
}

func (h *Handler) pendingCorrections(c *gin.Context) {
	reqs, err := h.attendance.PendingCorrections(c.Request.Context(), auth.ActorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", gin.H{"requests": reqs})
}

func (h *Handler) approveCorrection(c *gin.Context) {
	cr, err := h.attendance.ApproveCorrection(c.Request.Context(), auth.ActorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.Corrections.WithLabelValues("approved").Inc()
	ok(c, http.StatusOK, "Approved", gin.H{"request": cr})
}

func (h *Handler) rejectCorrection(c *gin.Context) {
	cr, err := h.attendance.RejectCorrection(c.Request.Context(), auth.ActorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.Corrections.WithLabelValues("rejected").Inc()
	ok(c, http.StatusOK, "Rejected", gin.H{"request": cr})
}
