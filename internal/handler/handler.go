// Package handler exposes the attendance and Parikshan services over HTTP.
// Every user-facing response is a banner: {"type","code","message"} plus
// payload fields.
package handler

import (
	"github.com/gin-gonic/gin"

	"pathak/internal/account"
	"pathak/internal/attendance"
	"pathak/internal/auth"
	"pathak/internal/httpmiddleware"
	"pathak/internal/logging"
	"pathak/internal/parikshan"
)

// Handler holds the services behind the routes.
type Handler struct {
	accounts   *account.Service
	attendance *attendance.Service
	parikshan  *parikshan.Service
	issuer     auth.Issuer
	identity   auth.IdentityVerifier
	limiter    httpmiddleware.Limiter
	log        *logging.Logger
}

// Deps are the collaborators of a Handler. Identity and Limiter are optional.
type Deps struct {
	Accounts   *account.Service
	Attendance *attendance.Service
	Parikshan  *parikshan.Service
	Issuer     auth.Issuer
	Identity   auth.IdentityVerifier
	Limiter    httpmiddleware.Limiter
	Log        *logging.Logger
}

func New(d Deps) *Handler {
	setupValidator()
	log := d.Log
	if log == nil {
		log = logging.New(nil, logging.Options{})
	}
	return &Handler{
		accounts:   d.Accounts,
		attendance: d.Attendance,
		parikshan:  d.Parikshan,
		issuer:     d.Issuer,
		identity:   d.Identity,
		limiter:    d.Limiter,
		log:        log,
	}
}

// Register mounts the /v1 routes on r.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")

	public := v1.Group("/auth")
	h.limit(public)
	public.POST("/register", h.register)
	public.POST("/login", h.login)
	public.POST("/firebase", h.firebaseLogin)
	public.POST("/refresh", h.refresh)

	user := v1.Group("", auth.RequireUser(h.issuer))
	h.limit(user)
	user.GET("/me", h.me)
	user.POST("/me/rebind", h.requestRebind)
	user.GET("/sessions/active", h.activeSession)
	user.POST("/checkins", h.checkIn)
	user.POST("/checkins/scan", h.scan)
	user.GET("/attendance/history", h.history)
	user.POST("/corrections", h.requestCorrection)
	user.DELETE("/corrections/:sessionId", h.undoCorrection)
	user.GET("/parikshan/me", h.myScores)

	admin := user.Group("", auth.RequireRole(account.RoleAdmin))
	admin.POST("/sessions", h.createSession)
	admin.GET("/sessions", h.listSessions)
	admin.GET("/sessions/:id/attendance", h.sessionRoster)
	admin.GET("/sessions/:id/export", h.exportRoster)
	admin.GET("/sessions/:id/qr", h.sessionQR)
	admin.GET("/corrections/pending", h.pendingCorrections)
	admin.POST("/corrections/:id/approve", h.approveCorrection)
	admin.POST("/corrections/:id/reject", h.rejectCorrection)
	admin.GET("/admin/rebinds", h.rebindRequests)
	admin.POST("/admin/rebinds/:uid/approve", h.approveRebind)
	admin.POST("/admin/devices/reset", h.resetDevice)
	admin.GET("/admin/stats", h.stats)
	admin.PUT("/parikshan/release", h.setReleased)

	// Scorers may be students; the services check CanScore.
	user.GET("/parikshan/roster", h.scoreRoster)
	user.GET("/parikshan/scores/:studentId", h.scoreSheet)
	user.PUT("/parikshan/scores/:studentId", h.saveFirstRound)
	user.GET("/parikshan/finals/:studentId", h.scoreSheet)
	user.PUT("/parikshan/finals/:studentId", h.saveFinalRound)
}

func (h *Handler) limit(g *gin.RouterGroup) {
	if h.limiter != nil {
		g.Use(httpmiddleware.GinMiddleware(h.limiter))
	}
}
