package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pathak/internal/auth"
	"pathak/internal/metrics"
	"pathak/internal/parikshan"
)

type releaseRequest struct {
	Released *bool `json:"released" binding:"required"`
}

func (h *Handler) scoreRoster(c *gin.Context) {
	entries, err := h.parikshan.Roster(c.Request.Context(), auth.ActorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", gin.H{"students": entries})
}

func (h *Handler) scoreSheet(c *gin.Context) {
	sheet, err := h.parikshan.Sheet(c.Request.Context(), auth.ActorFrom(c), c.Param("studentId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", gin.H{"sheet": sheet})
}

func (h *Handler) saveFirstRound(c *gin.Context) {
	var in parikshan.FirstRoundInput
	if !h.bind(c, &in) {
		return
	}
	_, locked, err := h.parikshan.SaveFirstRound(c.Request.Context(), auth.ActorFrom(c), c.Param("studentId"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.ScoresLocked.WithLabelValues("first").Add(float64(len(locked)))
	h.savedSheet(c, locked)
}

func (h *Handler) saveFinalRound(c *gin.Context) {
	var in parikshan.FinalRoundInput
	if !h.bind(c, &in) {
		return
	}
	_, locked, err := h.parikshan.SaveFinalRound(c.Request.Context(), auth.ActorFrom(c), c.Param("studentId"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.ScoresLocked.WithLabelValues("final").Add(float64(len(locked)))
	h.savedSheet(c, locked)
}

// savedSheet answers a save with the grader's view, so scorers never get
// values back.
func (h *Handler) savedSheet(c *gin.Context, locked []string) {
	sheet, err := h.parikshan.Sheet(c.Request.Context(), auth.ActorFrom(c), c.Param("studentId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	msg := "Scores saved."
	if len(locked) == 0 {
		msg = "Nothing new to save. Submitted scores are locked."
	}
	if locked == nil {
		locked = []string{}
	}
	ok(c, http.StatusOK, msg, gin.H{"sheet": sheet, "locked": locked})
}

func (h *Handler) myScores(c *gin.Context) {
	res, err := h.parikshan.MyScores(c.Request.Context(), auth.ActorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", gin.H{"result": res})
}

func (h *Handler) setReleased(c *gin.Context) {
	var req releaseRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.parikshan.SetReleased(c.Request.Context(), auth.ActorFrom(c), *req.Released); err != nil {
		h.fail(c, err)
		return
	}
	msg := "Results hidden."
	if *req.Released {
		msg = "Results released."
	}
	ok(c, http.StatusOK, msg, gin.H{"released": *req.Released})
}
