package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"pathak/internal/account"
	"pathak/internal/attendance"
	"pathak/internal/auth"
	"pathak/internal/geo"
	"pathak/internal/parikshan"
)

// Banner types.
const (
	bannerSuccess = "success"
	bannerError   = "error"
)

// Banner codes that clients branch on.
const (
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeSessionExpired      = "SESSION_EXPIRED"
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeLocationUnavailable = "LOCATION_UNAVAILABLE"
	CodeOutOfRange          = "OUT_OF_RANGE"
	CodeAlreadyMarked       = "ALREADY_MARKED"
	CodeRequestFailed       = "REQUEST_FAILED"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeDeviceMismatch      = "DEVICE_MISMATCH"
	CodeForbidden           = "FORBIDDEN"
	CodeResultsHidden       = "RESULTS_HIDDEN"
	CodeConflict            = "CONFLICT"
	CodeNotFound            = "NOT_FOUND"
)

type failure struct {
	status  int
	code    string
	message string
}

var knownErrors = []struct {
	err error
	failure
}{
	{attendance.ErrSessionNotFound, failure{http.StatusNotFound, CodeSessionNotFound, "Session not found."}},
	{attendance.ErrSessionExpired, failure{http.StatusGone, CodeSessionExpired, "This session has expired."}},
	{geo.ErrPermissionDenied, failure{http.StatusForbidden, CodePermissionDenied, "Location permission is required to mark attendance."}},
	{geo.ErrLocationUnavailable, failure{http.StatusUnprocessableEntity, CodeLocationUnavailable, "Could not get your location. Please try again."}},
	{attendance.ErrAlreadyMarked, failure{http.StatusConflict, CodeAlreadyMarked, "You already marked attendance."}},
	{attendance.ErrTitleRequired, failure{http.StatusBadRequest, CodeInvalidInput, "Session title is required."}},
	{attendance.ErrRequestNotFound, failure{http.StatusNotFound, CodeNotFound, "Request not found."}},
	{attendance.ErrRequestNotPending, failure{http.StatusConflict, CodeConflict, "This request was already handled."}},
	{attendance.ErrRequestExists, failure{http.StatusConflict, CodeConflict, "You already requested attendance for this session."}},
	{attendance.ErrAlreadyAttended, failure{http.StatusConflict, CodeAlreadyMarked, "You already attended this session."}},
	{account.ErrUserNotFound, failure{http.StatusNotFound, CodeNotFound, "User not found."}},
	{account.ErrEmailInUse, failure{http.StatusConflict, CodeConflict, "An account with this email already exists."}},
	{account.ErrInvalidCredentials, failure{http.StatusUnauthorized, CodeInvalidInput, "Invalid email or password."}},
	{account.ErrWeakPassword, failure{http.StatusBadRequest, CodeInvalidInput, "Password must be at least 6 characters."}},
	{account.ErrMissingFields, failure{http.StatusBadRequest, CodeInvalidInput, "Please fill all fields."}},
	{account.ErrDeviceMismatch, failure{http.StatusForbidden, CodeDeviceMismatch, "This account is registered on another device."}},
	{account.ErrUnknownRole, failure{http.StatusForbidden, CodeForbidden, "Unknown role. Contact an admin."}},
	{account.ErrRebindPending, failure{http.StatusConflict, CodeConflict, "A device change is already requested."}},
	{account.ErrForbidden, failure{http.StatusForbidden, CodeForbidden, "You are not allowed to do that."}},
	{parikshan.ErrScoreOutOfRange, failure{http.StatusBadRequest, CodeInvalidInput, "Scores must be between 0 and 10."}},
	{parikshan.ErrResultsHidden, failure{http.StatusForbidden, CodeResultsHidden, "Results have not been released yet."}},
	{auth.ErrIdentityUnavailable, failure{http.StatusServiceUnavailable, CodeRequestFailed, "Sign-in provider is not configured."}},
}

// ok writes a success banner merged with payload.
func ok(c *gin.Context, status int, message string, payload gin.H) {
	body := gin.H{"type": bannerSuccess, "code": "OK", "message": message}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// fail converts err into an error banner. Unknown errors are logged and
// rendered as a generic failure.
func (h *Handler) fail(c *gin.Context, err error) {
	var oor *attendance.OutOfRangeError
	if errors.As(err, &oor) {
		c.JSON(http.StatusForbidden, gin.H{
			"type":     bannerError,
			"code":     CodeOutOfRange,
			"message":  fmt.Sprintf("You're %.0fm away. Must be within %.0fm.", oor.Distance, oor.Radius),
			"distance": oor.Distance,
			"radius":   oor.Radius,
		})
		return
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Translate(translator)
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"type":    bannerError,
			"code":    CodeInvalidInput,
			"message": "Please check the highlighted fields.",
			"fields":  fields,
		})
		return
	}

	for _, k := range knownErrors {
		if errors.Is(err, k.err) {
			writeFailure(c, k.failure)
			return
		}
	}

	h.log.Error("request failed", err, map[string]interface{}{
		"method": c.Request.Method,
		"path":   c.FullPath(),
		"uid":    auth.ActorFrom(c).UID,
	})
	writeFailure(c, failure{http.StatusInternalServerError, CodeRequestFailed, "Something went wrong."})
}

// badRequest reports a body that could not be decoded at all.
func badRequest(c *gin.Context, message string) {
	writeFailure(c, failure{http.StatusBadRequest, CodeInvalidInput, message})
}

func writeFailure(c *gin.Context, f failure) {
	c.JSON(f.status, gin.H{"type": bannerError, "code": f.code, "message": f.message})
}

// bind decodes the JSON body into v and writes the failure banner itself.
func (h *Handler) bind(c *gin.Context, v interface{}) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		h.fail(c, err)
	} else {
		badRequest(c, "Invalid request body.")
	}
	return false
}
