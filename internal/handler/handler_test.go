package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathak/internal/account"
	"pathak/internal/attendance"
	"pathak/internal/auth"
	"pathak/internal/backend"
	"pathak/internal/geo"
	"pathak/internal/handler"
	"pathak/internal/parikshan"
	"pathak/internal/store/memory"
)

var reference = geo.Point{Lat: 37.330122, Lng: -121.877429}

type fixture struct {
	t      *testing.T
	router *gin.Engine
	repos  *backend.Repos
	issuer auth.Issuer
	accts  *account.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repos := backend.Memory(memory.New())
	accts := account.NewService(repos.Accounts, 4)
	att := attendance.NewService(repos.Attendance, accts, attendance.Options{
		Gate: geo.Gate{Enabled: true, Reference: reference, RadiusMeters: 100, Timeout: time.Second},
	})
	pk := parikshan.NewService(repos.Parikshan, accts)
	issuer := auth.Issuer{Name: "test", Key: "test-key", AccessTTL: time.Minute, RefreshTTL: time.Hour}

	r := gin.New()
	handler.New(handler.Deps{
		Accounts:   accts,
		Attendance: att,
		Parikshan:  pk,
		Issuer:     issuer,
	}).Register(r)

	return &fixture{t: t, router: r, repos: repos, issuer: issuer, accts: accts}
}

func (f *fixture) user(email, role string, super, scorer bool) (account.User, string) {
	f.t.Helper()
	u, err := f.accts.AddUser(context.Background(), account.NewUser{
		FullName:   email,
		Email:      email,
		Password:   "secret123",
		Role:       role,
		SuperAdmin: super,
		Scorer:     scorer,
	})
	require.NoError(f.t, err)
	tokens, err := f.issuer.Issue(u)
	require.NoError(f.t, err)
	return u, tokens.AccessToken
}

func (f *fixture) session(id, code string, expiresIn time.Duration) attendance.Session {
	f.t.Helper()
	now := time.Now().UTC()
	s, err := f.repos.Attendance.CreateSession(context.Background(), attendance.Session{
		ID:        id,
		Title:     "Evening practice",
		CreatedBy: "admin",
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(expiresIn),
	})
	require.NoError(f.t, err)
	return s
}

func (f *fixture) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if json.Valid(w.Body.Bytes()) {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func here() gin.H {
	return gin.H{"permission": "granted", "latitude": reference.Lat, "longitude": reference.Lng}
}

func (f *fixture) records(sessionID string) int {
	f.t.Helper()
	recs, err := f.repos.Attendance.ListRecords(context.Background(), attendance.RecordFilter{SessionID: sessionID})
	require.NoError(f.t, err)
	return len(recs)
}

func TestCheckInEndToEnd(t *testing.T) {
	f := newFixture(t)
	_, token := f.user("asha@example.com", account.RoleStudent, false, false)
	sess := f.session("s-1", "A72KQ9", 30*time.Minute)

	w, body := f.do(http.MethodPost, "/v1/checkins", token, gin.H{"code": "a72kq9", "location": here()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "success", body["type"])
	assert.Equal(t, 1, f.records(sess.ID))

	w, body = f.do(http.MethodPost, "/v1/checkins", token, gin.H{"code": "A72KQ9", "location": here()})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "error", body["type"])
	assert.Equal(t, handler.CodeAlreadyMarked, body["code"])
	assert.Equal(t, "You already marked attendance.", body["message"])
	assert.Equal(t, 1, f.records(sess.ID))
}

func TestCheckInFailures(t *testing.T) {
	f := newFixture(t)
	_, token := f.user("asha@example.com", account.RoleStudent, false, false)
	f.session("s-live", "LIVE22", 30*time.Minute)
	f.session("s-old", "OLD222", -time.Minute)

	far := gin.H{"permission": "granted", "latitude": reference.Lat + 0.009, "longitude": reference.Lng}
	denied := gin.H{"permission": "denied"}

	cases := []struct {
		name   string
		body   gin.H
		status int
		code   string
	}{
		{"unknown code", gin.H{"code": "NOPE99", "location": here()}, http.StatusNotFound, handler.CodeSessionNotFound},
		{"expired", gin.H{"code": "old222", "location": here()}, http.StatusGone, handler.CodeSessionExpired},
		{"permission denied", gin.H{"code": "LIVE22", "location": denied}, http.StatusForbidden, handler.CodePermissionDenied},
		{"no location", gin.H{"code": "LIVE22"}, http.StatusUnprocessableEntity, handler.CodeLocationUnavailable},
		{"too far", gin.H{"code": "LIVE22", "location": far}, http.StatusForbidden, handler.CodeOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := f.do(http.MethodPost, "/v1/checkins", token, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, body["code"])
		})
	}

	_, body := f.do(http.MethodPost, "/v1/checkins", token, gin.H{"code": "LIVE22", "location": far})
	assert.Contains(t, body["message"], "Must be within 100m.")
	assert.InDelta(t, 1000, body["distance"], 5)
	assert.Equal(t, 0, f.records("s-live"))
}

func TestScanCheckIn(t *testing.T) {
	f := newFixture(t)
	_, token := f.user("asha@example.com", account.RoleStudent, false, false)
	sess := f.session("s-qr", "QRQR22", 30*time.Minute)

	w, _ := f.do(http.MethodPost, "/v1/checkins/scan", token, gin.H{"session_id": sess.ID, "location": here()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	recs, err := f.repos.Attendance.ListRecords(context.Background(), attendance.RecordFilter{SessionID: sess.ID})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, attendance.SourceQR, recs[0].Source)
}

func TestCorrectionApproval(t *testing.T) {
	f := newFixture(t)
	_, studentToken := f.user("asha@example.com", account.RoleStudent, false, false)
	_, adminToken := f.user("admin@example.com", account.RoleAdmin, false, false)
	sess := f.session("s-2", "MISS22", -time.Hour)

	w, body := f.do(http.MethodPost, "/v1/corrections", studentToken, gin.H{"session_id": sess.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reqID := body["request"].(map[string]interface{})["id"].(string)

	w, _ = f.do(http.MethodGet, "/v1/corrections/pending", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = f.do(http.MethodGet, "/v1/corrections/pending", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["requests"], 1)

	w, body = f.do(http.MethodPost, "/v1/corrections/"+reqID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Approved", body["message"])
	assert.Equal(t, 1, f.records(sess.ID))

	w, _ = f.do(http.MethodPost, "/v1/corrections/"+reqID+"/approve", adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 1, f.records(sess.ID))

	w, body = f.do(http.MethodGet, "/v1/attendance/history", studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows := body["sessions"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, attendance.MarkAttended, rows[0].(map[string]interface{})["mark"])
}

func TestUndoCorrection(t *testing.T) {
	f := newFixture(t)
	_, token := f.user("asha@example.com", account.RoleStudent, false, false)
	sess := f.session("s-3", "UNDO22", -time.Hour)

	w, _ := f.do(http.MethodPost, "/v1/corrections", token, gin.H{"session_id": sess.ID})
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := f.do(http.MethodDelete, "/v1/corrections/"+sess.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["deleted"])

	w, _ = f.do(http.MethodDelete, "/v1/corrections/"+sess.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)
	_, token := f.user("asha@example.com", account.RoleStudent, false, false)

	w, _ := f.do(http.MethodGet, "/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = f.do(http.MethodPost, "/v1/sessions", token, gin.H{"title": "Practice"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(http.MethodPost, "/v1/auth/register", "", gin.H{"fullname": "Asha", "email": "not-an-email", "password": "secret123"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, handler.CodeInvalidInput, body["code"])
	assert.Contains(t, body["fields"], "email")

	w, body = f.do(http.MethodPost, "/v1/auth/register", "", gin.H{"fullname": "Asha", "email": "Asha@Example.com", "password": "secret123", "device_id": "phone-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, body["access_token"])

	w, _ = f.do(http.MethodPost, "/v1/auth/login", "", gin.H{"email": "asha@example.com", "password": "secret123", "device_id": "phone-1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = f.do(http.MethodPost, "/v1/auth/login", "", gin.H{"email": "asha@example.com", "password": "secret123", "device_id": "phone-2"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, handler.CodeDeviceMismatch, body["code"])

	w, _ = f.do(http.MethodPost, "/v1/auth/login", "", gin.H{"email": "asha@example.com", "password": "wrong-pass", "device_id": "phone-1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshToken(t *testing.T) {
	f := newFixture(t)
	u, _ := f.user("asha@example.com", account.RoleStudent, false, false)
	tokens, err := f.issuer.Issue(u)
	require.NoError(t, err)

	w, body := f.do(http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": tokens.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, body["access_token"])

	w, body = f.do(http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": tokens.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, handler.CodeInvalidToken, body["code"])
}

func TestFirebaseLoginUnconfigured(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(http.MethodPost, "/v1/auth/firebase", "", gin.H{"id_token": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSessionAdmin(t *testing.T) {
	f := newFixture(t)
	_, adminToken := f.user("admin@example.com", account.RoleAdmin, false, false)
	_, studentToken := f.user("asha@example.com", account.RoleStudent, false, false)

	w, body := f.do(http.MethodPost, "/v1/sessions", adminToken, gin.H{"title": "  "})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, handler.CodeInvalidInput, body["code"])

	w, body = f.do(http.MethodPost, "/v1/sessions", adminToken, gin.H{"title": "Sunday practice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sess := body["session"].(map[string]interface{})
	id, code := sess["id"].(string), sess["code"].(string)
	assert.Len(t, code, 6)

	w, body = f.do(http.MethodGet, "/v1/sessions/active", studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, code, body["session"].(map[string]interface{})["code"])

	w, _ = f.do(http.MethodPost, "/v1/checkins", studentToken, gin.H{"code": code, "location": here()})
	require.Equal(t, http.StatusCreated, w.Code)

	w, body = f.do(http.MethodGet, "/v1/sessions/"+id+"/attendance", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["count"])

	w, _ = f.do(http.MethodGet, "/v1/sessions/"+id+"/export", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "asha@example.com")

	w, _ = f.do(http.MethodGet, "/v1/sessions/"+id+"/qr", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w, body = f.do(http.MethodGet, "/v1/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["students"])
	assert.EqualValues(t, 1, body["sessions"])
}

func TestDeviceRebind(t *testing.T) {
	f := newFixture(t)
	_, adminToken := f.user("admin@example.com", account.RoleAdmin, false, false)
	u, token := f.user("asha@example.com", account.RoleStudent, false, false)
	require.NoError(t, f.repos.Accounts.SetDevice(context.Background(), u.UID, "phone-1"))

	w, _ := f.do(http.MethodPost, "/v1/me/rebind", token, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	w, _ = f.do(http.MethodPost, "/v1/me/rebind", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body := f.do(http.MethodGet, "/v1/admin/rebinds", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["users"], 1)

	w, _ = f.do(http.MethodPost, "/v1/admin/rebinds/"+u.UID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := f.accts.Get(context.Background(), u.UID)
	require.NoError(t, err)
	assert.Empty(t, got.DeviceID)
	assert.False(t, got.RebindRequest)
}

func TestRefreshAfterRebindNeedsLogin(t *testing.T) {
	f := newFixture(t)
	_, adminToken := f.user("admin@example.com", account.RoleAdmin, false, false)
	u, _ := f.user("asha@example.com", account.RoleStudent, false, false)

	w, body := f.do(http.MethodPost, "/v1/auth/login", "", gin.H{"email": "asha@example.com", "password": "secret123", "device_id": "old-phone"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	oldRefresh := body["refresh_token"].(string)

	w, _ = f.do(http.MethodPost, "/v1/admin/rebinds/"+u.UID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = f.do(http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": oldRefresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, handler.CodeDeviceMismatch, body["code"])

	got, err := f.accts.Get(context.Background(), u.UID)
	require.NoError(t, err)
	assert.Empty(t, got.DeviceID)

	w, body = f.do(http.MethodPost, "/v1/auth/login", "", gin.H{"email": "asha@example.com", "password": "secret123", "device_id": "new-phone"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "new-phone", body["user"].(map[string]interface{})["device_id"])
}

func TestParikshanFlow(t *testing.T) {
	f := newFixture(t)
	_, superToken := f.user("head@example.com", account.RoleAdmin, true, false)
	_, scorerToken := f.user("scorer@example.com", account.RoleStudent, false, true)
	student, studentToken := f.user("asha@example.com", account.RoleStudent, false, false)
	path := "/v1/parikshan/scores/" + student.UID

	w, _ := f.do(http.MethodPut, path, studentToken, gin.H{"dhol1": 8})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := f.do(http.MethodPut, path, scorerToken, gin.H{"dhol1": 11})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, handler.CodeInvalidInput, body["code"])

	w, body = f.do(http.MethodPut, "/v1/parikshan/scores/ghost", scorerToken, gin.H{"dhol1": 8})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, handler.CodeNotFound, body["code"])

	w, body = f.do(http.MethodPut, path, scorerToken, gin.H{"dhol1": 8, "dhol2": 6})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.ElementsMatch(t, []interface{}{"dhol1", "dhol2"}, body["locked"])
	for _, fv := range body["sheet"].(map[string]interface{})["first_round"].([]interface{}) {
		assert.Nil(t, fv.(map[string]interface{})["value"], "scorers never see values")
	}

	w, body = f.do(http.MethodPut, path, scorerToken, gin.H{"dhol1": 2, "maintenance": 9, "dhwaj": 7})
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []interface{}{"maintenance", "dhwaj"}, body["locked"])

	w, body = f.do(http.MethodGet, "/v1/parikshan/me", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, handler.CodeResultsHidden, body["code"])

	w, _ = f.do(http.MethodPut, "/v1/parikshan/release", scorerToken, gin.H{"released": true})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = f.do(http.MethodPut, "/v1/parikshan/release", superToken, gin.H{"released": true})
	require.Equal(t, http.StatusOK, w.Code)

	w, body = f.do(http.MethodGet, "/v1/parikshan/me", studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := body["result"].(map[string]interface{})
	assert.EqualValues(t, 7, result["dhol"])
	assert.InDelta(t, (7.0+9+7)/3, result["first_average"], 1e-9)
	assert.Nil(t, result["combined"])

	w, body = f.do(http.MethodGet, "/v1/parikshan/roster", scorerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	students := body["students"].([]interface{})
	require.Len(t, students, 2)
	ungraded := students[0].(map[string]interface{})
	graded := students[1].(map[string]interface{})
	assert.Equal(t, string(parikshan.BadgeNone), ungraded["badge"])
	assert.Equal(t, student.UID, graded["student_id"])
	assert.Equal(t, string(parikshan.BadgeScored), graded["badge"])
}
