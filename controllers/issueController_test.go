package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Pariharx7/CivicTrack/middlewares"
	"github.com/Pariharx7/CivicTrack/models"
	"github.com/Pariharx7/CivicTrack/stores"
	"github.com/Pariharx7/CivicTrack/utils"
)

type issueStoreMock struct {
	createErr   error
	createCalls int
	created     *models.Issue

	getIssue *models.Issue
	getErr   error

	listIssues  []models.Issue
	listTotal   int64
	listErr     error
	listFilter  stores.IssueFilter
	listPage    int
	listPerPage int

	nearbyIssues []models.Issue
	nearbyErr    error
	nearbyCalls  int
	nearbyLng    float64
	nearbyLat    float64
	nearbyRadius float64

	updated       *models.Issue
	updateErr     error
	updateCalls   int
	updateStatus  models.IssueStatus
	updateComment string

	flagIssue *models.Issue
	flagErr   error

	deleteErr   error
	deleteCalls int
}

func (m *issueStoreMock) Create(ctx context.Context, issue *models.Issue) error {
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	issue.ID = primitive.NewObjectID()
	issue.Status = models.StatusPending
	issue.Logs = []models.StatusLog{}
	issue.CreatedAt = time.Now()
	issue.UpdatedAt = issue.CreatedAt
	m.created = issue
	return nil
}

func (m *issueStoreMock) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	return m.getIssue, m.getErr
}

func (m *issueStoreMock) List(ctx context.Context, filter stores.IssueFilter, page, perPage int) ([]models.Issue, int64, error) {
	m.listFilter = filter
	m.listPage = page
	m.listPerPage = perPage
	return m.listIssues, m.listTotal, m.listErr
}

func (m *issueStoreMock) ListNearby(ctx context.Context, lng, lat, radiusMeters float64) ([]models.Issue, error) {
	m.nearbyCalls++
	m.nearbyLng = lng
	m.nearbyLat = lat
	m.nearbyRadius = radiusMeters
	return m.nearbyIssues, m.nearbyErr
}

func (m *issueStoreMock) UpdateStatus(ctx context.Context, id primitive.ObjectID, newStatus models.IssueStatus, comment string, updatedBy primitive.ObjectID) (*models.Issue, error) {
	m.updateCalls++
	m.updateStatus = newStatus
	m.updateComment = comment
	return m.updated, m.updateErr
}

func (m *issueStoreMock) Flag(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	return m.flagIssue, m.flagErr
}

func (m *issueStoreMock) Delete(ctx context.Context, id primitive.ObjectID) error {
	m.deleteCalls++
	return m.deleteErr
}

type uploaderFake struct {
	err   error
	calls int
}

func (u *uploaderFake) Upload(ctx context.Context, file io.Reader, filename string) (string, error) {
	u.calls++
	if u.err != nil {
		return "", u.err
	}
	return fmt.Sprintf("https://images.example.com/%d.jpg", u.calls), nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestController(store *issueStoreMock, up *uploaderFake) *IssueController {
	return NewIssueController(store, up, zap.NewNop())
}

func newGinContext(method, target string, body io.Reader, contentType string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, body)
	if contentType != "" {
		c.Request.Header.Set("Content-Type", contentType)
	}
	return c, w
}

func setSubject(c *gin.Context, id primitive.ObjectID, role models.UserRole) {
	c.Set(middlewares.ContextUserIDKey, id.Hex())
	c.Set(middlewares.ContextRoleKey, string(role))
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func reportBody(t *testing.T, fields map[string]string, photoCount int) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, w.WriteField(key, value))
	}
	for i := 0; i < photoCount; i++ {
		fw, err := w.CreateFormFile("photos", fmt.Sprintf("photo%d.jpg", i))
		require.NoError(t, err)
		_, err = fw.Write([]byte("not really a jpeg"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func validReportFields() map[string]string {
	return map[string]string{
		"title":       "Large pothole near the market",
		"description": "Deep pothole damaging vehicles",
		"category":    "Roads",
		"location":    `{"lat":23.03,"lng":72.58}`,
	}
}

func TestReportIssueCreatesPendingIssueWithPhotos(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{}
	up := &uploaderFake{}
	ic := newTestController(store, up)

	body, contentType := reportBody(t, validReportFields(), 2)
	c, w := newGinContext(http.MethodPost, "/api/issues/report", body, contentType)
	setSubject(c, primitive.NewObjectID(), models.RoleUser)

	ic.ReportIssue(c)

	require.Equal(t, http.StatusCreated, w.Code)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)

	var issue models.Issue
	require.NoError(t, json.Unmarshal(env.Data, &issue))
	assert.Equal(t, models.StatusPending, issue.Status)
	assert.Equal(t, models.Roads, issue.Category)
	assert.Len(t, issue.ImageURLs, 2)
	assert.Equal(t, []float64{72.58, 23.03}, issue.Location.Coordinates)
	assert.Equal(t, 2, up.calls)
	assert.Equal(t, 1, store.createCalls)
}

func TestReportIssueRejectsUnknownCategory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{}
	ic := newTestController(store, &uploaderFake{})

	fields := validReportFields()
	fields["category"] = "Potholes"
	body, contentType := reportBody(t, fields, 0)
	c, w := newGinContext(http.MethodPost, "/api/issues/report", body, contentType)
	setSubject(c, primitive.NewObjectID(), models.RoleUser)

	ic.ReportIssue(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, store.createCalls)
}

func TestReportIssueRejectsMalformedLocation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, location := range []string{"not json", "{}", `{"lat":23.03}`, `{"lat":95.0,"lng":72.58}`} {
		store := &issueStoreMock{}
		ic := newTestController(store, &uploaderFake{})

		fields := validReportFields()
		fields["location"] = location
		body, contentType := reportBody(t, fields, 0)
		c, w := newGinContext(http.MethodPost, "/api/issues/report", body, contentType)
		setSubject(c, primitive.NewObjectID(), models.RoleUser)

		ic.ReportIssue(c)

		assert.Equal(t, http.StatusBadRequest, w.Code, "location %q should be rejected", location)
		assert.Equal(t, 0, store.createCalls)
	}
}

func TestReportIssueRejectsTooManyPhotos(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{}
	up := &uploaderFake{}
	ic := newTestController(store, up)

	body, contentType := reportBody(t, validReportFields(), 4)
	c, w := newGinContext(http.MethodPost, "/api/issues/report", body, contentType)
	setSubject(c, primitive.NewObjectID(), models.RoleUser)

	ic.ReportIssue(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, up.calls)
	assert.Equal(t, 0, store.createCalls)
}

func TestReportIssueAbortsWhenUploadFails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{}
	up := &uploaderFake{err: fmt.Errorf("cloudinary unavailable")}
	ic := newTestController(store, up)

	body, contentType := reportBody(t, validReportFields(), 2)
	c, w := newGinContext(http.MethodPost, "/api/issues/report", body, contentType)
	setSubject(c, primitive.NewObjectID(), models.RoleUser)

	ic.ReportIssue(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// Nothing persisted when any upload fails.
	assert.Equal(t, 0, store.createCalls)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "Image upload failed", env.Message)
}

func TestReportIssueRequiresAuthenticatedSubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{}
	ic := newTestController(store, &uploaderFake{})

	body, contentType := reportBody(t, validReportFields(), 0)
	c, w := newGinContext(http.MethodPost, "/api/issues/report", body, contentType)

	ic.ReportIssue(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, store.createCalls)
}

func TestListIssuesReturnsPaginationMetadata(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{
		listIssues: []models.Issue{{Title: "a"}, {Title: "b"}},
		listTotal:  7,
	}
	ic := newTestController(store, &uploaderFake{})

	c, w := newGinContext(http.MethodGet, "/api/issues?category=Lighting&page=2&limit=5", nil, "")

	ic.ListIssues(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, stores.IssueFilter{Category: "Lighting"}, store.listFilter)
	assert.Equal(t, 2, store.listPage)
	assert.Equal(t, 5, store.listPerPage)

	env := decodeEnvelope(t, w)
	var data struct {
		Issues     []models.Issue   `json:"issues"`
		Pagination utils.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Issues, 2)
	assert.Equal(t, int64(7), data.Pagination.Total)
	assert.Equal(t, 2, data.Pagination.TotalPages)
	assert.Equal(t, 5, data.Pagination.PerPage)
	assert.Equal(t, 2, data.Pagination.CurrentPage)
}

func TestListNearbyRequiresCoordinates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{}
	ic := newTestController(store, &uploaderFake{})

	c, w := newGinContext(http.MethodGet, "/api/issues/nearby", nil, "")
	setSubject(c, primitive.NewObjectID(), models.RoleUser)

	ic.ListNearbyIssues(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, store.nearbyCalls)
}

func TestListNearbyUsesDefaultRadius(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{nearbyIssues: []models.Issue{}}
	ic := newTestController(store, &uploaderFake{})

	c, w := newGinContext(http.MethodGet, "/api/issues/nearby?lat=23.03&lng=72.58", nil, "")
	setSubject(c, primitive.NewObjectID(), models.RoleUser)

	ic.ListNearbyIssues(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, store.nearbyCalls)
	// Longitude first, matching the stored coordinate order.
	assert.Equal(t, 72.58, store.nearbyLng)
	assert.Equal(t, 23.03, store.nearbyLat)
	assert.Equal(t, 3000.0, store.nearbyRadius)
}

func TestListNearbyConvertsRadiusKmToMeters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{nearbyIssues: []models.Issue{}}
	ic := newTestController(store, &uploaderFake{})

	c, w := newGinContext(http.MethodGet, "/api/issues/nearby?lat=23.03&lng=72.58&radiusKm=5", nil, "")
	setSubject(c, primitive.NewObjectID(), models.RoleUser)

	ic.ListNearbyIssues(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5000.0, store.nearbyRadius)
}

func TestListNearbyRejectsOutOfRangeCoordinates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{}
	ic := newTestController(store, &uploaderFake{})

	c, w := newGinContext(http.MethodGet, "/api/issues/nearby?lat=95&lng=72.58", nil, "")
	setSubject(c, primitive.NewObjectID(), models.RoleUser)

	ic.ListNearbyIssues(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, store.nearbyCalls)
}

func TestGetIssueDetailRejectsMalformedID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ic := newTestController(&issueStoreMock{}, &uploaderFake{})

	c, w := newGinContext(http.MethodGet, "/api/issues/abc", nil, "")
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	ic.GetIssueDetail(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetIssueDetailNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{getErr: utils.NewNotFoundError("Issue not found")}
	ic := newTestController(store, &uploaderFake{})

	c, w := newGinContext(http.MethodGet, "/api/issues/"+primitive.NewObjectID().Hex(), nil, "")
	c.Params = gin.Params{{Key: "id", Value: primitive.NewObjectID().Hex()}}

	ic.GetIssueDetail(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "Issue not found", env.Message)
}

func TestUpdateIssueStatusForbiddenForNonAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{}
	ic := newTestController(store, &uploaderFake{})

	payload := []byte(`{"status":"in-progress","comment":"crew dispatched"}`)
	c, w := newGinContext(http.MethodPatch, "/api/issues/x", bytes.NewReader(payload), "application/json")
	c.Params = gin.Params{{Key: "id", Value: primitive.NewObjectID().Hex()}}
	setSubject(c, primitive.NewObjectID(), models.RoleUser)

	ic.UpdateIssueStatus(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	// No transition happened, so no log entry was appended.
	assert.Equal(t, 0, store.updateCalls)
}

func TestUpdateIssueStatusAppendsLogEntry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	adminID := primitive.NewObjectID()
	store := &issueStoreMock{
		updated: &models.Issue{
			Status: models.StatusInProgress,
			Logs: []models.StatusLog{{
				Status:    models.StatusInProgress,
				Comment:   "crew dispatched",
				UpdatedBy: adminID,
			}},
		},
	}
	ic := newTestController(store, &uploaderFake{})

	payload := []byte(`{"status":"in-progress","comment":"crew dispatched"}`)
	c, w := newGinContext(http.MethodPatch, "/api/issues/x", bytes.NewReader(payload), "application/json")
	c.Params = gin.Params{{Key: "id", Value: primitive.NewObjectID().Hex()}}
	setSubject(c, adminID, models.RoleAdmin)

	ic.UpdateIssueStatus(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, store.updateCalls)
	assert.Equal(t, models.StatusInProgress, store.updateStatus)
	assert.Equal(t, "crew dispatched", store.updateComment)

	env := decodeEnvelope(t, w)
	var issue models.Issue
	require.NoError(t, json.Unmarshal(env.Data, &issue))
	require.Len(t, issue.Logs, 1)
	assert.Equal(t, models.StatusInProgress, issue.Logs[0].Status)
	assert.Equal(t, "crew dispatched", issue.Logs[0].Comment)
}

func TestUpdateIssueStatusRejectsUnknownStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{}
	ic := newTestController(store, &uploaderFake{})

	payload := []byte(`{"status":"done"}`)
	c, w := newGinContext(http.MethodPatch, "/api/issues/x", bytes.NewReader(payload), "application/json")
	c.Params = gin.Params{{Key: "id", Value: primitive.NewObjectID().Hex()}}
	setSubject(c, primitive.NewObjectID(), models.RoleAdmin)

	ic.UpdateIssueStatus(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, store.updateCalls)
}

func TestFlagIssueReportsThresholdState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{
		flagIssue: &models.Issue{FlaggedCount: 3, IsFlagged: true},
	}
	ic := newTestController(store, &uploaderFake{})

	c, w := newGinContext(http.MethodPost, "/api/issues/x/flag", nil, "")
	c.Params = gin.Params{{Key: "id", Value: primitive.NewObjectID().Hex()}}
	setSubject(c, primitive.NewObjectID(), models.RoleUser)

	ic.FlagIssue(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	var issue models.Issue
	require.NoError(t, json.Unmarshal(env.Data, &issue))
	assert.Equal(t, 3, issue.FlaggedCount)
	assert.True(t, issue.IsFlagged)
}

func TestFlagIssueNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{flagErr: utils.NewNotFoundError("Issue not found")}
	ic := newTestController(store, &uploaderFake{})

	c, w := newGinContext(http.MethodPost, "/api/issues/x/flag", nil, "")
	c.Params = gin.Params{{Key: "id", Value: primitive.NewObjectID().Hex()}}
	setSubject(c, primitive.NewObjectID(), models.RoleUser)

	ic.FlagIssue(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteIssue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{}
	ic := newTestController(store, &uploaderFake{})

	c, w := newGinContext(http.MethodDelete, "/api/issues/x", nil, "")
	c.Params = gin.Params{{Key: "id", Value: primitive.NewObjectID().Hex()}}
	setSubject(c, primitive.NewObjectID(), models.RoleAdmin)

	ic.DeleteIssue(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, store.deleteCalls)
}

func TestDeleteIssueNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &issueStoreMock{deleteErr: utils.NewNotFoundError("Issue not found")}
	ic := newTestController(store, &uploaderFake{})

	c, w := newGinContext(http.MethodDelete, "/api/issues/x", nil, "")
	c.Params = gin.Params{{Key: "id", Value: primitive.NewObjectID().Hex()}}
	setSubject(c, primitive.NewObjectID(), models.RoleAdmin)

	ic.DeleteIssue(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
