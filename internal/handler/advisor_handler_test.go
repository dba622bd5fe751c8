package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-advisor-api/internal/generator"
	"github.com/noah-isme/sma-advisor-api/internal/middleware"
	"github.com/noah-isme/sma-advisor-api/internal/models"
	"github.com/noah-isme/sma-advisor-api/internal/service"
)

type fakeBundleSource struct {
	bundle *models.VerifiedDataBundle
}

func (f *fakeBundleSource) Fetch(context.Context, []models.DataDomain, models.QueryScope) *models.VerifiedDataBundle {
	return f.bundle
}

type fakeConversations struct {
	appended []models.ChatMessage
}

func (f *fakeConversations) Resolve(_ context.Context, claims *models.JWTClaims, id, _ string) (*models.ChatSession, error) {
	if id == "" {
		id = "session-new"
	}
	return &models.ChatSession{ID: id, OwnerID: claims.UserID}, nil
}

func (f *fakeConversations) History(context.Context, string, int) ([]models.ChatMessage, error) {
	return nil, nil
}

func (f *fakeConversations) Append(_ context.Context, _ string, messages ...models.ChatMessage) error {
	f.appended = append(f.appended, messages...)
	return nil
}

func advisorTestHandler(bundle *models.VerifiedDataBundle, gen generator.Client) *AdvisorHandler {
	svc := service.NewAdvisorService(
		&fakeBundleSource{bundle: bundle},
		&fakeConversations{},
		gen,
		nil,
		service.NewRoleAuthorizer(),
		nil,
		nil,
		0,
		0,
		nil,
	)
	return NewAdvisorHandler(svc)
}

func adminContext(rec *httptest.ResponseRecorder, body string) *gin.Context {
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/advisor/query", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin, SchoolID: "school-1"})
	return c
}

func TestAdvisorHandlerRejectsEmptyMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := advisorTestHandler(nil, nil)

	rec := httptest.NewRecorder()
	c := adminContext(rec, `{"message":"   "}`)

	handler.Query(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdvisorHandlerRejectsOverlongMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := advisorTestHandler(nil, nil)

	rec := httptest.NewRecorder()
	c := adminContext(rec, `{"message":"`+strings.Repeat("a", maxQueryLength+1)+`"}`)

	handler.Query(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdvisorHandlerRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := advisorTestHandler(&models.VerifiedDataBundle{
		Enrollment: &models.EnrollmentSection{TotalStudents: 342},
	}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/advisor/query", strings.NewReader(`{"message":"how many students?"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Query(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdvisorHandlerAnswers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gen := generator.Func(func(context.Context, generator.Request) (string, error) {
		return "There are 342 students enrolled.", nil
	})
	handler := advisorTestHandler(&models.VerifiedDataBundle{
		Enrollment: &models.EnrollmentSection{TotalStudents: 342, ActiveStudents: 342},
	}, gen)

	rec := httptest.NewRecorder()
	c := adminContext(rec, `{"message":"how many students are enrolled?"}`)

	handler.Query(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "There are 342 students enrolled.", envelope.Data["message"])
	assert.Equal(t, "session-new", envelope.Data["session_id"])
}

func TestAdvisorHandlerRefusesWhenNothingVerifiable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := advisorTestHandler(&models.VerifiedDataBundle{
		Enrollment: &models.EnrollmentSection{Empty: true},
		Attendance: &models.AttendanceSection{Empty: true},
		Fees:       &models.FeesSection{Empty: true},
		Staff:      &models.StaffSection{Empty: true},
	}, nil)

	rec := httptest.NewRecorder()
	c := adminContext(rec, `{"message":"how many students are enrolled?"}`)

	handler.Query(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, service.RefusalSentence, envelope.Data["message"])
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
