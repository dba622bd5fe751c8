package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-advisor-api/internal/middleware"
	"github.com/noah-isme/sma-advisor-api/internal/models"
	"github.com/noah-isme/sma-advisor-api/internal/service"
)

type fakeSessionStore struct {
	sessions map[string]*models.ChatSession
	messages map[string][]models.ChatMessage
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: map[string]*models.ChatSession{},
		messages: map[string][]models.ChatMessage{},
	}
}

func (f *fakeSessionStore) CreateSession(_ context.Context, session *models.ChatSession) error {
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionStore) GetSession(_ context.Context, id string) (*models.ChatSession, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionStore) ListSessions(_ context.Context, ownerID string) ([]models.ChatSession, error) {
	var out []models.ChatSession
	for _, session := range f.sessions {
		if session.OwnerID == ownerID {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) AppendMessages(_ context.Context, sessionID string, messages []models.ChatMessage) error {
	f.messages[sessionID] = append(f.messages[sessionID], messages...)
	return nil
}

func (f *fakeSessionStore) ListMessages(_ context.Context, sessionID string, _ int) ([]models.ChatMessage, error) {
	return f.messages[sessionID], nil
}

func (f *fakeSessionStore) DeleteSession(_ context.Context, id string) error {
	delete(f.sessions, id)
	delete(f.messages, id)
	return nil
}

func sessionTestHandler(store *fakeSessionStore) *SessionHandler {
	svc := service.NewSessionService(store, nil, 0, nil, nil)
	return NewSessionHandler(svc)
}

func sessionContext(rec *httptest.ResponseRecorder, method, target, userID string) *gin.Context {
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: models.RoleTeacher, SchoolID: "school-1"})
	return c
}

func TestSessionHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeSessionStore()
	store.sessions["session-1"] = &models.ChatSession{ID: "session-1", OwnerID: "user-1", Title: "fees", LastUpdated: time.Now()}
	store.sessions["session-2"] = &models.ChatSession{ID: "session-2", OwnerID: "user-2", Title: "staff"}
	handler := sessionTestHandler(store)

	rec := httptest.NewRecorder()
	c := sessionContext(rec, http.MethodGet, "/advisor/sessions", "user-1")

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data []map[string]interface{} `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 1)
	assert.Equal(t, "session-1", envelope.Data[0]["id"])
}

func TestSessionHandlerGetWithMessages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeSessionStore()
	store.sessions["session-1"] = &models.ChatSession{ID: "session-1", OwnerID: "user-1", Title: "fees"}
	store.messages["session-1"] = []models.ChatMessage{
		{ID: "msg-1", SessionID: "session-1", Role: models.MessageRoleUser, Content: "fee status?"},
	}
	handler := sessionTestHandler(store)

	rec := httptest.NewRecorder()
	c := sessionContext(rec, http.MethodGet, "/advisor/sessions/session-1", "user-1")
	c.Params = gin.Params{{Key: "id", Value: "session-1"}}

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	messages, ok := envelope.Data["messages"].([]interface{})
	assert.True(t, ok)
	assert.Len(t, messages, 1)
}

func TestSessionHandlerGetOtherUsersSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeSessionStore()
	store.sessions["session-1"] = &models.ChatSession{ID: "session-1", OwnerID: "user-2"}
	handler := sessionTestHandler(store)

	rec := httptest.NewRecorder()
	c := sessionContext(rec, http.MethodGet, "/advisor/sessions/session-1", "user-1")
	c.Params = gin.Params{{Key: "id", Value: "session-1"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeSessionStore()
	store.sessions["session-1"] = &models.ChatSession{ID: "session-1", OwnerID: "user-1"}
	handler := sessionTestHandler(store)

	rec := httptest.NewRecorder()
	c := sessionContext(rec, http.MethodDelete, "/advisor/sessions/session-1", "user-1")
	c.Params = gin.Params{{Key: "id", Value: "session-1"}}

	handler.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, store.sessions, "session-1")
}
