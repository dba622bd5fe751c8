package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-advisor-api/internal/models"
	appErrors "github.com/noah-isme/sma-advisor-api/pkg/errors"
)

type sessionRepoStub struct {
	sessions map[string]*models.ChatSession
	messages map[string][]models.ChatMessage
	created  int
}

func newSessionRepoStub() *sessionRepoStub {
	return &sessionRepoStub{
		sessions: map[string]*models.ChatSession{},
		messages: map[string][]models.ChatMessage{},
	}
}

func (s *sessionRepoStub) CreateSession(_ context.Context, session *models.ChatSession) error {
	s.created++
	if session.ID == "" {
		session.ID = "session-created"
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *sessionRepoStub) GetSession(_ context.Context, id string) (*models.ChatSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *session
	return &copied, nil
}

func (s *sessionRepoStub) ListSessions(_ context.Context, ownerID string) ([]models.ChatSession, error) {
	var out []models.ChatSession
	for _, session := range s.sessions {
		if session.OwnerID == ownerID {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (s *sessionRepoStub) AppendMessages(_ context.Context, sessionID string, messages []models.ChatMessage) error {
	s.messages[sessionID] = append(s.messages[sessionID], messages...)
	return nil
}

func (s *sessionRepoStub) ListMessages(_ context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	msgs := s.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (s *sessionRepoStub) DeleteSession(_ context.Context, id string) error {
	delete(s.sessions, id)
	delete(s.messages, id)
	return nil
}

type historyCacheStub struct {
	entries  map[string][]byte
	patterns []string
}

func newHistoryCacheStub() *historyCacheStub {
	return &historyCacheStub{entries: map[string][]byte{}}
}

func (c *historyCacheStub) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *historyCacheStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *historyCacheStub) DeleteByPattern(_ context.Context, pattern string) error {
	c.patterns = append(c.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func sessionClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleTeacher, SchoolID: "school-1"}
}

func TestSessionResolveCreatesWhenIDEmpty(t *testing.T) {
	repo := newSessionRepoStub()
	svc := NewSessionService(repo, nil, 0, nil, nil)

	session, err := svc.Resolve(context.Background(), sessionClaims("user-1"), "", "How many students are enrolled in class 8?")
	require.NoError(t, err)
	require.Equal(t, 1, repo.created)
	require.Equal(t, "user-1", session.OwnerID)
	require.Equal(t, "How many students are enrolled in class 8?", session.Title)
}

func TestSessionResolveTruncatesLongTitle(t *testing.T) {
	repo := newSessionRepoStub()
	svc := NewSessionService(repo, nil, 0, nil, nil)

	opening := strings.Repeat("fee status for every class this term ", 4)
	session, err := svc.Resolve(context.Background(), sessionClaims("user-1"), "", opening)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(session.Title, "…"))
	require.LessOrEqual(t, len([]rune(strings.TrimSuffix(session.Title, "…"))), sessionTitleMax)
}

func TestSessionTitleTruncatesByRunes(t *testing.T) {
	repo := newSessionRepoStub()
	svc := NewSessionService(repo, nil, 0, nil, nil)

	opening := strings.Repeat("कक्षा ८ की फीस स्थिति ", 8)
	session, err := svc.Resolve(context.Background(), sessionClaims("user-1"), "", opening)
	require.NoError(t, err)
	require.True(t, utf8.ValidString(session.Title))
	require.True(t, strings.HasSuffix(session.Title, "…"))
	require.LessOrEqual(t, len([]rune(strings.TrimSuffix(session.Title, "…"))), sessionTitleMax)
}

func TestSessionResolveReturnsExistingOwnSession(t *testing.T) {
	repo := newSessionRepoStub()
	repo.sessions["session-1"] = &models.ChatSession{ID: "session-1", OwnerID: "user-1", Title: "fees"}
	svc := NewSessionService(repo, nil, 0, nil, nil)

	session, err := svc.Resolve(context.Background(), sessionClaims("user-1"), "session-1", "ignored")
	require.NoError(t, err)
	require.Equal(t, "session-1", session.ID)
	require.Equal(t, 0, repo.created)
}

func TestSessionOwnershipHidesOtherUsersSessions(t *testing.T) {
	repo := newSessionRepoStub()
	repo.sessions["session-1"] = &models.ChatSession{ID: "session-1", OwnerID: "user-2"}
	svc := NewSessionService(repo, nil, 0, nil, nil)

	// Another user's session reads as absent, not forbidden, so session IDs
	// cannot be probed for existence. Not even SUPERADMIN crosses this line.
	for _, claims := range []*models.JWTClaims{
		sessionClaims("user-1"),
		&models.JWTClaims{UserID: "user-3", Role: models.RoleSuperAdmin, SchoolID: "school-1"},
	} {
		_, err := svc.Get(context.Background(), claims, "session-1", 20)
		require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	}
}

func TestSessionDeleteOwnerOnly(t *testing.T) {
	repo := newSessionRepoStub()
	repo.sessions["session-1"] = &models.ChatSession{ID: "session-1", OwnerID: "user-1"}
	svc := NewSessionService(repo, nil, 0, nil, nil)

	err := svc.Delete(context.Background(), sessionClaims("user-2"), "session-1")
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	require.Contains(t, repo.sessions, "session-1")

	require.NoError(t, svc.Delete(context.Background(), sessionClaims("user-1"), "session-1"))
	require.NotContains(t, repo.sessions, "session-1")
}

func TestSessionHistoryLimitsToRecentMessages(t *testing.T) {
	repo := newSessionRepoStub()
	repo.messages["session-1"] = []models.ChatMessage{
		{Role: models.MessageRoleUser, Content: "first"},
		{Role: models.MessageRoleAssistant, Content: "second"},
		{Role: models.MessageRoleUser, Content: "third"},
	}
	svc := NewSessionService(repo, nil, 0, nil, nil)

	messages, err := svc.History(context.Background(), "session-1", 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "second", messages[0].Content)
	require.Equal(t, "third", messages[1].Content)
}

func TestSessionAppendInvalidatesEveryCachedLimit(t *testing.T) {
	repo := newSessionRepoStub()
	repo.messages["session-1"] = []models.ChatMessage{
		{Role: models.MessageRoleUser, Content: "first"},
	}
	cache := newHistoryCacheStub()
	svc := NewSessionService(repo, cache, time.Minute, nil, nil)

	// A read at an arbitrary limit populates the cache for that limit.
	messages, err := svc.History(context.Background(), "session-1", 30)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Len(t, cache.entries, 1)

	err = svc.Append(context.Background(), "session-1",
		models.ChatMessage{Role: models.MessageRoleUser, Content: "question"},
		models.ChatMessage{Role: models.MessageRoleAssistant, Content: "answer"},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"advisor:session:session-1:history:*"}, cache.patterns)
	require.Empty(t, cache.entries)

	// The next read at the same limit sees the appended messages.
	messages, err = svc.History(context.Background(), "session-1", 30)
	require.NoError(t, err)
	require.Len(t, messages, 3)
}

func TestSessionAppendStoresExchange(t *testing.T) {
	repo := newSessionRepoStub()
	svc := NewSessionService(repo, nil, 0, nil, nil)

	err := svc.Append(context.Background(), "session-1",
		models.ChatMessage{Role: models.MessageRoleUser, Content: "question"},
		models.ChatMessage{Role: models.MessageRoleAssistant, Content: "answer"},
	)
	require.NoError(t, err)
	require.Len(t, repo.messages["session-1"], 2)
}
