package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-advisor-api/internal/models"
	appErrors "github.com/noah-isme/sma-advisor-api/pkg/errors"
)

const sessionTitleMax = 60

// sessionStore is the subset of the session repository the service needs.
type sessionStore interface {
	CreateSession(ctx context.Context, session *models.ChatSession) error
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)
	ListSessions(ctx context.Context, ownerID string) ([]models.ChatSession, error)
	AppendMessages(ctx context.Context, sessionID string, messages []models.ChatMessage) error
	ListMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)
	DeleteSession(ctx context.Context, id string) error
}

// historyCache is the slice of the cache repository the service needs.
// Invalidation is by pattern because history is cached per requested limit.
type historyCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// SessionService manages conversation sessions. Sessions hold dialogue
// history only and are strictly private to their owner; they are never a
// source of record figures.
type SessionService struct {
	repo     sessionStore
	cache    historyCache
	cacheTTL time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewSessionService constructs the service.
func NewSessionService(repo sessionStore, cache historyCache, cacheTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &SessionService{repo: repo, cache: cache, cacheTTL: cacheTTL, metrics: metrics, logger: logger}
}

// Resolve returns the caller's session by ID, or creates a fresh one titled
// from the opening message when id is empty.
func (s *SessionService) Resolve(ctx context.Context, claims *models.JWTClaims, id, openingMessage string) (*models.ChatSession, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if id == "" {
		session := &models.ChatSession{
			OwnerID: claims.UserID,
			Title:   sessionTitle(openingMessage),
		}
		if err := s.repo.CreateSession(ctx, session); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
		}
		return session, nil
	}
	return s.owned(ctx, claims, id)
}

// Get returns a session with its recent messages. Only the owner may read it.
func (s *SessionService) Get(ctx context.Context, claims *models.JWTClaims, id string, limit int) (*models.SessionWithMessages, error) {
	session, err := s.owned(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.History(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	return &models.SessionWithMessages{ChatSession: *session, Messages: messages}, nil
}

// List returns the caller's sessions, most recently active first.
func (s *SessionService) List(ctx context.Context, claims *models.JWTClaims) ([]models.ChatSession, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	sessions, err := s.repo.ListSessions(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// Delete removes a session and its history. Only the owner may delete it.
func (s *SessionService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	if _, err := s.owned(ctx, claims, id); err != nil {
		return err
	}
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	s.invalidateHistory(ctx, id)
	return nil
}

// History returns the session's recent messages in chronological order,
// served from cache when possible.
func (s *SessionService) History(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	key := historyCacheKey(sessionID, limit)
	if s.cache != nil {
		var cached []models.ChatMessage
		started := time.Now()
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(started))
		if err == nil {
			return cached, nil
		}
		if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("session history cache read failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	messages, err := s.repo.ListMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session history")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, messages, s.cacheTTL); err != nil {
			s.logger.Warn("session history cache write failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return messages, nil
}

// Append records a completed user/assistant exchange on the session.
func (s *SessionService) Append(ctx context.Context, sessionID string, messages ...models.ChatMessage) error {
	if err := s.repo.AppendMessages(ctx, sessionID, messages); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append messages")
	}
	s.invalidateHistory(ctx, sessionID)
	return nil
}

func (s *SessionService) owned(ctx context.Context, claims *models.JWTClaims, id string) (*models.ChatSession, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	// Ownership is absolute: even SUPERADMIN cannot read another user's
	// conversation.
	if session.OwnerID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	return session, nil
}

func (s *SessionService) invalidateHistory(ctx context.Context, sessionID string) {
	if s.cache == nil {
		return
	}
	// History is cached per requested limit, so invalidation must cover
	// every limit ever read, not an enumerated few.
	pattern := fmt.Sprintf("advisor:session:%s:history:*", sessionID)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("session history cache invalidation failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func historyCacheKey(sessionID string, limit int) string {
	return fmt.Sprintf("advisor:session:%s:history:%d", sessionID, limit)
}

func sessionTitle(message string) string {
	title := strings.TrimSpace(message)
	if title == "" {
		return "New conversation"
	}
	// Truncate by runes so a multibyte opening message cannot be cut
	// mid-character.
	if runes := []rune(title); len(runes) > sessionTitleMax {
		title = strings.TrimSpace(string(runes[:sessionTitleMax])) + "…"
	}
	return title
}
