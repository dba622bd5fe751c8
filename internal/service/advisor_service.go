package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-advisor-api/internal/dto"
	"github.com/noah-isme/sma-advisor-api/internal/generator"
	"github.com/noah-isme/sma-advisor-api/internal/models"
	appErrors "github.com/noah-isme/sma-advisor-api/pkg/errors"
)

// bundleSource produces fresh verified-data bundles.
type bundleSource interface {
	Fetch(ctx context.Context, domains []models.DataDomain, scope models.QueryScope) *models.VerifiedDataBundle
}

// conversationStore is the slice of the session service the assembler needs.
type conversationStore interface {
	Resolve(ctx context.Context, claims *models.JWTClaims, id, openingMessage string) (*models.ChatSession, error)
	History(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)
	Append(ctx context.Context, sessionID string, messages ...models.ChatMessage) error
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AdvisorService assembles advisory answers. Every figure in an answer comes
// from a bundle fetched for that query; conversation history is passed to the
// generator for tone and continuity only.
type AdvisorService struct {
	fetcher   bundleSource
	sessions  conversationStore
	generator generator.Client
	guardrail *GuardrailFilter
	authz     Authorizer
	audit     auditRecorder
	metrics   *MetricsService
	logger    *zap.Logger

	minResponseTime time.Duration
	historyLimit    int

	now   func() time.Time
	sleep func(time.Duration)
}

// NewAdvisorService constructs the assembler.
func NewAdvisorService(
	fetcher bundleSource,
	sessions conversationStore,
	gen generator.Client,
	guardrail *GuardrailFilter,
	authz Authorizer,
	audit auditRecorder,
	metrics *MetricsService,
	minResponseTime time.Duration,
	historyLimit int,
	logger *zap.Logger,
) *AdvisorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if guardrail == nil {
		guardrail = NewGuardrailFilter()
	}
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &AdvisorService{
		fetcher:         fetcher,
		sessions:        sessions,
		generator:       gen,
		guardrail:       guardrail,
		authz:           authz,
		audit:           audit,
		metrics:         metrics,
		logger:          logger,
		minResponseTime: minResponseTime,
		historyLimit:    historyLimit,
		now:             time.Now,
		sleep:           time.Sleep,
	}
}

// Answer runs one advisory query end to end: classify, fetch verified data,
// generate, filter, persist the exchange. The reply is never released before
// minResponseTime has elapsed, so a refused query is indistinguishable in
// timing from a generated one.
func (s *AdvisorService) Answer(ctx context.Context, claims *models.JWTClaims, req dto.QueryRequest) (*dto.QueryResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !s.authz.HasCapability(claims, claims.SchoolID, CapAdvisorQuery) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "advisory queries are not permitted for this account")
	}

	start := s.now()

	session, err := s.sessions.Resolve(ctx, claims, req.SessionID, req.Message)
	if err != nil {
		return nil, err
	}

	history, err := s.sessions.History(ctx, session.ID, s.historyLimit)
	if err != nil {
		// Continuity is optional; verified data is not. Answer without it.
		s.logger.Warn("history unavailable, answering without it",
			zap.String("session_id", session.ID), zap.Error(err))
		history = nil
	}

	domains := ClassifyDomains(req.Message)
	bundle := s.fetcher.Fetch(ctx, domains, models.QueryScope{SchoolID: claims.SchoolID})

	answer, err := s.compose(ctx, bundle, history, req.Message)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Append(ctx, session.ID,
		models.ChatMessage{Role: models.MessageRoleUser, Content: req.Message},
		models.ChatMessage{Role: models.MessageRoleAssistant, Content: answer},
	); err != nil {
		// The answer is already verified; a lost history write degrades
		// continuity, not correctness.
		s.logger.Error("failed to persist exchange", zap.String("session_id", session.ID), zap.Error(err))
	}

	s.recordAudit(ctx, claims, session.ID)
	s.holdFloor(ctx, start)

	return &dto.QueryResponse{Message: answer, SessionID: session.ID}, nil
}

// compose turns a bundle and question into released answer text. Every empty
// domain is answered here with the fixed refusal sentence; the generator only
// ever speaks for domains that carry records.
func (s *AdvisorService) compose(ctx context.Context, bundle *models.VerifiedDataBundle, history []models.ChatMessage, question string) (string, error) {
	if bundle.AllEmpty() {
		// Nothing verifiable: the generator is never consulted.
		s.metrics.RecordQuery(QueryOutcomeRefused)
		return RefusalSentence, nil
	}

	var refusals []string
	for _, domain := range bundle.Domains() {
		if bundle.DomainEmpty(domain) {
			refusals = append(refusals, domain.Label()+": "+RefusalSentence)
		}
	}

	genReq := generator.Request{
		Policy:   behaviourPolicy,
		Context:  renderBundle(bundle),
		History:  toTurns(history),
		Question: question,
	}

	text, err := s.generateVerified(ctx, genReq)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrGuardrailRejected) {
			s.metrics.RecordQuery(QueryOutcomeFallback)
			s.logger.Warn("guardrail rejected retry, releasing fallback", zap.Error(err))
			return joinAnswer(refusals, GuardrailFallbackSentence), nil
		}
		s.metrics.RecordQuery(QueryOutcomeFailed)
		return "", err
	}
	s.metrics.RecordQuery(QueryOutcomeGenerated)
	return joinAnswer(refusals, text), nil
}

// generateVerified invokes the generator and vets the output, retrying once
// with a corrective instruction. A second rejection surfaces as
// ErrGuardrailRejected, which the caller degrades to the fixed fallback
// sentence rather than propagating.
func (s *AdvisorService) generateVerified(ctx context.Context, req generator.Request) (string, error) {
	text, err := s.generate(ctx, req)
	if err != nil {
		return "", err
	}
	ok, match := s.guardrail.Check(text)
	if ok {
		return text, nil
	}
	s.metrics.RecordGuardrailRejection()
	s.logger.Warn("guardrail rejected answer, retrying once", zap.String("matched", match))

	req.Corrective = correctiveInstruction
	text, err = s.generate(ctx, req)
	if err != nil {
		return "", err
	}
	if ok, match = s.guardrail.Check(text); ok {
		return text, nil
	}
	s.metrics.RecordGuardrailRejection()
	return "", appErrors.Clone(appErrors.ErrGuardrailRejected, fmt.Sprintf("generated answer contained banned pattern %q", match))
}

func joinAnswer(refusals []string, text string) string {
	if len(refusals) == 0 {
		return text
	}
	return strings.Join(append(refusals, text), "\n")
}

// generate wraps the generator call with timing and error normalisation.
func (s *AdvisorService) generate(ctx context.Context, req generator.Request) (string, error) {
	started := s.now()
	text, err := s.generator.Generate(ctx, req)
	s.metrics.ObserveGeneration(s.now().Sub(started))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrGenerationFailed.Code, appErrors.ErrGenerationFailed.Status, appErrors.ErrGenerationFailed.Message)
	}
	return text, nil
}

func (s *AdvisorService) recordAudit(ctx context.Context, claims *models.JWTClaims, sessionID string) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionQuery,
		Resource:   "advisor_session",
		ResourceID: &sessionID,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", zap.Error(err))
	}
}

// holdFloor delays release until minResponseTime has elapsed since start.
func (s *AdvisorService) holdFloor(ctx context.Context, start time.Time) {
	if s.minResponseTime <= 0 {
		return
	}
	remaining := s.minResponseTime - s.now().Sub(start)
	if remaining <= 0 {
		return
	}
	if ctx.Err() != nil {
		return
	}
	s.sleep(remaining)
}

func toTurns(history []models.ChatMessage) []generator.Turn {
	if len(history) == 0 {
		return nil
	}
	turns := make([]generator.Turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, generator.Turn{Role: string(msg.Role), Content: msg.Content})
	}
	return turns
}
