package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-advisor-api/internal/dto"
	"github.com/noah-isme/sma-advisor-api/internal/generator"
	"github.com/noah-isme/sma-advisor-api/internal/models"
	appErrors "github.com/noah-isme/sma-advisor-api/pkg/errors"
)

type fetcherStub struct {
	bundle  *models.VerifiedDataBundle
	domains []models.DataDomain
	scope   models.QueryScope
}

func (f *fetcherStub) Fetch(_ context.Context, domains []models.DataDomain, scope models.QueryScope) *models.VerifiedDataBundle {
	f.domains = domains
	f.scope = scope
	return f.bundle
}

type convStub struct {
	session  *models.ChatSession
	history  []models.ChatMessage
	appended []models.ChatMessage
}

func (c *convStub) Resolve(_ context.Context, claims *models.JWTClaims, id, opening string) (*models.ChatSession, error) {
	if c.session == nil {
		c.session = &models.ChatSession{ID: "session-1", OwnerID: claims.UserID, Title: opening}
	}
	return c.session, nil
}

func (c *convStub) History(context.Context, string, int) ([]models.ChatMessage, error) {
	return c.history, nil
}

func (c *convStub) Append(_ context.Context, _ string, messages ...models.ChatMessage) error {
	c.appended = append(c.appended, messages...)
	return nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func emptyBundle() *models.VerifiedDataBundle {
	return &models.VerifiedDataBundle{
		AsOf:       time.Now().UTC(),
		Enrollment: &models.EnrollmentSection{Empty: true},
		Fees:       &models.FeesSection{Empty: true},
	}
}

func populatedBundle() *models.VerifiedDataBundle {
	return &models.VerifiedDataBundle{
		AsOf: time.Now().UTC(),
		Enrollment: &models.EnrollmentSection{
			TotalStudents:  342,
			ActiveStudents: 330,
		},
	}
}

func newAdvisorForTest(fetcher *fetcherStub, conv *convStub, gen generator.Client) *AdvisorService {
	svc := NewAdvisorService(fetcher, conv, gen, NewGuardrailFilter(),
		NewRoleAuthorizer(), &auditStub{}, nil, 0, 20, nil)
	svc.sleep = func(time.Duration) {}
	return svc
}

func TestAnswerRefusesWhenNothingVerifiable(t *testing.T) {
	generatorInvoked := false
	gen := generator.Func(func(context.Context, generator.Request) (string, error) {
		generatorInvoked = true
		return "should never run", nil
	})
	conv := &convStub{}
	svc := newAdvisorForTest(&fetcherStub{bundle: emptyBundle()}, conv, gen)

	res, err := svc.Answer(context.Background(), claimsFor(models.RoleTeacher, "school-1"), dto.QueryRequest{
		Message: "How many students are enrolled?",
	})
	require.NoError(t, err)
	require.Equal(t, RefusalSentence, res.Message)
	require.False(t, generatorInvoked)

	// The refused exchange is still recorded on the session.
	require.Len(t, conv.appended, 2)
	require.Equal(t, RefusalSentence, conv.appended[1].Content)
}

func TestAnswerRefusesEmptyDomainInMixedQuery(t *testing.T) {
	bundle := &models.VerifiedDataBundle{
		AsOf:  time.Now().UTC(),
		Fees:  &models.FeesSection{Expected: 100000, Collected: 90000, Outstanding: 10000},
		Staff: &models.StaffSection{Empty: true},
	}
	var captured generator.Request
	gen := generator.Func(func(_ context.Context, req generator.Request) (string, error) {
		captured = req
		return "Fees collected are ₹900.00 of ₹1,000.00 expected.", nil
	})
	svc := newAdvisorForTest(&fetcherStub{bundle: bundle}, &convStub{}, gen)

	res, err := svc.Answer(context.Background(), claimsFor(models.RoleAdmin, "school-1"), dto.QueryRequest{
		Message: "What are the fee totals and how many staff are on payroll?",
	})
	require.NoError(t, err)

	// The empty domain is refused verbatim by the assembler; the generated
	// text covers only the populated one.
	require.Contains(t, res.Message, "Staff: "+RefusalSentence)
	require.Contains(t, res.Message, "Fees collected are ₹900.00")

	// The generator never sees the empty domain, so it cannot invent a
	// figure for it.
	require.NotContains(t, captured.Context, "Staff")
}

func TestAnswerForbiddenWithoutCapability(t *testing.T) {
	gen := generator.Func(func(context.Context, generator.Request) (string, error) {
		return "", nil
	})
	svc := newAdvisorForTest(&fetcherStub{bundle: populatedBundle()}, &convStub{}, gen)

	_, err := svc.Answer(context.Background(), claimsFor(models.UserRole("GUEST"), "school-1"), dto.QueryRequest{
		Message: "How many students are enrolled?",
	})
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestAnswerScopesFetchToCallerSchool(t *testing.T) {
	fetcher := &fetcherStub{bundle: populatedBundle()}
	gen := generator.Func(func(context.Context, generator.Request) (string, error) {
		return "There are 342 students enrolled.", nil
	})
	svc := newAdvisorForTest(fetcher, &convStub{}, gen)

	_, err := svc.Answer(context.Background(), claimsFor(models.RoleTeacher, "school-7"), dto.QueryRequest{
		Message: "How many students are enrolled?",
	})
	require.NoError(t, err)
	require.Equal(t, "school-7", fetcher.scope.SchoolID)
	require.Equal(t, []models.DataDomain{models.DomainEnrollment}, fetcher.domains)
}

func TestAnswerGuardrailRetrySucceeds(t *testing.T) {
	var requests []generator.Request
	gen := generator.Func(func(_ context.Context, req generator.Request) (string, error) {
		requests = append(requests, req)
		if req.Corrective == "" {
			return "There are approximately 340 students.", nil
		}
		return "There are 342 students enrolled, of which 330 are active.", nil
	})
	svc := newAdvisorForTest(&fetcherStub{bundle: populatedBundle()}, &convStub{}, gen)

	res, err := svc.Answer(context.Background(), claimsFor(models.RoleTeacher, "school-1"), dto.QueryRequest{
		Message: "How many students are enrolled?",
	})
	require.NoError(t, err)
	require.Equal(t, "There are 342 students enrolled, of which 330 are active.", res.Message)
	require.Len(t, requests, 2)
	require.Empty(t, requests[0].Corrective)
	require.NotEmpty(t, requests[1].Corrective)
}

func TestAnswerGuardrailFallbackAfterTwoRejections(t *testing.T) {
	calls := 0
	gen := generator.Func(func(context.Context, generator.Request) (string, error) {
		calls++
		return "It is probably around 340 students.", nil
	})
	svc := newAdvisorForTest(&fetcherStub{bundle: populatedBundle()}, &convStub{}, gen)

	res, err := svc.Answer(context.Background(), claimsFor(models.RoleTeacher, "school-1"), dto.QueryRequest{
		Message: "How many students are enrolled?",
	})
	require.NoError(t, err)
	require.Equal(t, GuardrailFallbackSentence, res.Message)
	require.Equal(t, 2, calls)
}

func TestGenerateVerifiedCarriesGuardrailCode(t *testing.T) {
	gen := generator.Func(func(context.Context, generator.Request) (string, error) {
		return "Roughly 340 students, more or less.", nil
	})
	svc := newAdvisorForTest(&fetcherStub{bundle: populatedBundle()}, &convStub{}, gen)

	_, err := svc.generateVerified(context.Background(), generator.Request{Question: "How many students?"})
	require.True(t, appErrors.Is(err, appErrors.ErrGuardrailRejected))
}

func TestAnswerGenerationFailure(t *testing.T) {
	gen := generator.Func(func(context.Context, generator.Request) (string, error) {
		return "", errors.New("upstream timeout")
	})
	conv := &convStub{}
	svc := newAdvisorForTest(&fetcherStub{bundle: populatedBundle()}, conv, gen)

	_, err := svc.Answer(context.Background(), claimsFor(models.RoleTeacher, "school-1"), dto.QueryRequest{
		Message: "How many students are enrolled?",
	})
	require.True(t, appErrors.Is(err, appErrors.ErrGenerationFailed))
	require.Empty(t, conv.appended)
}

func TestAnswerPassesHistoryAsTurns(t *testing.T) {
	var captured generator.Request
	gen := generator.Func(func(_ context.Context, req generator.Request) (string, error) {
		captured = req
		return "There are 342 students enrolled.", nil
	})
	conv := &convStub{
		session: &models.ChatSession{ID: "session-9", OwnerID: "user-1"},
		history: []models.ChatMessage{
			{Role: models.MessageRoleUser, Content: "Hello"},
			{Role: models.MessageRoleAssistant, Content: "Hello, how can I help?"},
		},
	}
	svc := newAdvisorForTest(&fetcherStub{bundle: populatedBundle()}, conv, gen)

	res, err := svc.Answer(context.Background(), claimsFor(models.RoleTeacher, "school-1"), dto.QueryRequest{
		Message:   "How many students are enrolled?",
		SessionID: "session-9",
	})
	require.NoError(t, err)
	require.Equal(t, "session-9", res.SessionID)
	require.Len(t, captured.History, 2)
	require.Equal(t, "assistant", captured.History[1].Role)
	require.Contains(t, captured.Context, "342")
}

func TestAnswerHoldsMinimumResponseTime(t *testing.T) {
	gen := generator.Func(func(context.Context, generator.Request) (string, error) {
		return "There are 342 students enrolled.", nil
	})
	svc := NewAdvisorService(&fetcherStub{bundle: populatedBundle()}, &convStub{}, gen,
		NewGuardrailFilter(), NewRoleAuthorizer(), &auditStub{}, nil, 500*time.Millisecond, 20, nil)

	fixed := time.Now()
	svc.now = func() time.Time { return fixed }
	var slept time.Duration
	svc.sleep = func(d time.Duration) { slept = d }

	_, err := svc.Answer(context.Background(), claimsFor(models.RoleTeacher, "school-1"), dto.QueryRequest{
		Message: "How many students are enrolled?",
	})
	require.NoError(t, err)
	require.Equal(t, 500*time.Millisecond, slept)
}
