package rule

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"salescamp-controlplane/pkg/errutil"
	"salescamp-controlplane/services/notify"
	"salescamp-controlplane/services/testutil"
)

type stubExtractor struct {
	extraction *Extraction
	err        error
	calls      int
}

func (s *stubExtractor) Extract(ctx context.Context, content []byte, meta CampaignContext) (*Extraction, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.extraction != nil {
		return s.extraction, nil
	}
	return &Extraction{
		StructuredRule: json.RawMessage(`{"goal": 100}`),
		Summary:        "participants reaching 100% earn the base prize",
	}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	titles := make([]string, 0, len(r.events))
	for _, e := range r.events {
		titles = append(titles, e.Title)
	}
	return titles
}

func newTestService(t *testing.T, ext Extractor) (*Service, *gorm.DB, *recordingNotifier) {
	t.Helper()

	db := testutil.NewTestDB(t, &RuleRecord{})
	repo := NewRepository(db)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	svc := NewService(ServiceParams{
		Repository: repo,
		Extractor:  ext,
		Notifier:   notifier,
		Node:       node,
		Logger:     zap.NewNop(),
	})

	return svc, db, notifier
}

func submitText(t *testing.T, svc *Service, campaignID, text string) *RuleRecord {
	t.Helper()

	rec, err := svc.Submit(context.Background(), SubmitParams{
		CampaignID:   campaignID,
		CampaignName: "Q3 Sales Push",
		RawText:      text,
	})
	require.NoError(t, err)
	return rec
}

func TestService_SubmitAndGetActiveRule(t *testing.T) {
	svc, _, _ := newTestService(t, &stubExtractor{})
	ctx := context.Background()

	rec := submitText(t, svc, "camp-1", "pay 500 for 100% of target")
	require.Equal(t, StatusPending, rec.Status)
	require.Equal(t, 0, rec.RetryCount)
	require.Nil(t, rec.LastRetryAt)
	require.NotEmpty(t, rec.ContentB64)

	active, err := svc.GetActiveRule(ctx, "camp-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, rec.RuleID, active.RuleID)
	require.Equal(t, StatusPending, active.Status)
	require.Equal(t, 0, active.RetryCount)
}

func TestService_SubmitValidation(t *testing.T) {
	svc, _, _ := newTestService(t, &stubExtractor{})
	ctx := context.Background()

	_, err := svc.Submit(ctx, SubmitParams{CampaignID: "camp-1"})
	require.Error(t, err)

	big := make([]byte, maxDocumentSize+1)
	_, err = svc.Submit(ctx, SubmitParams{
		CampaignID: "camp-1",
		MimeType:   "text/plain",
		Content:    big,
	})
	require.Error(t, err)

	// Type-policy breaches are validation failures like the size check.
	_, err = svc.Submit(ctx, SubmitParams{
		CampaignID: "camp-1",
		MimeType:   "image/png",
		Content:    []byte("not a document"),
	})
	require.Error(t, err)

	var base errutil.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, errutil.StatusValidationFailed, base.Code)

	_, err = svc.Submit(ctx, SubmitParams{RawText: "missing campaign"})
	require.Error(t, err)
}

func TestService_LifecycleTransitions(t *testing.T) {
	svc, _, _ := newTestService(t, &stubExtractor{})
	ctx := context.Background()

	rec := submitText(t, svc, "camp-1", "tiered payout rule")

	rec, err := svc.BeginProcessing(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, rec.Status)

	// Pending guard holds once the record moved on.
	_, err = svc.BeginProcessing(ctx, rec)
	require.ErrorIs(t, err, ErrInvalidTransition)

	rec, err = svc.CompleteProcessing(ctx, rec, json.RawMessage(`{"goal":120}`), "goal is 120%")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, rec.Status)
	require.JSONEq(t, `{"goal":120}`, string(rec.StructuredRule))
	require.Equal(t, "goal is 120%", rec.ProcessedSummary)
	require.Empty(t, rec.ErrorMessage)

	_, err = svc.CompleteProcessing(ctx, rec, json.RawMessage(`{}`), "again")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestService_FailProcessingIsNotIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t, &stubExtractor{})
	ctx := context.Background()

	rec := submitText(t, svc, "camp-1", "rule text")

	rec, err := svc.BeginProcessing(ctx, rec)
	require.NoError(t, err)

	rec, err = svc.FailProcessing(ctx, rec, "extraction service unavailable")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, rec.Status)
	require.Equal(t, "extraction service unavailable", rec.ErrorMessage)
	require.Equal(t, 0, rec.RetryCount)

	_, err = svc.FailProcessing(ctx, rec, "second failure")
	require.ErrorIs(t, err, ErrInvalidTransition)

	reloaded, err := svc.repo.GetByID(ctx, rec.RuleID)
	require.NoError(t, err)
	require.Equal(t, "extraction service unavailable", reloaded.ErrorMessage)
}

func TestService_ProcessDrivesToCompleted(t *testing.T) {
	ext := &stubExtractor{}
	svc, _, notifier := newTestService(t, ext)
	ctx := context.Background()

	rec := submitText(t, svc, "camp-1", "rule text")

	terminal, err := svc.Process(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, terminal.Status)
	require.Equal(t, 1, ext.calls)
	require.Contains(t, notifier.titles(), "Rule processed")
}

func TestService_ProcessRecordsExtractionFailure(t *testing.T) {
	ext := &stubExtractor{err: errors.New("upstream timed out")}
	svc, _, notifier := newTestService(t, ext)
	ctx := context.Background()

	rec := submitText(t, svc, "camp-1", "rule text")

	terminal, err := svc.Process(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, terminal.Status)
	require.Contains(t, terminal.ErrorMessage, "upstream timed out")
	require.Equal(t, 0, terminal.RetryCount)
	require.Contains(t, notifier.titles(), "Rule processing failed")
}

func TestService_DeleteRuleTombstones(t *testing.T) {
	svc, _, notifier := newTestService(t, &stubExtractor{})
	ctx := context.Background()

	rec := submitText(t, svc, "camp-1", "rule text")

	require.NoError(t, svc.DeleteRule(ctx, rec))

	active, err := svc.GetActiveRule(ctx, "camp-1")
	require.NoError(t, err)
	require.Nil(t, active)

	reloaded, err := svc.repo.GetByID(ctx, rec.RuleID)
	require.NoError(t, err)
	require.True(t, reloaded.Tombstoned())
	require.Equal(t, StatusFailed, reloaded.Status)
	require.Equal(t, TombstoneMessage, reloaded.ErrorMessage)

	require.Contains(t, notifier.titles(), "Rule deleted")
}

func TestService_GetActiveRulePicksMostRecent(t *testing.T) {
	svc, _, _ := newTestService(t, &stubExtractor{})
	ctx := context.Background()

	first := submitText(t, svc, "camp-1", "first rule")
	second := submitText(t, svc, "camp-1", "corrected rule")

	active, err := svc.GetActiveRule(ctx, "camp-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, second.RuleID, active.RuleID)

	// Deleting the newest record falls back to the older one.
	require.NoError(t, svc.DeleteRule(ctx, second))

	active, err = svc.GetActiveRule(ctx, "camp-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, first.RuleID, active.RuleID)
}
