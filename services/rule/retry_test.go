package rule

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func failRecord(t *testing.T, svc *Service, campaignID string) *RuleRecord {
	t.Helper()

	ctx := context.Background()
	rec := submitText(t, svc, campaignID, "rule text")

	rec, err := svc.BeginProcessing(ctx, rec)
	require.NoError(t, err)
	rec, err = svc.FailProcessing(ctx, rec, "extraction service unavailable")
	require.NoError(t, err)
	return rec
}

func TestRetry_RequiresFailedStatus(t *testing.T) {
	svc, _, _ := newTestService(t, &stubExtractor{})
	ctx := context.Background()

	pending := submitText(t, svc, "camp-1", "rule text")
	_, err := svc.Retry(ctx, pending.RuleID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	processing, err := svc.BeginProcessing(ctx, pending)
	require.NoError(t, err)
	_, err = svc.Retry(ctx, processing.RuleID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	completed, err := svc.CompleteProcessing(ctx, processing, []byte(`{}`), "done")
	require.NoError(t, err)
	_, err = svc.Retry(ctx, completed.RuleID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRetry_RejectsTombstones(t *testing.T) {
	svc, _, _ := newTestService(t, &stubExtractor{})
	ctx := context.Background()

	rec := failRecord(t, svc, "camp-1")
	require.NoError(t, svc.DeleteRule(ctx, rec))

	_, err := svc.Retry(ctx, rec.RuleID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRetry_ResubmitsAndCompletes(t *testing.T) {
	ext := &stubExtractor{}
	svc, _, _ := newTestService(t, ext)
	ctx := context.Background()

	rec := failRecord(t, svc, "camp-1")

	terminal, err := svc.Retry(ctx, rec.RuleID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, terminal.Status)
	require.Equal(t, 1, terminal.RetryCount)
	require.NotNil(t, terminal.LastRetryAt)
	require.NotEmpty(t, terminal.StructuredRule)
	require.Empty(t, terminal.ErrorMessage)
	require.Equal(t, 1, ext.calls)
}

func TestRetry_RecordsRepeatedFailure(t *testing.T) {
	ext := &stubExtractor{err: errors.New("still down")}
	svc, _, _ := newTestService(t, ext)
	ctx := context.Background()

	rec := failRecord(t, svc, "camp-1")

	terminal, err := svc.Retry(ctx, rec.RuleID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, terminal.Status)
	require.Equal(t, 1, terminal.RetryCount)
	require.Contains(t, terminal.ErrorMessage, "still down")

	// Manual retries are unbounded; the counter just keeps moving.
	terminal, err = svc.Retry(ctx, rec.RuleID)
	require.NoError(t, err)
	require.Equal(t, 2, terminal.RetryCount)
}

func TestRetry_ReconstructionFailure(t *testing.T) {
	ext := &stubExtractor{}
	svc, db, _ := newTestService(t, ext)
	ctx := context.Background()

	rec := failRecord(t, svc, "camp-1")

	// Corrupt the stored artifact behind the service's back.
	require.NoError(t, db.Model(&RuleRecord{}).
		Where("rule_id = ?", rec.RuleID).
		Update("content_b64", "%%%not-base64%%%").Error)

	_, err := svc.Retry(ctx, rec.RuleID)
	require.ErrorIs(t, err, ErrReconstruction)

	// Data corruption is not an attempt: the record is untouched and the
	// adapter was never called.
	reloaded, getErr := svc.repo.GetByID(ctx, rec.RuleID)
	require.NoError(t, getErr)
	require.Equal(t, StatusFailed, reloaded.Status)
	require.Equal(t, 0, reloaded.RetryCount)
	require.Nil(t, reloaded.LastRetryAt)
	require.Equal(t, 0, ext.calls)
}
