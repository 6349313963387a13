package rule

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"salescamp-controlplane/pkg/errutil"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Retry reconstructs a failed record's artifact and resubmits it to the
// extraction adapter. The record is always terminal (completed or failed)
// when Retry returns without error.
//
// retry_count increments only when the resubmission actually reaches the
// adapter: a reconstruction failure leaves the record untouched, because it
// signals data corruption rather than a transient service issue and retrying
// cannot help until the user re-uploads the artifact.
//
// No attempt cap is enforced here; limiting manual retries is caller policy.
func (s *Service) Retry(ctx context.Context, ruleID string) (*RuleRecord, error) {
	rec, err := s.repo.GetByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("rule record not found")
		}
		return nil, persistence("failed to load rule record", err)
	}

	if rec.Tombstoned() {
		return nil, invalidTransition("rule was deleted")
	}
	if rec.Status != StatusFailed {
		return nil, invalidTransition("only failed records can be retried")
	}

	if _, err := base64.StdEncoding.DecodeString(rec.ContentB64); err != nil {
		return nil, errutil.UnprocessableEntity("stored artifact cannot be reconstructed, re-upload the original document",
			errutil.WithErr(fmt.Errorf("%w: %v", ErrReconstruction, err)))
	}

	now := time.Now().UTC()
	updated, err := s.transition(ctx, rec.RuleID, StatusFailed, map[string]interface{}{
		"status":        StatusPending,
		"retry_count":   gorm.Expr("retry_count + 1"),
		"last_retry_at": now,
		"error_message": "",
	}, "record is no longer failed")
	if err != nil {
		return nil, err
	}

	s.logger.Info("retrying rule extraction",
		zap.String("rule_id", updated.RuleID),
		zap.Int("retry_count", updated.RetryCount))

	return s.Process(ctx, updated)
}
