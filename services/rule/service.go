package rule

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"salescamp-controlplane/internal/config"
	"salescamp-controlplane/pkg/errutil"
	"salescamp-controlplane/services/notify"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// maxDocumentSize bounds a rule document upload.
	maxDocumentSize = 10 << 20

	defaultExtractTimeout = 60 * time.Second
)

var allowedMimeTypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"text/plain": {},
}

// Enqueuer queues background work; satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Service owns the rule lifecycle state machine. All record mutation goes
// through its transition methods.
type Service struct {
	repo           Repository
	extractor      Extractor
	notifier       notify.Notifier
	node           *snowflake.Node
	logger         *zap.Logger
	tasks          Enqueuer
	extractTimeout time.Duration
}

// ServiceParams defines dependencies for Service construction.
type ServiceParams struct {
	fx.In

	Repository Repository
	Extractor  Extractor
	Notifier   notify.Notifier `optional:"true"`
	Node       *snowflake.Node
	Logger     *zap.Logger    `optional:"true"`
	Tasks      *asynq.Client  `optional:"true"`
	Config     *config.Config `optional:"true"`
}

// NewService constructs a new Service instance.
func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if p.Repository == nil {
		panic("rule service requires repository dependency")
	}
	if p.Extractor == nil {
		panic("rule service requires extractor dependency")
	}

	var notifier notify.Notifier = notify.Nop{}
	if p.Notifier != nil {
		notifier = p.Notifier
	}

	timeout := defaultExtractTimeout
	if p.Config != nil && p.Config.Extractor.Timeout > 0 {
		timeout = p.Config.Extractor.Timeout
	}

	svc := &Service{
		repo:           p.Repository,
		extractor:      p.Extractor,
		notifier:       notifier,
		node:           p.Node,
		logger:         logger,
		extractTimeout: timeout,
	}
	if p.Tasks != nil {
		svc.tasks = p.Tasks
	}
	return svc
}

// SubmitParams describes a rule submission, either a document or free text.
type SubmitParams struct {
	CampaignID   string
	CampaignName string
	FileName     string
	MimeType     string
	Content      []byte
	RawText      string
	IsCorrection bool
}

// Submit creates a pending record, queues extraction and returns the record.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*RuleRecord, error) {
	if strings.TrimSpace(p.CampaignID) == "" {
		return nil, errutil.BadRequest("campaign_id is required")
	}

	content := p.Content
	mimeType := p.MimeType
	if len(content) == 0 && p.RawText != "" {
		content = []byte(p.RawText)
		if mimeType == "" {
			mimeType = "text/plain"
		}
	}

	if len(content) == 0 {
		return nil, errutil.ValidationFailed("rule content is empty")
	}
	if len(content) > maxDocumentSize {
		return nil, errutil.ValidationFailed("rule document exceeds 10MB limit")
	}
	if _, ok := allowedMimeTypes[mimeType]; !ok {
		return nil, errutil.ValidationFailed(fmt.Sprintf("unsupported document type %q", mimeType))
	}

	rec := &RuleRecord{
		RuleID:       s.node.Generate().String(),
		CampaignID:   p.CampaignID,
		CampaignName: p.CampaignName,
		FileName:     p.FileName,
		FileSize:     int64(len(content)),
		MimeType:     mimeType,
		RawText:      p.RawText,
		ContentB64:   base64.StdEncoding.EncodeToString(content),
		Status:       StatusPending,
		IsCorrection: p.IsCorrection,
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		s.logger.Error("failed to create rule record", zap.Error(err))
		return nil, persistence("failed to create rule record", err)
	}

	if s.tasks != nil {
		if _, err := s.tasks.EnqueueContext(ctx, NewExtractTask(rec.RuleID)); err != nil {
			// Record stays pending and pollable; the caller can resubmit.
			s.logger.Error("failed to enqueue extraction task",
				zap.String("rule_id", rec.RuleID), zap.Error(err))
		}
	}

	s.notifier.Publish(ctx, notify.Event{
		Title:       "Rule submitted",
		Description: fmt.Sprintf("Rule for campaign %s is queued for processing", p.CampaignName),
		Severity:    notify.SeverityInfo,
		CampaignID:  rec.CampaignID,
		RuleID:      rec.RuleID,
	})

	return rec, nil
}

// BeginProcessing transitions the record from PENDING to PROCESSING.
func (s *Service) BeginProcessing(ctx context.Context, rec *RuleRecord) (*RuleRecord, error) {
	if !canTransition(rec.Status, StatusProcessing) {
		return nil, invalidTransition("record is not pending")
	}

	return s.transition(ctx, rec.RuleID, StatusPending, map[string]interface{}{
		"status": StatusProcessing,
	}, "record is not pending")
}

// CompleteProcessing transitions the record from PROCESSING to COMPLETED and
// stores the extraction output.
func (s *Service) CompleteProcessing(ctx context.Context, rec *RuleRecord, structured json.RawMessage, summary string) (*RuleRecord, error) {
	if !canTransition(rec.Status, StatusCompleted) {
		return nil, invalidTransition("record is not processing")
	}

	updated, err := s.transition(ctx, rec.RuleID, StatusProcessing, map[string]interface{}{
		"status":            StatusCompleted,
		"structured_rule":   datatypes.JSON(structured),
		"processed_summary": summary,
		"error_message":     "",
	}, "record is not processing")
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, notify.Event{
		Title:       "Rule processed",
		Description: fmt.Sprintf("Rule for campaign %s is ready", rec.CampaignName),
		Severity:    notify.SeverityInfo,
		CampaignID:  rec.CampaignID,
		RuleID:      rec.RuleID,
	})

	return updated, nil
}

// FailProcessing transitions the record from PROCESSING to FAILED and records
// the error message. Retry count only moves on explicit retries.
func (s *Service) FailProcessing(ctx context.Context, rec *RuleRecord, errorMessage string) (*RuleRecord, error) {
	if !canTransition(rec.Status, StatusFailed) {
		return nil, invalidTransition("record is not processing")
	}

	updated, err := s.transition(ctx, rec.RuleID, StatusProcessing, map[string]interface{}{
		"status":        StatusFailed,
		"error_message": errorMessage,
	}, "record is not processing")
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, notify.Event{
		Title:       "Rule processing failed",
		Description: errorMessage,
		Severity:    notify.SeverityDestructive,
		CampaignID:  rec.CampaignID,
		RuleID:      rec.RuleID,
	})

	return updated, nil
}

// GetActiveRule returns the most recent non-tombstone record for the
// campaign, or nil when the campaign has none. Sales-file upload is gated on
// the returned record being completed.
func (s *Service) GetActiveRule(ctx context.Context, campaignID string) (*RuleRecord, error) {
	recs, err := s.repo.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, persistence("failed to list rule records", err)
	}

	for i := range recs {
		if recs[i].Tombstoned() {
			continue
		}
		return &recs[i], nil
	}
	return nil, nil
}

// DeleteRule marks the record as a soft-deleted tombstone. History is kept;
// the record simply stops counting as the campaign's rule.
func (s *Service) DeleteRule(ctx context.Context, rec *RuleRecord) error {
	if err := s.repo.Tombstone(ctx, rec.RuleID); err != nil {
		return persistence("failed to delete rule record", err)
	}

	s.notifier.Publish(ctx, notify.Event{
		Title:       "Rule deleted",
		Description: fmt.Sprintf("Rule for campaign %s was removed", rec.CampaignName),
		Severity:    notify.SeverityDestructive,
		CampaignID:  rec.CampaignID,
		RuleID:      rec.RuleID,
	})

	return nil
}

// Process drives a pending record through extraction to a terminal state.
// Extraction failures are recorded on the record, not returned.
func (s *Service) Process(ctx context.Context, rec *RuleRecord) (*RuleRecord, error) {
	rec, err := s.BeginProcessing(ctx, rec)
	if err != nil {
		return nil, err
	}

	content, err := base64.StdEncoding.DecodeString(rec.ContentB64)
	if err != nil {
		return s.FailProcessing(ctx, rec, "stored content is corrupt: "+err.Error())
	}

	extractCtx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	defer cancel()

	extraction, err := s.extractor.Extract(extractCtx, content, CampaignContext{
		CampaignID:   rec.CampaignID,
		CampaignName: rec.CampaignName,
		FileName:     rec.FileName,
		MimeType:     rec.MimeType,
	})
	if err != nil {
		s.logger.Warn("rule extraction failed",
			zap.String("rule_id", rec.RuleID), zap.Error(err))
		return s.FailProcessing(ctx, rec, err.Error())
	}

	return s.CompleteProcessing(ctx, rec, extraction.StructuredRule, extraction.Summary)
}

func (s *Service) transition(ctx context.Context, ruleID string, from Status, updates map[string]interface{}, rejectMsg string) (*RuleRecord, error) {
	ok, err := s.repo.Transition(ctx, ruleID, from, updates)
	if err != nil {
		return nil, persistence("failed to update rule record", err)
	}
	if !ok {
		return nil, invalidTransition(rejectMsg)
	}

	updated, err := s.repo.GetByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("rule record not found")
		}
		return nil, persistence("failed to reload rule record", err)
	}
	return updated, nil
}
