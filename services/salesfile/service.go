package salesfile

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"salescamp-controlplane/internal/config"
	"salescamp-controlplane/pkg/errutil"
	"salescamp-controlplane/services/notify"
	"salescamp-controlplane/services/prize"
	"salescamp-controlplane/services/rule"

	"github.com/minio/minio-go/v7"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// maxSalesFileSize bounds a participant sales-file upload.
const maxSalesFileSize = 50 << 20

var allowedExtensions = map[string]struct{}{
	".csv":  {},
	".xlsx": {},
	".xls":  {},
}

// Service validates uploaded participant files and scores the surviving rows.
type Service struct {
	rules     *rule.Service
	evaluator *Evaluator
	factor    prize.FactorSource
	storage   *minio.Client
	bucket    string
	notifier  notify.Notifier
	logger    *zap.Logger
}

type ServiceParams struct {
	fx.In

	Rules    *rule.Service
	Notifier notify.Notifier `optional:"true"`
	Storage  *minio.Client   `optional:"true"`
	Config   *config.Config  `optional:"true"`
	Logger   *zap.Logger     `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if p.Rules == nil {
		panic("salesfile service requires rule service dependency")
	}

	var notifier notify.Notifier = notify.Nop{}
	if p.Notifier != nil {
		notifier = p.Notifier
	}

	bucket := "sales-files"
	if p.Config != nil && p.Config.Minio.BucketName != "" {
		bucket = p.Config.Minio.BucketName
	}

	return &Service{
		rules:     p.Rules,
		evaluator: NewEvaluator(),
		factor:    prize.UniformFactor(),
		storage:   p.Storage,
		bucket:    bucket,
		notifier:  notifier,
		logger:    logger,
	}
}

// WithFactorSource overrides the bonus factor source; test use.
func (s *Service) WithFactorSource(factor prize.FactorSource) *Service {
	s.factor = factor
	return s
}

// UploadParams describes one sales-file upload. Rows carries the pre-parsed
// rows for spreadsheet uploads; CSV content is parsed server side.
type UploadParams struct {
	CampaignID string
	FileName   string
	Content    []byte
	Rows       []ParticipantRow
}

// ProcessUpload stores the raw file, resolves rows, and hands them to
// ValidateAndScore. The campaign must already have a completed rule.
func (s *Service) ProcessUpload(ctx context.Context, p UploadParams) (*ScoreReport, error) {
	ext := strings.ToLower(filepath.Ext(p.FileName))
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, errutil.ValidationFailed(fmt.Sprintf("unsupported sales file type %q", ext))
	}
	if len(p.Content) == 0 && len(p.Rows) == 0 {
		return nil, errutil.ValidationFailed("sales file is empty")
	}
	if len(p.Content) > maxSalesFileSize {
		return nil, errutil.ValidationFailed("sales file exceeds 50MB limit")
	}

	rows := p.Rows
	if ext == ".csv" && len(rows) == 0 {
		parsed, err := ParseCSV(bytes.NewReader(p.Content))
		if err != nil {
			return nil, err
		}
		rows = parsed
	}
	if len(rows) == 0 {
		// Spreadsheets are parsed by the upload surface; the core only
		// understands rows.
		return nil, errutil.ValidationFailed("spreadsheet uploads must include the parsed rows payload")
	}

	objectKey := s.storeObject(ctx, p)

	report, err := s.ValidateAndScore(ctx, p.CampaignID, rows)
	if err != nil {
		return nil, err
	}
	report.ObjectKey = objectKey

	return report, nil
}

// ValidateAndScore validates every row, filters by the active rule's
// eligibility expression and computes prize results over the full surviving
// snapshot.
func (s *Service) ValidateAndScore(ctx context.Context, campaignID string, rows []ParticipantRow) (*ScoreReport, error) {
	active, err := s.rules.GetActiveRule(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if active == nil || active.Status != rule.StatusCompleted {
		return nil, errutil.UnprocessableEntity("campaign has no completed rule; upload the campaign rule first")
	}

	validated := ValidateFile(rows)

	expression := EligibilityExpression(active.StructuredRule)

	participants := make([]prize.Participant, 0, len(validated.ValidRows))
	ineligible := 0
	for _, row := range validated.ValidRows {
		percentages := make([]float64, 0, len(row.Achievements))
		for _, pct := range row.Achievements {
			percentages = append(percentages, pct)
		}
		avg, err := prize.AverageAchievement(percentages)
		if err != nil {
			return nil, err
		}

		if expression != "" {
			eligible, err := s.evaluator.Evaluate(expression, rowContext(row, avg))
			if err != nil {
				// A broken expression must not exclude anyone.
				s.logger.Warn("eligibility expression failed, skipping filter",
					zap.String("campaign_id", campaignID), zap.Error(err))
				expression = ""
			} else if !eligible {
				ineligible++
				continue
			}
		}

		participants = append(participants, prize.Participant{
			ID:           row.ParticipantID,
			Name:         row.Name,
			Achievements: percentages,
		})
	}

	results, err := prize.Compute(participants, s.factor)
	if err != nil {
		return nil, err
	}

	report := &ScoreReport{
		TotalRows:  len(rows),
		ValidRows:  len(validated.ValidRows),
		Ineligible: ineligible,
		Findings:   validated.Findings,
		Results:    results,
	}

	severity := notify.SeverityInfo
	if report.ValidRows == 0 {
		severity = notify.SeverityDestructive
	}
	s.notifier.Publish(ctx, notify.Event{
		Title: "Sales file processed",
		Description: fmt.Sprintf("%d of %d rows valid, %d findings",
			report.ValidRows, report.TotalRows, len(report.Findings)),
		Severity:   severity,
		CampaignID: campaignID,
	})

	return report, nil
}

func (s *Service) storeObject(ctx context.Context, p UploadParams) string {
	if s.storage == nil || len(p.Content) == 0 {
		return ""
	}

	key := fmt.Sprintf("%s/%d-%s", p.CampaignID, time.Now().UTC().Unix(), filepath.Base(p.FileName))
	_, err := s.storage.PutObject(ctx, s.bucket, key,
		bytes.NewReader(p.Content), int64(len(p.Content)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		// Archival is best effort; validation proceeds from memory.
		s.logger.Warn("failed to archive sales file",
			zap.String("campaign_id", p.CampaignID),
			zap.String("file_name", p.FileName),
			zap.Error(err))
		return ""
	}
	return key
}
