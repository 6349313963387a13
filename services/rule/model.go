package rule

import (
	"time"

	"gorm.io/datatypes"
)

// Status is the closed set of lifecycle states for a rule record.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// transitions is the exhaustive lifecycle table. A failed record re-enters
// PENDING only through the retry orchestrator.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusPending},
	StatusCompleted:  {},
}

func canTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TombstoneMessage marks a soft-deleted record. Tombstones keep referential
// history but are excluded from active-rule queries and cannot be retried.
const TombstoneMessage = "rule deleted by user"

// RuleRecord is one rule submission for a campaign, raw content plus the
// derived extraction output.
type RuleRecord struct {
	RuleID       string `gorm:"column:rule_id;primaryKey"`
	CampaignID   string `gorm:"column:campaign_id;index;not null"`
	CampaignName string `gorm:"column:campaign_name"`

	FileName   string `gorm:"column:file_name"`
	FileSize   int64  `gorm:"column:file_size"`
	MimeType   string `gorm:"column:mime_type"`
	RawText    string `gorm:"column:raw_text;type:text"`
	ContentB64 string `gorm:"column:content_b64;type:text"`

	StructuredRule   datatypes.JSON `gorm:"column:structured_rule"`
	ProcessedSummary string         `gorm:"column:processed_summary;type:text"`

	Status       Status     `gorm:"column:status;type:varchar(20);not null;default:'PENDING'"`
	ErrorMessage string     `gorm:"column:error_message;type:text"`
	RetryCount   int        `gorm:"column:retry_count;not null;default:0"`
	LastRetryAt  *time.Time `gorm:"column:last_retry_at"`
	IsCorrection bool       `gorm:"column:is_correction;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName sets the table name for the RuleRecord model.
func (RuleRecord) TableName() string { return "campaign_rules" }

// Tombstoned reports whether the record is a soft-deleted placeholder.
func (r *RuleRecord) Tombstoned() bool {
	return r.Status == StatusFailed && r.ErrorMessage == TombstoneMessage
}
