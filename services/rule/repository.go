package rule

import (
	"context"

	"gorm.io/gorm"
)

// Repository describes the four store operations the lifecycle depends on.
// All mutation goes through the lifecycle service, never direct field writes.
type Repository interface {
	Create(ctx context.Context, rec *RuleRecord) error
	GetByID(ctx context.Context, ruleID string) (*RuleRecord, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]RuleRecord, error)
	// Transition applies updates to the record only while its persisted
	// status still equals from, and reports whether a row was touched.
	// Losing the conditional write is how concurrent transitions are
	// rejected without locks.
	Transition(ctx context.Context, ruleID string, from Status, updates map[string]interface{}) (bool, error)
	// Tombstone soft-deletes the record regardless of its current status.
	Tombstone(ctx context.Context, ruleID string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a gorm backed Repository implementation.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, rec *RuleRecord) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *gormRepository) GetByID(ctx context.Context, ruleID string) (*RuleRecord, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var rec RuleRecord
	err := r.db.WithContext(ctx).
		Where("rule_id = ?", ruleID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormRepository) ListByCampaign(ctx context.Context, campaignID string) ([]RuleRecord, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var recs []RuleRecord
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *gormRepository) Transition(ctx context.Context, ruleID string, from Status, updates map[string]interface{}) (bool, error) {
	if r == nil || r.db == nil {
		return false, gorm.ErrInvalidDB
	}

	res := r.db.WithContext(ctx).
		Model(&RuleRecord{}).
		Where("rule_id = ? AND status = ?", ruleID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) Tombstone(ctx context.Context, ruleID string) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	return r.db.WithContext(ctx).
		Model(&RuleRecord{}).
		Where("rule_id = ?", ruleID).
		Updates(map[string]interface{}{
			"status":        StatusFailed,
			"error_message": TombstoneMessage,
		}).Error
}
