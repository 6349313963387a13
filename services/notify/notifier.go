package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Channel carries every lifecycle and validation event published by the core.
const Channel = "salescamp:events"

type Severity string

const (
	SeverityInfo        Severity = "INFO"
	SeverityDestructive Severity = "DESTRUCTIVE"
)

// Event is a toast-ready description of something that happened to a
// campaign rule or an uploaded sales file.
type Event struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	CampaignID  string    `json:"campaign_id,omitempty"`
	RuleID      string    `json:"rule_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Notifier publishes events to the dashboard push layer. The core stays
// correct when the notifier is a Nop; consumers may always poll instead.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

type redisNotifier struct {
	rdb    *redis.Client
	logger *zap.Logger
}

type NotifierParams struct {
	fx.In

	Redis  *redis.Client
	Logger *zap.Logger
}

func NewRedisNotifier(p NotifierParams) Notifier {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisNotifier{rdb: p.Redis, logger: logger}
}

func (n *redisNotifier) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("failed to marshal event", zap.Error(err))
		return
	}

	if err := n.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
		// Push delivery is best effort, state is always pollable.
		n.logger.Warn("failed to publish event",
			zap.String("title", event.Title),
			zap.Error(err))
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

var Module = fx.Module("notify.module",
	fx.Provide(NewRedisNotifier),
)
