package rule

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TaskRuleExtract drives a freshly submitted record through extraction.
// Asynq retry is disabled; re-processing a failed record is always an
// explicit, user-driven retry.
const TaskRuleExtract = "rule:extract"

type ExtractPayload struct {
	RuleID string `json:"rule_id"`
}

func NewExtractTask(ruleID string) *asynq.Task {
	payload, _ := json.Marshal(ExtractPayload{RuleID: ruleID})
	return asynq.NewTask(TaskRuleExtract, payload,
		asynq.MaxRetry(0),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("extraction"))
}

// HandleExtractTask returns the asynq handler for TaskRuleExtract.
func HandleExtractTask(svc *Service) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload ExtractPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return err
		}

		rec, err := svc.repo.GetByID(ctx, payload.RuleID)
		if err != nil {
			return err
		}

		terminal, err := svc.Process(ctx, rec)
		if err != nil {
			return err
		}

		svc.logger.Info("rule extraction finished",
			zap.String("rule_id", terminal.RuleID),
			zap.String("status", string(terminal.Status)))
		return nil
	}
}
