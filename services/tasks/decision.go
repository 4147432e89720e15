package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"rapidcare/config"
	"rapidcare/models"

	"github.com/hibiken/asynq"
)

const TypeDecisionNotify = "booking:decision"

// NewDecisionTask wraps a decision payload for the queue.
func NewDecisionTask(payload models.DecisionPayload) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDecisionNotify, b), nil
}

// Enqueuer pushes decision notifications onto the Redis-backed queue so the
// approval hot path never waits on FCM.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer() *Enqueuer {
	return &Enqueuer{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     config.AppConfig.RedisAddr,
			Password: config.AppConfig.RedisPasswd,
			DB:       config.AppConfig.RedisQueueDB,
		}),
	}
}

// QueueDecision enqueues one decision notification.
func (e *Enqueuer) QueueDecision(ctx context.Context, payload models.DecisionPayload) error {
	task, err := NewDecisionTask(payload)
	if err != nil {
		return fmt.Errorf("failed to build decision task: %w", err)
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("failed to enqueue decision task: %w", err)
	}
	return nil
}

// Close releases the underlying queue connection.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
