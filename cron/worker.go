package cron

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"rapidcare/config"
	"rapidcare/models"
	"rapidcare/services/notification"
	"rapidcare/services/tasks"

	"github.com/hibiken/asynq"
)

// InitDecisionWorker runs the async notification worker in background.
func InitDecisionWorker(notifSvc notification.Service) {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPasswd,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeDecisionNotify, handleDecisionTask(notifSvc))

	// Start async worker with retry logic
	go func() {
		log.Println("[DecisionWorker] Starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[DecisionWorker] Attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[DecisionWorker] Max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

func handleDecisionTask(notifSvc notification.Service) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.DecisionPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Printf("[DecisionHandler] Invalid payload: %v", err)
			return err
		}

		log.Printf("[DecisionHandler] Notifying patient %s: booking %s is %s", p.PatientID, p.BookingID, p.Status)

		if err := notifSvc.SendDecisionPush(ctx, p); err != nil {
			log.Printf("[DecisionHandler] Failed to send notification: %v", err)
			return err
		}
		return nil
	}
}
