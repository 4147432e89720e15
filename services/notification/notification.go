package notification

import (
	"context"
	"fmt"

	"rapidcare/models"
	"rapidcare/utils"

	"firebase.google.com/go/v4/messaging"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Service sends booking decision pushes to patients.
type Service interface {
	SendDecisionPush(ctx context.Context, payload models.DecisionPayload) error
}

// DefaultNotificationService is the FCM-backed implementation. Device tokens
// are looked up in Redis, where the device registration endpoint stores them.
type DefaultNotificationService struct {
	Tokens *redis.Client
	Logger *zap.Logger
}

// SendDecisionPush looks up the patient's device token and sends the push.
func (s *DefaultNotificationService) SendDecisionPush(ctx context.Context, payload models.DecisionPayload) error {
	token, err := utils.GetDeviceToken(s.Tokens, payload.PatientID)
	if err != nil {
		return fmt.Errorf("SendDecisionPush: %w", err)
	}

	title, body := decisionText(payload)
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"bookingId":    payload.BookingID,
			"hospitalId":   payload.HospitalID,
			"resourceType": payload.ResourceType,
			"status":       payload.Status,
		},
	}

	if utils.FCMClient == nil {
		return fmt.Errorf("SendDecisionPush: FCM client not initialized")
	}
	resp, err := utils.FCMClient.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("SendDecisionPush: fcm send failed for booking %s: %w", payload.BookingID, err)
	}
	s.Logger.Info("decision push sent",
		zap.String("bookingId", payload.BookingID),
		zap.String("status", payload.Status),
		zap.String("fcmResponse", resp))
	return nil
}

func decisionText(p models.DecisionPayload) (title, body string) {
	switch p.Status {
	case models.BookingApproved:
		return "Booking approved", fmt.Sprintf("Your %s booking was approved.", p.ResourceType)
	case models.BookingDeclined:
		if p.Reason != "" {
			return "Booking declined", fmt.Sprintf("Your %s booking was declined: %s", p.ResourceType, p.Reason)
		}
		return "Booking declined", fmt.Sprintf("Your %s booking was declined.", p.ResourceType)
	case models.BookingCancelled:
		return "Booking cancelled", fmt.Sprintf("Your %s booking was cancelled.", p.ResourceType)
	case models.BookingCompleted:
		return "Booking completed", fmt.Sprintf("Your %s booking is complete.", p.ResourceType)
	}
	return "Booking update", fmt.Sprintf("Your %s booking is now %s.", p.ResourceType, p.Status)
}
