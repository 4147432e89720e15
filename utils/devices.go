// File: rapidcare/utils/devices.go
package utils

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// SaveDeviceToken stores the FCM token for a patient or hospital authority.
func SaveDeviceToken(client *redis.Client, subjectID, token string) error {
	ctx := context.Background()
	if err := client.Set(ctx, DeviceTokenPrefix+subjectID, token, DeviceTokenTTL).Err(); err != nil {
		return fmt.Errorf("failed to save device token: %w", err)
	}
	return nil
}

// GetDeviceToken retrieves the registered FCM token for a subject.
func GetDeviceToken(client *redis.Client, subjectID string) (string, error) {
	ctx := context.Background()
	token, err := client.Get(ctx, DeviceTokenPrefix+subjectID).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("no device token registered for %s", subjectID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read device token: %w", err)
	}
	return token, nil
}
