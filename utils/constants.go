// File: utils/constants.go
package utils

import "time"

// SnapshotCachePrefix is the prefix used for Redis snapshot cache keys.
const SnapshotCachePrefix = "snapshot:"

// SnapshotCacheTTL is the time-to-live for cached sync snapshots.
const SnapshotCacheTTL = 10 * time.Minute

// DeviceTokenPrefix is the prefix used for Redis device token keys.
const DeviceTokenPrefix = "deviceToken:"

// DeviceTokenTTL is the time-to-live for registered device tokens.
const DeviceTokenTTL = 30 * 24 * time.Hour
