package service

import (
	"context"
	"fmt"
	"time"
)

// Store is the backup contract used to persist grid state across
// restarts. Operations report success as a boolean; failures are
// logged by implementations, never raised into the trading path.
type Store interface {
	Save(ctx context.Context, key string, content []byte) bool
	Read(ctx context.Context, key string) ([]byte, bool)
	Delete(ctx context.Context, key string) bool
	Exists(ctx context.Context, key string) bool
	ListKeys(ctx context.Context, prefix string) []string
}

const keyTimeLayout = "20060102_150405"

// BackupKey builds trade_data/{owner}/backups/{tier}/{yyyyMMdd_HHmmss}.
func BackupKey(owner, tier string, t time.Time) string {
	return fmt.Sprintf("%s%s", BackupPrefix(owner, tier), t.Format(keyTimeLayout))
}

// BackupPrefix is the common prefix of every backup key for an
// owner/tier; ListKeys on it enumerates available backups. Keys sort
// lexicographically in time order, so the newest backup is the largest
// key under the prefix.
func BackupPrefix(owner, tier string) string {
	return fmt.Sprintf("trade_data/%s/backups/%s/", owner, tier)
}
