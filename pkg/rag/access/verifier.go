package access

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"ai-docchat-be/internal/dto"
)

// Verifier handles per-user daily chat usage limits, backed by redis
// counters that expire at the next midnight.
type Verifier struct {
	rdb        *redis.Client
	dailyLimit int // negative means unlimited
	logger     *log.Logger
	now        func() time.Time
}

// NewVerifier creates a new access verifier
func NewVerifier(rdb *redis.Client, dailyLimit int, logger *log.Logger) *Verifier {
	return &Verifier{
		rdb:        rdb,
		dailyLimit: dailyLimit,
		logger:     logger,
		now:        time.Now,
	}
}

func (v *Verifier) usageKey(userID string, now time.Time) string {
	return fmt.Sprintf("chat:usage:%s:%s", userID, now.Format("2006-01-02"))
}

func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}

// VerifyChatLimit checks whether userID may send another chat message today.
// Returns *dto.LimitExceededError when the daily quota is used up. Redis
// outages fail open so the chat stays available without quota enforcement.
func (v *Verifier) VerifyChatLimit(ctx context.Context, userID string) error {
	if v.dailyLimit < 0 || v.rdb == nil {
		return nil
	}

	now := v.now()
	used, err := v.rdb.Get(ctx, v.usageKey(userID, now)).Int()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		v.logger.Printf("[WARN] Usage counter unavailable, allowing request: %v", err)
		return nil
	}

	if used >= v.dailyLimit {
		return &dto.LimitExceededError{
			Limit:      v.dailyLimit,
			Used:       used,
			ResetAfter: nextMidnight(now),
		}
	}
	return nil
}

// IncrementUsage bumps today's counter for userID. The key expires at the
// next midnight so counters clean themselves up.
func (v *Verifier) IncrementUsage(ctx context.Context, userID string) error {
	if v.dailyLimit < 0 || v.rdb == nil {
		return nil
	}

	now := v.now()
	key := v.usageKey(userID, now)

	count, err := v.rdb.Incr(ctx, key).Result()
	if err != nil {
		v.logger.Printf("[WARN] Failed to increment usage counter for %s: %v", userID, err)
		return nil
	}
	if count == 1 {
		if err := v.rdb.ExpireAt(ctx, key, nextMidnight(now)).Err(); err != nil {
			v.logger.Printf("[WARN] Failed to set usage counter expiry for %s: %v", userID, err)
		}
	}
	return nil
}

// Usage reports today's counter for userID, zero when absent.
func (v *Verifier) Usage(ctx context.Context, userID string) (int, error) {
	if v.rdb == nil {
		return 0, nil
	}
	used, err := v.rdb.Get(ctx, v.usageKey(userID, v.now())).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return used, err
}
