package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskflow-api/domain"
)

const summaryCachePrefix = "rs"

// SummaryCache keeps per-owner reminder summaries in Redis so repeated panel
// refreshes do not re-list the whole partition. Entries are evicted on every
// task mutation; on Redis errors callers fall through to storage.
type SummaryCache struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

type cachedSummary struct {
	Version  int                    `json:"version"`
	CachedAt time.Time              `json:"cachedAt"`
	Summary  domain.ReminderSummary `json:"summary"`
}

// NewSummaryCache creates a cache with the given TTL. A nil client or zero
// TTL yields a cache that never hits.
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl < 0 {
		ttl = 0
	}
	return &SummaryCache{redis: client, ttl: ttl, now: time.Now}
}

func summaryCacheKey(ownerID string) string {
	return ownerID + ":" + summaryCachePrefix
}

// Load returns the cached summary for the owner, if present and decodable.
func (c *SummaryCache) Load(ctx context.Context, ownerID string) (domain.ReminderSummary, bool) {
	if c == nil || c.redis == nil {
		return domain.ReminderSummary{}, false
	}
	data, err := c.redis.Get(ctx, summaryCacheKey(ownerID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, summaryCacheKey(ownerID)).Err()
		}
		return domain.ReminderSummary{}, false
	}
	var payload cachedSummary
	if err := json.Unmarshal(data, &payload); err != nil {
		_ = c.redis.Del(ctx, summaryCacheKey(ownerID)).Err()
		return domain.ReminderSummary{}, false
	}
	return payload.Summary, true
}

// Store caches the summary under the owner's key.
func (c *SummaryCache) Store(ctx context.Context, ownerID string, s domain.ReminderSummary) {
	if c == nil || c.redis == nil || c.ttl == 0 {
		return
	}
	payload := cachedSummary{Version: 1, CachedAt: c.now().UTC(), Summary: s}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, summaryCacheKey(ownerID), data, c.ttl).Err()
}

// Invalidate drops the owner's cached summary after a mutation.
func (c *SummaryCache) Invalidate(ctx context.Context, ownerID string) {
	if c == nil || c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, summaryCacheKey(ownerID)).Err()
}

// getReminders serves the reminder panel figures: overdue-open count,
// due-today-open count and the next upcoming due timestamp.
func getReminders(store Storage, auth Authenticator, cache *SummaryCache, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		identity, err := auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return respondAuthRequired(c, err.Error())
		}
		owner, err := resolveOwner(ctx, store, identity)
		if err != nil {
			if err == errAuthRequired {
				return respondAuthRequired(c, "")
			}
			return respondUnexpected(c, logger, "reminders.owner", err)
		}

		if summary, ok := cache.Load(ctx, owner.ID); ok {
			return c.JSON(http.StatusOK, summary)
		}

		now := time.Now()
		open := domain.StatusOpen
		tasks, err := store.ListTasks(ctx, owner.ID, domain.TaskFilter{
			Status:    &open,
			Sort:      domain.SortDueAt,
			Direction: domain.SortAsc,
		}, now)
		if err != nil {
			return respondUnexpected(c, logger, "reminders.list", err)
		}

		summary := domain.BuildReminderSummary(tasks, now)
		cache.Store(ctx, owner.ID, summary)
		return c.JSON(http.StatusOK, summary)
	}
}
