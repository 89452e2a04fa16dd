package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// OperationRateLimit limits mutating wallet operations per source owner using
// Redis if available.
func OperationRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		var req struct {
			SourceUserID       string `json:"source_user_id"`
			SourceChamaID      string `json:"source_chama_id"`
			DestinationUserID  string `json:"destination_user_id"`
			DestinationChamaID string `json:"destination_chama_id"`
		}
		_ = c.BodyParser(&req)
		subject := strings.TrimSpace(req.SourceUserID)
		if subject == "" {
			subject = strings.TrimSpace(req.SourceChamaID)
		}
		if subject == "" {
			subject = strings.TrimSpace(req.DestinationUserID)
		}
		if subject == "" {
			subject = strings.TrimSpace(req.DestinationChamaID)
		}
		if subject == "" {
			subject = c.IP()
		}
		key := "rl:op:" + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many wallet operations, try again later")
		}
		return c.Next()
	}
}
