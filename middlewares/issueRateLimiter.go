package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Pariharx7/CivicTrack/utils"
)

// IssueRateLimiter caps how many issues one user may report per day,
// backed by a per-user redis counter with a 24h TTL.
func IssueRateLimiter(client *redis.Client, keyPrefix string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := SubjectFrom(c)
		if !ok {
			utils.AbortWithError(c, utils.NewUnauthenticatedError("User not authenticated"))
			return
		}

		ctx := c.Request.Context()
		userKey := keyPrefix + ":" + userID

		count, err := client.Incr(ctx, userKey).Result()
		if err != nil {
			utils.AbortWithError(c, utils.AsAPIError(err))
			return
		}

		// The window starts with the first report of the day.
		if count == 1 {
			if err := client.Expire(ctx, userKey, 24*time.Hour).Err(); err != nil {
				utils.AbortWithError(c, utils.AsAPIError(err))
				return
			}
		}

		if count > int64(limit) {
			retryAfter, _ := client.TTL(ctx, userKey).Result()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"message":     "Daily report limit reached, try again later",
				"retry_after": retryAfter.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
