package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"geonear/internal/logger"
	"geonear/internal/metrics"
	"geonear/internal/utils"
)

// 文档注释：入口限流中间件（令牌桶）
// 约束：不排队，超出速率直接返回 429；桶容量等于每秒速率。
func RateLimit(qps int, next http.Handler) http.Handler {
	if qps <= 0 {
		return next
	}
	lim := rate.NewLimiter(rate.Limit(qps), qps)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !lim.Allow() {
			metrics.RateLimitedTotal.Inc()
			logger.L().Debug("rate_limited", "path", r.URL.Path, "ip", r.RemoteAddr)
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Wrap：按 RATE_LIMIT_ENABLED / RATE_LIMIT_QPS（默认 200）决定是否启用限流
func Wrap(next http.Handler) http.Handler {
	if !utils.EnvBool("RATE_LIMIT_ENABLED", false) {
		return next
	}
	return RateLimit(utils.EnvInt("RATE_LIMIT_QPS", 200), next)
}
