package middleware

import (
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"offerpulse/internal/config"
)

type rateWindow struct {
	start time.Time
	count int
}

// RateLimit enforces a fixed per-minute request cap per client IP.
// Disabled when the configured limit is zero.
func RateLimit(cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if cfg.RateLimitPerMinute <= 0 {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return next
		}
	}

	var mu sync.Mutex
	windows := make(map[string]*rateWindow)

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			ip := ctx.RemoteIP().String()
			now := time.Now()

			mu.Lock()
			w, ok := windows[ip]
			if !ok || now.Sub(w.start) >= time.Minute {
				// Reuse the sweep over a fresh window to drop idle IPs.
				if len(windows) > 10000 {
					for k, v := range windows {
						if now.Sub(v.start) >= time.Minute {
							delete(windows, k)
						}
					}
				}
				w = &rateWindow{start: now}
				windows[ip] = w
			}
			w.count++
			over := w.count > cfg.RateLimitPerMinute
			mu.Unlock()

			if over {
				ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
				ctx.SetBodyString("rate limit exceeded")
				return
			}
			next(ctx)
		}
	}
}
