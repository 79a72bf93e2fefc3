package middleware

import (
	"github.com/valyala/fasthttp"

	"offerpulse/internal/config"
)

// CORS applies the configured origin allowlist and answers preflight
// requests. The mobile app sends Authorization and X-Session-ID, so
// both must be whitelisted.
func CORS(cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	allowAll := false
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			origin := string(ctx.Request.Header.Peek("Origin"))
			if origin != "" {
				if allowAll {
					ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
				} else if allowed[origin] {
					ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
					ctx.Response.Header.Set("Vary", "Origin")
				}
				ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-ID")
			}

			if string(ctx.Method()) == fasthttp.MethodOptions {
				ctx.SetStatusCode(fasthttp.StatusNoContent)
				return
			}
			next(ctx)
		}
	}
}
