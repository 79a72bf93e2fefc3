package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	"offerpulse/internal/config"
)

func newRequestCtx(method, uri string, headers map[string]string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	return ctx
}

func countingHandler(calls *int) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		*calls++
		ctx.SetStatusCode(fasthttp.StatusOK)
	}
}

func TestCORSAllowAll(t *testing.T) {
	cfg := &config.Config{AllowedOrigins: []string{"*"}}
	var calls int
	h := CORS(cfg)(countingHandler(&calls))

	ctx := newRequestCtx(fasthttp.MethodGet, "/v1/offers", map[string]string{"Origin": "https://app.example.com"})
	h(ctx)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "*", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
	assert.Contains(t, string(ctx.Response.Header.Peek("Access-Control-Allow-Headers")), "X-Session-ID")
}

func TestCORSAllowlist(t *testing.T) {
	cfg := &config.Config{AllowedOrigins: []string{"https://app.example.com"}}
	h := CORS(cfg)(countingHandler(new(int)))

	ctx := newRequestCtx(fasthttp.MethodGet, "/v1/offers", map[string]string{"Origin": "https://app.example.com"})
	h(ctx)
	assert.Equal(t, "https://app.example.com", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))

	ctx = newRequestCtx(fasthttp.MethodGet, "/v1/offers", map[string]string{"Origin": "https://evil.example.com"})
	h(ctx)
	assert.Empty(t, string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	cfg := &config.Config{AllowedOrigins: []string{"*"}}
	var calls int
	h := CORS(cfg)(countingHandler(&calls))

	ctx := newRequestCtx(fasthttp.MethodOptions, "/v1/analytics/events", map[string]string{"Origin": "https://app.example.com"})
	h(ctx)

	assert.Equal(t, 0, calls)
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
}

func TestRateLimitCapsPerMinute(t *testing.T) {
	cfg := &config.Config{RateLimitPerMinute: 3}
	var calls int
	h := RateLimit(cfg)(countingHandler(&calls))

	for i := 0; i < 5; i++ {
		ctx := newRequestCtx(fasthttp.MethodGet, "/v1/offers", nil)
		h(ctx)
		if i < 3 {
			assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		} else {
			assert.Equal(t, fasthttp.StatusTooManyRequests, ctx.Response.StatusCode())
		}
	}
	assert.Equal(t, 3, calls)
}

func TestRateLimitDisabledWhenZero(t *testing.T) {
	cfg := &config.Config{RateLimitPerMinute: 0}
	var calls int
	h := RateLimit(cfg)(countingHandler(&calls))

	for i := 0; i < 100; i++ {
		h(newRequestCtx(fasthttp.MethodGet, "/v1/offers", nil))
	}
	assert.Equal(t, 100, calls)
}
