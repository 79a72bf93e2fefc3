package middleware

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"offerpulse/internal/config"
	dbpkg "offerpulse/internal/db"
	httpctx "offerpulse/internal/http/ctx"
)

const bearerPrefix = "Bearer "

// RequireAuth validates the JWT bearer token and loads the user onto
// the request context. Requests without a valid token get 401.
func RequireAuth(db *gorm.DB, cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			user, ok := authenticate(ctx, db, cfg)
			if !ok {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("unauthorized")
				return
			}
			httpctx.SetUser(ctx, user)
			rememberSession(ctx)
			next(ctx)
		}
	}
}

// OptionalAuth loads the user when a valid bearer token is present but
// lets anonymous requests through. A token that is present yet invalid
// is still rejected so expired sessions fail loudly.
func OptionalAuth(db *gorm.DB, cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if len(ctx.Request.Header.Peek("Authorization")) > 0 {
				user, ok := authenticate(ctx, db, cfg)
				if !ok {
					ctx.SetStatusCode(fasthttp.StatusUnauthorized)
					ctx.SetBodyString("unauthorized")
					return
				}
				httpctx.SetUser(ctx, user)
			}
			rememberSession(ctx)
			next(ctx)
		}
	}
}

// AdminAuth is RequireAuth plus an admin check for dashboard endpoints.
func AdminAuth(db *gorm.DB, cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return RequireAuth(db, cfg)(func(ctx *fasthttp.RequestCtx) {
			user, _ := httpctx.UserFromCtx(ctx)
			if user == nil || !user.IsAdmin {
				ctx.SetStatusCode(fasthttp.StatusForbidden)
				ctx.SetBodyString("forbidden")
				return
			}
			next(ctx)
		})
	}
}

func authenticate(ctx *fasthttp.RequestCtx, db *gorm.DB, cfg *config.Config) (*dbpkg.User, bool) {
	auth := ctx.Request.Header.Peek("Authorization")
	if !bytes.HasPrefix(auth, []byte(bearerPrefix)) {
		return nil, false
	}
	tokenString := strings.TrimSpace(string(auth[len(bearerPrefix):]))
	if tokenString == "" {
		return nil, false
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || !token.Valid {
		return nil, false
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, false
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil {
		return nil, false
	}

	var user dbpkg.User
	if err := db.First(&user, uint(userID)).Error; err != nil {
		return nil, false
	}
	return &user, true
}

// rememberSession copies the client session header onto the context so
// ingestion can attribute anonymous events.
func rememberSession(ctx *fasthttp.RequestCtx) {
	if sid := string(ctx.Request.Header.Peek("X-Session-ID")); sid != "" {
		httpctx.SetSessionID(ctx, sid)
	}
}
