package ctx

import (
	"github.com/valyala/fasthttp"

	dbpkg "offerpulse/internal/db"
)

const (
	UserKey      = "user"
	SessionIDKey = "sessionID"
)

func SetUser(ctx *fasthttp.RequestCtx, user *dbpkg.User) {
	ctx.SetUserValue(UserKey, user)
}

func UserFromCtx(ctx *fasthttp.RequestCtx) (*dbpkg.User, bool) {
	v := ctx.UserValue(UserKey)
	if v == nil {
		return nil, false
	}
	u, ok := v.(*dbpkg.User)
	return u, ok && u != nil
}

func SetSessionID(ctx *fasthttp.RequestCtx, sessionID string) {
	ctx.SetUserValue(SessionIDKey, sessionID)
}

func SessionIDFromCtx(ctx *fasthttp.RequestCtx) (string, bool) {
	v := ctx.UserValue(SessionIDKey)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
