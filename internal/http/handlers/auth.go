package handlers

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"offerpulse/internal/config"
	dbpkg "offerpulse/internal/db"
)

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	City            string `json:"city"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Register(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req registerRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			failResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}

		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" || req.City == "" {
			failResponse(ctx, fasthttp.StatusBadRequest, "email, password, firstName, lastName and city are required")
			return
		}
		if req.ConfirmPassword != "" && req.Password != req.ConfirmPassword {
			failResponse(ctx, fasthttp.StatusBadRequest, "passwords do not match")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			failResponse(ctx, fasthttp.StatusInternalServerError, "failed to hash password")
			return
		}

		user := &dbpkg.User{
			Email:        req.Email,
			PasswordHash: string(hash),
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			City:         req.City,
		}
		if err := db.Create(user).Error; err != nil {
			failResponse(ctx, fasthttp.StatusBadRequest, "registration failed (email may already be in use)")
			return
		}

		token, err := issueToken(cfg, user.ID)
		if err != nil {
			failResponse(ctx, fasthttp.StatusInternalServerError, "failed to issue token")
			return
		}

		ctx.SetStatusCode(fasthttp.StatusCreated)
		successResponse(ctx, map[string]any{"user": userDTO(user), "token": token})
	}
}

func Login(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req loginRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			failResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || req.Password == "" {
			failResponse(ctx, fasthttp.StatusBadRequest, "email and password are required")
			return
		}

		var user dbpkg.User
		if err := db.Where("email = ?", req.Email).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				failResponse(ctx, fasthttp.StatusUnauthorized, "invalid email or password")
				return
			}
			failResponse(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			failResponse(ctx, fasthttp.StatusUnauthorized, "invalid email or password")
			return
		}

		token, err := issueToken(cfg, user.ID)
		if err != nil {
			failResponse(ctx, fasthttp.StatusInternalServerError, "failed to issue token")
			return
		}

		successResponse(ctx, map[string]any{"user": userDTO(&user), "token": token})
	}
}

func Profile() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		successResponse(ctx, map[string]any{"user": userDTO(user)})
	}
}

func issueToken(cfg *config.Config, userID uint) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(int(userID)),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.JWTExpiryDays) * 24 * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

func userDTO(user *dbpkg.User) map[string]any {
	return map[string]any{
		"id":        user.ID,
		"email":     user.Email,
		"firstName": user.FirstName,
		"lastName":  user.LastName,
		"city":      user.City,
		"isAdmin":   user.IsAdmin,
		"createdAt": user.CreatedAt.UTC().Format(time.RFC3339),
	}
}
