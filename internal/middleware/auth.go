package middleware

import (
	"errors"
	"fmt"
	"strings"

	"anoa.com/mediagallery/internal/entity"
	userRepo "anoa.com/mediagallery/internal/modules/user/repository"
	"anoa.com/mediagallery/pkg/apperror"
	"anoa.com/mediagallery/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const userKey = "user"

type AuthMiddleware struct {
	userRepo userRepo.UserRepository
	secret   string
	isAdmin  func(username string) bool
}

func NewAuthMiddleware(userRepo userRepo.UserRepository, secret string, isAdmin func(username string) bool) *AuthMiddleware {
	return &AuthMiddleware{
		userRepo: userRepo,
		secret:   secret,
		isAdmin:  isAdmin,
	}
}

// RequireAuth admits requests carrying a valid bearer token for an account
// that is verified and not banned.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		if parts := strings.Split(c.GetHeader("Authorization"), " "); len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}

		if tokenString == "" {
			m.abort(c, fmt.Errorf("authorization required: %w", apperror.ErrUnauthorized))
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(m.secret), nil
		})
		if err != nil || !token.Valid {
			m.abort(c, fmt.Errorf("invalid or expired token: %w", apperror.ErrUnauthorized))
			return
		}

		claims, ok := token.Claims.(*jwt.RegisteredClaims)
		if !ok {
			m.abort(c, fmt.Errorf("invalid token claims: %w", apperror.ErrUnauthorized))
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			m.abort(c, fmt.Errorf("invalid token subject: %w", apperror.ErrUnauthorized))
			return
		}

		user, err := m.userRepo.FindByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				err = fmt.Errorf("user not found: %w", apperror.ErrUnauthorized)
			}
			m.abort(c, err)
			return
		}

		if !user.CanSignIn() {
			m.abort(c, fmt.Errorf("account is banned or awaiting verification: %w", apperror.ErrUnauthorized))
			return
		}

		c.Set(response.UserIDKey, user.ID.String())
		c.Set(userKey, user)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(userKey)
		if !exists {
			m.abort(c, fmt.Errorf("user not authenticated: %w", apperror.ErrUnauthorized))
			return
		}

		user, ok := value.(*entity.User)
		if !ok || !m.isAdmin(user.Username) {
			m.abort(c, fmt.Errorf("admin access required: %w", apperror.ErrForbidden))
			return
		}

		c.Next()
	}
}

func (m *AuthMiddleware) abort(c *gin.Context, err error) {
	response.ResponseError(c, err)
	c.Abort()
}
