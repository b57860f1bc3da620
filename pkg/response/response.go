package response

import (
	"net/http"

	"anoa.com/mediagallery/pkg/apperror"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UserIDKey is the gin context key the auth middleware stores the session user under.
const UserIDKey = "user_id"

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	str, ok := userIDStr.(string)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	if code == http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).WithError(err).Error("internal error")
	}

	body := gin.H{
		"error": err.Error(),
		"code":  apperror.CodeForStatus(code),
	}
	if ve, ok := apperror.AsValidation(err); ok {
		body["error"] = "validation failed"
		body["fields"] = ve.Fields
	}

	c.JSON(code, body)
}

// BadRequest rejects a request whose body or query could not be decoded.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": message,
		"code":  apperror.CodeForStatus(http.StatusBadRequest),
	})
}
