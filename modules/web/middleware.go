package web

import (
	"net/http"
	"strings"
	"time"

	"elearn_backend/helpers/apperr"
	"elearn_backend/helpers/logs"
	"elearn_backend/modules/students/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const studentKey = "student"

// requestLogger logs one line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logs.GetLogger().WithFields(logrus.Fields{
			"module":    "web",
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"duration":  time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		if v, ok := c.Get(studentKey); ok {
			entry = entry.WithField("student_id", v.(*models.Student).ID)
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request completed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request completed")
		default:
			entry.Debug("Request completed")
		}
	}
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": message,
	})
}

// authenticate resolves the bearer token to an existing, unblocked student.
func (h *handlers) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := handlerLogger(c, "authenticate")

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Please authenticate")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			unauthorized(c, "Invalid authorization header format")
			return
		}

		studentID, err := h.Tokens.Parse(parts[1])
		if err != nil {
			logger.WithError(err).Debug("Rejected token")
			unauthorized(c, "Please authenticate")
			return
		}

		student, err := h.Students.FindByID(c.Request.Context(), studentID)
		if apperr.Is(err, apperr.KindNotFound) {
			unauthorized(c, "Please authenticate")
			return
		}
		if err != nil {
			respondError(c, logger, err)
			return
		}
		if student.IsBlocked {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Your account has been blocked",
			})
			return
		}

		c.Set(studentKey, student)
		c.Next()
	}
}

// currentStudent returns the student set by authenticate.
func currentStudent(c *gin.Context) *models.Student {
	return c.MustGet(studentKey).(*models.Student)
}
