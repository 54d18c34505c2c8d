package web

import (
	"net/http"

	"elearn_backend/helpers/apperr"
	"elearn_backend/helpers/logs"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func handlerLogger(c *gin.Context, name string) *logrus.Entry {
	return logs.GetLogger().WithFields(logrus.Fields{
		"module":    "web",
		"handler":   name,
		"client_ip": c.ClientIP(),
	})
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// respondError writes the error envelope. Internal failures also carry the cause in
// "error" and get logged.
func respondError(c *gin.Context, logger *logrus.Entry, err error) {
	status := apperr.HTTPStatus(err)
	body := gin.H{
		"success": false,
		"message": apperr.MessageOf(err),
	}
	if fields := apperr.FieldsOf(err); len(fields) > 0 {
		body["fields"] = fields
	}
	if status >= http.StatusInternalServerError {
		logger.WithError(err).Error("Request failed")
		body["error"] = err.Error()
	} else {
		logger.WithError(err).Debug("Request rejected")
	}
	c.AbortWithStatusJSON(status, body)
}

// bindJSON decodes the request body. Field rules are checked by the services.
func bindJSON(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return apperr.InvalidArgument("Invalid request body")
	}
	return nil
}
