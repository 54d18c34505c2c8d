package web

import (
	"net/http"
	"strconv"

	"elearn_backend/modules/notifications"

	"github.com/gin-gonic/gin"
)

type welcomeRequest struct {
	StudentIDs    []string `json:"studentIds"`
	PlaylistIDs   []string `json:"playlistIds"`
	CustomMessage string   `json:"customMessage"`
}

func (h *handlers) handleGetSettings(c *gin.Context) {
	logger := handlerLogger(c, "handleGetSettings")

	settings, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "", settings)
}

func (h *handlers) handleUpdateSettings(c *gin.Context) {
	logger := handlerLogger(c, "handleUpdateSettings")

	var up notifications.SettingsUpdate
	if err := bindJSON(c, &up); err != nil {
		respondError(c, logger, err)
		return
	}
	settings, err := h.Settings.Update(c.Request.Context(), up)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "Settings updated successfully", settings)
}

// optionalWelcome decodes a welcome body. An empty body is allowed.
func optionalWelcome(c *gin.Context) (welcomeRequest, error) {
	var req welcomeRequest
	if c.Request.ContentLength == 0 {
		return req, nil
	}
	err := bindJSON(c, &req)
	return req, err
}

func (h *handlers) handleSendWelcome(c *gin.Context) {
	logger := handlerLogger(c, "handleSendWelcome")

	req, err := optionalWelcome(c)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	res, err := h.Notifications.SendWelcome(c.Request.Context(), req.StudentIDs, req.CustomMessage)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusCreated, "Welcome messages sent successfully", res)
}

func (h *handlers) handleSendWelcomeByPlaylist(c *gin.Context) {
	logger := handlerLogger(c, "handleSendWelcomeByPlaylist")

	req, err := optionalWelcome(c)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	res, err := h.Notifications.SendWelcomeByPlaylist(c.Request.Context(), c.Param("playlistId"), req.CustomMessage)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusCreated, "Welcome messages sent to playlist students", res)
}

func (h *handlers) handleSendWelcomeByPlaylists(c *gin.Context) {
	logger := handlerLogger(c, "handleSendWelcomeByPlaylists")

	req, err := optionalWelcome(c)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	res, err := h.Notifications.SendWelcomeByPlaylists(c.Request.Context(), req.PlaylistIDs, req.CustomMessage)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusCreated, "Welcome messages sent to playlist students", res)
}

// handleStudentNotifications pages through a student's notifications, ?page=&limit=
func (h *handlers) handleStudentNotifications(c *gin.Context) {
	logger := handlerLogger(c, "handleStudentNotifications")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	res, err := h.Notifications.ForStudent(c.Request.Context(), c.Param("studentId"), page, limit)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "", res)
}

func (h *handlers) handleSendNotification(c *gin.Context) {
	logger := handlerLogger(c, "handleSendNotification")

	var in notifications.SendInput
	if err := bindJSON(c, &in); err != nil {
		respondError(c, logger, err)
		return
	}
	rows, err := h.Notifications.Send(c.Request.Context(), in)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusCreated, "Notifications sent successfully", rows)
}

func (h *handlers) handleMyNotifications(c *gin.Context) {
	logger := handlerLogger(c, "handleMyNotifications")
	student := currentStudent(c)

	rows, err := h.Notifications.Mine(c.Request.Context(), student.ID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "", rows)
}
