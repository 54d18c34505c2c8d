package web

import (
	"net/http"

	"elearn_backend/helpers/apperr"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type progressRequest struct {
	CurrentPosition *float64 `json:"currentPosition"`
	Duration        *float64 `json:"duration"`
}

// handleStartWatch opens or resumes a watch session
func (h *handlers) handleStartWatch(c *gin.Context) {
	logger := handlerLogger(c, "handleStartWatch")
	student := currentStudent(c)

	rec, err := h.Tracker.StartWatch(c.Request.Context(), student.ID, c.Param("courseId"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "Course watch session started", rec)
}

// handleUpdateProgress records a playback position report
func (h *handlers) handleUpdateProgress(c *gin.Context) {
	logger := handlerLogger(c, "handleUpdateProgress")
	student := currentStudent(c)

	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CurrentPosition == nil || req.Duration == nil {
		respondError(c, logger, apperr.InvalidArgument("Current position and duration must be numbers"))
		return
	}

	progress, err := h.Tracker.UpdateProgress(c.Request.Context(), student.ID, c.Param("courseId"), *req.CurrentPosition, *req.Duration)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "Watch progress updated successfully", progress)
}

// handleCourseProgress returns the student's progress in one course
func (h *handlers) handleCourseProgress(c *gin.Context) {
	logger := handlerLogger(c, "handleCourseProgress")
	student := currentStudent(c)

	progress, found, err := h.Tracker.GetCourseProgress(c.Request.Context(), student.ID, c.Param("courseId"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	message := "Course progress retrieved successfully"
	if !found {
		message = "No watch record found"
	}
	respond(c, http.StatusOK, message, progress)
}

func (h *handlers) handleWatchHistory(c *gin.Context) {
	logger := handlerLogger(c, "handleWatchHistory")
	student := currentStudent(c)

	history, err := h.Tracker.GetWatchHistory(c.Request.Context(), student.ID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "Watch history retrieved successfully", history)
}

func (h *handlers) handleDashboardStats(c *gin.Context) {
	logger := handlerLogger(c, "handleDashboardStats")

	stats, err := h.Tracker.GetDashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, logger, err)
		return
	}
	logger.WithFields(logrus.Fields{
		"total_students": stats.TotalStudents,
		"active":         stats.ActiveWatchingCount,
	}).Debug("✓ Dashboard stats computed")
	respond(c, http.StatusOK, "Dashboard statistics retrieved successfully", stats)
}

// handleLastWatched serves both /last-watched and /last-watched/:playlistId
func (h *handlers) handleLastWatched(c *gin.Context) {
	logger := handlerLogger(c, "handleLastWatched")
	student := currentStudent(c)

	last, err := h.Tracker.GetLastWatchedCourse(c.Request.Context(), student.ID, c.Param("playlistId"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	if last == nil {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "No watched courses found",
			"data":    nil,
		})
		return
	}
	respond(c, http.StatusOK, "Last watched course retrieved successfully", last)
}

func (h *handlers) handleMyCourses(c *gin.Context) {
	logger := handlerLogger(c, "handleMyCourses")
	student := currentStudent(c)

	courses, err := h.Tracker.MyCourses(c.Request.Context(), student.ID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "", courses)
}
