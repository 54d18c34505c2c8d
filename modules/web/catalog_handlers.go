package web

import (
	"net/http"

	"elearn_backend/modules/catalog"

	"github.com/gin-gonic/gin"
)

func (h *handlers) handleListCourses(c *gin.Context) {
	logger := handlerLogger(c, "handleListCourses")

	courses, err := h.Courses.List(c.Request.Context())
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "", courses)
}

func (h *handlers) handleGetCourse(c *gin.Context) {
	logger := handlerLogger(c, "handleGetCourse")

	course, err := h.Courses.Get(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "", course)
}

func (h *handlers) handleCreateCourse(c *gin.Context) {
	logger := handlerLogger(c, "handleCreateCourse")

	var in catalog.CourseInput
	if err := bindJSON(c, &in); err != nil {
		respondError(c, logger, err)
		return
	}
	course, err := h.Courses.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusCreated, "Course created successfully", course)
}

func (h *handlers) handleUpdateCourse(c *gin.Context) {
	logger := handlerLogger(c, "handleUpdateCourse")

	var up catalog.CourseUpdate
	if err := bindJSON(c, &up); err != nil {
		respondError(c, logger, err)
		return
	}
	course, err := h.Courses.Update(c.Request.Context(), c.Param("courseId"), up)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "Course updated successfully", course)
}

func (h *handlers) handleDeleteCourse(c *gin.Context) {
	logger := handlerLogger(c, "handleDeleteCourse")

	if err := h.Courses.Delete(c.Request.Context(), c.Param("courseId")); err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "Course deleted successfully", nil)
}

func (h *handlers) handleListPlaylists(c *gin.Context) {
	logger := handlerLogger(c, "handleListPlaylists")

	playlists, err := h.Playlists.List(c.Request.Context())
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "", playlists)
}

func (h *handlers) handleGetPlaylist(c *gin.Context) {
	logger := handlerLogger(c, "handleGetPlaylist")

	playlist, err := h.Playlists.Get(c.Request.Context(), c.Param("playlistId"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "", playlist)
}

func (h *handlers) handleCreatePlaylist(c *gin.Context) {
	logger := handlerLogger(c, "handleCreatePlaylist")

	var in catalog.PlaylistInput
	if err := bindJSON(c, &in); err != nil {
		respondError(c, logger, err)
		return
	}
	playlist, err := h.Playlists.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusCreated, "Playlist created successfully", playlist)
}

func (h *handlers) handleUpdatePlaylist(c *gin.Context) {
	logger := handlerLogger(c, "handleUpdatePlaylist")

	var up catalog.PlaylistUpdate
	if err := bindJSON(c, &up); err != nil {
		respondError(c, logger, err)
		return
	}
	playlist, err := h.Playlists.Update(c.Request.Context(), c.Param("playlistId"), up)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "Playlist updated successfully", playlist)
}

func (h *handlers) handleDeletePlaylist(c *gin.Context) {
	logger := handlerLogger(c, "handleDeletePlaylist")

	if err := h.Playlists.Delete(c.Request.Context(), c.Param("playlistId")); err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "Playlist deleted successfully", nil)
}

func (h *handlers) handlePlaylistCourses(c *gin.Context) {
	logger := handlerLogger(c, "handlePlaylistCourses")

	courses, err := h.Playlists.Courses(c.Request.Context(), c.Param("playlistId"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "", courses)
}

// handleAddToCart adds the playlist to the student's cart and enrolls them
func (h *handlers) handleAddToCart(c *gin.Context) {
	logger := handlerLogger(c, "handleAddToCart")
	student := currentStudent(c)

	res, err := h.Cart.Add(c.Request.Context(), student.ID, c.Param("playlistId"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "Playlist added to cart successfully", res)
}

func (h *handlers) handleRemoveFromCart(c *gin.Context) {
	logger := handlerLogger(c, "handleRemoveFromCart")
	student := currentStudent(c)

	if err := h.Cart.Remove(c.Request.Context(), student.ID, c.Param("playlistId")); err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "Playlist removed from cart successfully", nil)
}

func (h *handlers) handleCart(c *gin.Context) {
	logger := handlerLogger(c, "handleCart")
	student := currentStudent(c)

	items, err := h.Cart.Items(c.Request.Context(), student.ID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "", items)
}

func (h *handlers) handleMyPlaylists(c *gin.Context) {
	logger := handlerLogger(c, "handleMyPlaylists")
	student := currentStudent(c)

	playlists, err := h.Cart.MyPlaylists(c.Request.Context(), student.ID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	respond(c, http.StatusOK, "", playlists)
}
