package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"elearn_backend/helpers/auth"
	"elearn_backend/helpers/logs"
	"elearn_backend/modules/catalog"
	"elearn_backend/modules/notifications"
	"elearn_backend/modules/students"
	"elearn_backend/modules/watch"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Deps are the services the HTTP surface is built on. Redis is optional; without it
// rate limiting is off.
type Deps struct {
	Tokens        *auth.TokenManager
	Students      *students.Registry
	Tracker       *watch.Tracker
	Courses       *catalog.Courses
	Playlists     *catalog.Playlists
	Cart          *catalog.Cart
	Settings      *notifications.Settings
	Notifications *notifications.Service
	Redis         *redis.Client

	AllowedOrigins     []string
	ProgressPerMinute  int
	DashboardPerMinute int
}

type handlers struct {
	Deps
}

// NewRouter registers every route under /api.
func NewRouter(deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	config := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !(len(origins) == 1 && origins[0] == "*"),
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(config))

	h := &handlers{Deps: deps}
	limiter := NewRateLimiter(deps.Redis)
	requireStudent := h.authenticate()

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": true,
			})
		})

		api.GET("/courses", h.handleListCourses)
		api.GET("/courses/:courseId", h.handleGetCourse)
		api.GET("/playlists", h.handleListPlaylists)
		api.GET("/playlists/:playlistId", h.handleGetPlaylist)
		api.GET("/settings", h.handleGetSettings)
	}

	authed := api.Group("")
	authed.Use(requireStudent)
	{
		authed.POST("/courses/:courseId/watch", h.handleStartWatch)
		authed.PUT("/courses/:courseId/watch", limiter.Limit("progress", deps.ProgressPerMinute, time.Minute), h.handleUpdateProgress)
		authed.GET("/courses/:courseId/progress", h.handleCourseProgress)
		authed.GET("/watch-history", h.handleWatchHistory)
		authed.GET("/dashboard-stats", limiter.Limit("dashboard", deps.DashboardPerMinute, time.Minute), h.handleDashboardStats)
		authed.GET("/last-watched", h.handleLastWatched)
		authed.GET("/last-watched/:playlistId", h.handleLastWatched)
		authed.GET("/my-courses", h.handleMyCourses)

		authed.POST("/courses", h.handleCreateCourse)
		authed.PUT("/courses/:courseId", h.handleUpdateCourse)
		authed.DELETE("/courses/:courseId", h.handleDeleteCourse)

		authed.POST("/playlists", h.handleCreatePlaylist)
		authed.PUT("/playlists/:playlistId", h.handleUpdatePlaylist)
		authed.DELETE("/playlists/:playlistId", h.handleDeletePlaylist)
		authed.GET("/playlists/:playlistId/courses", h.handlePlaylistCourses)
		authed.POST("/playlists/:playlistId/cart", h.handleAddToCart)
		authed.DELETE("/playlists/:playlistId/cart", h.handleRemoveFromCart)
		authed.GET("/cart", h.handleCart)
		authed.GET("/my-playlists", h.handleMyPlaylists)

		authed.PUT("/settings", h.handleUpdateSettings)
		authed.POST("/settings/send-welcome", h.handleSendWelcome)
		authed.POST("/settings/send-welcome/playlist/:playlistId", h.handleSendWelcomeByPlaylist)
		authed.POST("/settings/send-welcome/playlists", h.handleSendWelcomeByPlaylists)
		authed.GET("/settings/notifications/:studentId", h.handleStudentNotifications)
		authed.POST("/notifications", h.handleSendNotification)
		authed.GET("/notifications/me", h.handleMyNotifications)
	}

	return router
}

// Run serves the API on port until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, deps Deps, port int) error {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":   "web",
		"function": "Run",
		"port":     port,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("✓ HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return <-errCh
}
