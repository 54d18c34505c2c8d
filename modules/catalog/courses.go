package catalog

import (
	"context"
	"strings"
	"time"

	"elearn_backend/helpers/apperr"
	"elearn_backend/helpers/logs"
	"elearn_backend/helpers/validation"
	"elearn_backend/modules/catalog/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"xorm.io/xorm"
)

// CourseInput creates a course. When Duration is omitted and VideoLink points at a file
// under the media directory, the duration is probed.
type CourseInput struct {
	Title       string              `json:"title" validate:"notblank,max=250"`
	Description string              `json:"description" validate:"notblank"`
	Name        string              `json:"name" validate:"notblank,max=250"`
	PlaylistID  string              `json:"playlistId" validate:"notblank"`
	TitleFile   string              `json:"titleFile" validate:"notblank,max=500"`
	VideoLink   string              `json:"videoLink" validate:"notblank,max=500"`
	Duration    *float64            `json:"duration" validate:"omitempty,gte=0"`
	IsLocked    *bool               `json:"isLocked"`
	SocialMedia *models.SocialMedia `json:"socialMedia"`
}

// CourseUpdate changes only the fields that are set.
type CourseUpdate struct {
	Title       *string             `json:"title" validate:"omitempty,notblank,max=250"`
	Description *string             `json:"description" validate:"omitempty,notblank"`
	Name        *string             `json:"name" validate:"omitempty,notblank,max=250"`
	PlaylistID  *string             `json:"playlistId" validate:"omitempty,notblank"`
	TitleFile   *string             `json:"titleFile" validate:"omitempty,notblank,max=500"`
	VideoLink   *string             `json:"videoLink" validate:"omitempty,notblank,max=500"`
	Duration    *float64            `json:"duration" validate:"omitempty,gte=0"`
	IsLocked    *bool               `json:"isLocked"`
	SocialMedia *models.SocialMedia `json:"socialMedia"`
}

type PlaylistSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// CourseView is a course with its playlist summary attached.
type CourseView struct {
	models.Course
	Playlist *PlaylistSummary `json:"playlist"`
}

type Courses struct {
	engine   *xorm.Engine
	mediaDir string
	probe    prober
}

func NewCourses(engine *xorm.Engine, opts Options) *Courses {
	return &Courses{
		engine:   engine,
		mediaDir: opts.MediaDir,
		probe:    defaultProber(),
	}
}

// FindByID returns the course or a NotFound error.
func (c *Courses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	has, err := c.engine.Context(ctx).Where("id = ?", id).Get(&course)
	if err != nil {
		return nil, apperr.Internal("failed to load course", err)
	}
	if !has {
		return nil, apperr.NotFound("Course not found")
	}
	return &course, nil
}

// FindByIDs returns the existing courses keyed by id.
func (c *Courses) FindByIDs(ctx context.Context, ids []string) (map[string]models.Course, error) {
	out := make(map[string]models.Course, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []models.Course
	if err := c.engine.Context(ctx).In("id", ids).Find(&rows); err != nil {
		return nil, apperr.Internal("failed to load courses", err)
	}
	for _, course := range rows {
		out[course.ID] = course
	}
	return out, nil
}

// FindByPlaylist returns the playlist's courses in creation order.
func (c *Courses) FindByPlaylist(ctx context.Context, playlistID string) ([]models.Course, error) {
	rows := []models.Course{}
	err := c.engine.Context(ctx).
		Where("playlist_id = ?", playlistID).
		Asc("created_at", "title").
		Find(&rows)
	if err != nil {
		return nil, apperr.Internal("failed to load playlist courses", err)
	}
	return rows, nil
}

func (c *Courses) List(ctx context.Context) ([]CourseView, error) {
	var rows []models.Course
	if err := c.engine.Context(ctx).Asc("created_at", "title").Find(&rows); err != nil {
		return nil, apperr.Internal("failed to list courses", err)
	}
	return c.attachPlaylists(ctx, rows)
}

func (c *Courses) Get(ctx context.Context, id string) (*CourseView, error) {
	course, err := c.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := c.attachPlaylists(ctx, []models.Course{*course})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (c *Courses) attachPlaylists(ctx context.Context, courses []models.Course) ([]CourseView, error) {
	ids := make([]string, 0, len(courses))
	for _, course := range courses {
		ids = append(ids, course.PlaylistID)
	}

	playlists := map[string]models.Playlist{}
	if len(ids) > 0 {
		var rows []models.Playlist
		if err := c.engine.Context(ctx).In("id", ids).Find(&rows); err != nil {
			return nil, apperr.Internal("failed to load playlists", err)
		}
		for _, p := range rows {
			playlists[p.ID] = p
		}
	}

	views := make([]CourseView, 0, len(courses))
	for _, course := range courses {
		view := CourseView{Course: course}
		if p, ok := playlists[course.PlaylistID]; ok {
			view.Playlist = &PlaylistSummary{
				ID:          p.ID,
				Title:       p.Title,
				Description: p.Description,
				Image:       p.Image,
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// resolveDuration probes the video when no duration was given. Probe failures leave 0.
func (c *Courses) resolveDuration(ctx context.Context, given *float64, videoLink string) float64 {
	if given != nil {
		return *given
	}
	if c.probe == nil {
		return 0
	}
	path, ok := localMediaPath(c.mediaDir, videoLink)
	if !ok {
		return 0
	}
	d, err := c.probe(ctx, path)
	if err != nil {
		return 0
	}
	return d
}

// Create inserts a course and adds its duration to the playlist's video length.
func (c *Courses) Create(ctx context.Context, in CourseInput) (*models.Course, error) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":   "catalog",
		"function": "CreateCourse",
	})

	if err := validation.Check(in); err != nil {
		return nil, err
	}

	course := &models.Course{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Name:        strings.TrimSpace(in.Name),
		TitleFile:   strings.TrimSpace(in.TitleFile),
		VideoLink:   strings.TrimSpace(in.VideoLink),
		PlaylistID:  strings.TrimSpace(in.PlaylistID),
		IsLocked:    true,
		CreatedAt:   time.Now().Unix(),
	}
	if in.IsLocked != nil {
		course.IsLocked = *in.IsLocked
	}
	if in.SocialMedia != nil {
		course.SocialMedia = *in.SocialMedia
	}
	course.Duration = c.resolveDuration(ctx, in.Duration, course.VideoLink)

	err := inTx(ctx, c.engine, func(sess *xorm.Session) error {
		exists, err := sess.Where("id = ?", course.PlaylistID).Exist(new(models.Playlist))
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("Playlist not found")
		}

		taken, err := sess.Where("title = ?", course.Title).Exist(new(models.Course))
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("Course title already exists")
		}

		if _, err := sess.Insert(course); err != nil {
			return err
		}
		return addVideoLength(sess, course.PlaylistID, course.Duration)
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to create course")
		return nil, apperr.Wrap("Error creating course", err)
	}

	logger.WithFields(logrus.Fields{
		"course_id":   course.ID,
		"playlist_id": course.PlaylistID,
		"duration":    course.Duration,
	}).Info("✓ Course created")
	return course, nil
}

// Update applies the set fields and moves the duration between playlist totals as needed.
func (c *Courses) Update(ctx context.Context, id string, up CourseUpdate) (*CourseView, error) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":    "catalog",
		"function":  "UpdateCourse",
		"course_id": id,
	})

	if err := validation.Check(up); err != nil {
		return nil, err
	}

	var probed *float64
	if up.Duration == nil && up.VideoLink != nil {
		d := c.resolveDuration(ctx, nil, strings.TrimSpace(*up.VideoLink))
		probed = &d
	}

	err := inTx(ctx, c.engine, func(sess *xorm.Session) error {
		var old models.Course
		has, err := sess.Where("id = ?", id).Get(&old)
		if err != nil {
			return err
		}
		if !has {
			return apperr.NotFound("Course not found")
		}

		cols := map[string]interface{}{}
		if up.Title != nil {
			title := strings.TrimSpace(*up.Title)
			taken, err := sess.Where("title = ? AND id <> ?", title, id).Exist(new(models.Course))
			if err != nil {
				return err
			}
			if taken {
				return apperr.Conflict("Course title already exists")
			}
			cols["title"] = title
		}
		if up.Description != nil {
			cols["description"] = strings.TrimSpace(*up.Description)
		}
		if up.Name != nil {
			cols["name"] = strings.TrimSpace(*up.Name)
		}
		if up.TitleFile != nil {
			cols["title_file"] = strings.TrimSpace(*up.TitleFile)
		}
		if up.VideoLink != nil {
			cols["video_link"] = strings.TrimSpace(*up.VideoLink)
		}
		if up.IsLocked != nil {
			cols["is_locked"] = *up.IsLocked
		}
		if up.SocialMedia != nil {
			cols["social_whatsapp"] = up.SocialMedia.Whatsapp
			cols["social_telegram"] = up.SocialMedia.Telegram
		}

		newPlaylist := old.PlaylistID
		if up.PlaylistID != nil {
			newPlaylist = strings.TrimSpace(*up.PlaylistID)
			exists, err := sess.Where("id = ?", newPlaylist).Exist(new(models.Playlist))
			if err != nil {
				return err
			}
			if !exists {
				return apperr.NotFound("Playlist not found")
			}
			cols["playlist_id"] = newPlaylist
		}

		newDuration := old.Duration
		if up.Duration != nil {
			newDuration = *up.Duration
		} else if probed != nil {
			newDuration = *probed
		}
		cols["duration"] = newDuration

		if _, err := sess.Table(new(models.Course)).Where("id = ?", id).Update(cols); err != nil {
			return err
		}

		if newPlaylist != old.PlaylistID {
			if err := addVideoLength(sess, old.PlaylistID, -old.Duration); err != nil {
				return err
			}
			return addVideoLength(sess, newPlaylist, newDuration)
		}
		return addVideoLength(sess, old.PlaylistID, newDuration-old.Duration)
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to update course")
		return nil, apperr.Wrap("Error updating course", err)
	}

	logger.Info("✓ Course updated")
	return c.Get(ctx, id)
}

// Delete removes the course. Its watch records go with it through the foreign key.
func (c *Courses) Delete(ctx context.Context, id string) error {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":    "catalog",
		"function":  "DeleteCourse",
		"course_id": id,
	})

	err := inTx(ctx, c.engine, func(sess *xorm.Session) error {
		var old models.Course
		has, err := sess.Where("id = ?", id).Get(&old)
		if err != nil {
			return err
		}
		if !has {
			return apperr.NotFound("Course not found")
		}
		if _, err := sess.Where("id = ?", id).Delete(new(models.Course)); err != nil {
			return err
		}
		return addVideoLength(sess, old.PlaylistID, -old.Duration)
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to delete course")
		return apperr.Wrap("Error deleting course", err)
	}

	logger.Info("✓ Course deleted")
	return nil
}

func addVideoLength(sess *xorm.Session, playlistID string, seconds float64) error {
	if seconds == 0 {
		return nil
	}
	_, err := sess.Exec("UPDATE playlists SET video_length = video_length + ? WHERE id = ?", seconds, playlistID)
	return err
}
