// Package watch tracks per-student course progress and rolls it up into student totals
// and dashboard statistics.
package watch

import (
	"context"
	"math"
	"time"

	"elearn_backend/helpers/apperr"
	"elearn_backend/helpers/logs"
	catalogModels "elearn_backend/modules/catalog/models"
	studentModels "elearn_backend/modules/students/models"
	"elearn_backend/modules/watch/models"

	"github.com/sirupsen/logrus"
	"xorm.io/xorm"
)

// StudentRegistry is the part of the student registry the tracker relies on.
type StudentRegistry interface {
	FindByID(ctx context.Context, id string) (*studentModels.Student, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]studentModels.Student, error)
	Count(ctx context.Context) (int64, error)
	IncrementTotalWatchingHoursIn(sess *xorm.Session, id string, hours float64) error
	TopByWatchingHours(ctx context.Context, limit int) ([]studentModels.Student, error)
}

// CourseCatalog is the read-only course lookup the tracker relies on.
type CourseCatalog interface {
	FindByID(ctx context.Context, id string) (*catalogModels.Course, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]catalogModels.Course, error)
	FindByPlaylist(ctx context.Context, playlistID string) ([]catalogModels.Course, error)
}

type Tracker struct {
	store    *store
	students StudentRegistry
	courses  CourseCatalog
	locker   Locker
	now      func() time.Time
}

// NewTracker builds a tracker. A nil locker falls back to an in-process KeyedMutex.
func NewTracker(engine *xorm.Engine, students StudentRegistry, courses CourseCatalog, locker Locker) *Tracker {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	return &Tracker{
		store:    &store{engine: engine},
		students: students,
		courses:  courses,
		locker:   locker,
		now:      time.Now,
	}
}

// Progress is the playback state reported back to the player.
type Progress struct {
	LastPosition  float64 `json:"lastPosition"`
	WatchDuration float64 `json:"watchDuration"`
	Completed     bool    `json:"completed"`
}

// StartWatch opens a watch session. An existing record keeps its progress and only gets
// a new watchedAt.
func (t *Tracker) StartWatch(ctx context.Context, studentID, courseID string) (*models.CourseWatch, error) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":     "watch",
		"function":   "StartWatch",
		"student_id": studentID,
		"course_id":  courseID,
	})

	if _, err := t.courses.FindByID(ctx, courseID); err != nil {
		return nil, err
	}
	if _, err := t.students.FindByID(ctx, studentID); err != nil {
		return nil, err
	}

	if err := t.store.upsertStart(ctx, studentID, courseID, t.now()); err != nil {
		logger.WithError(err).Error("Failed to upsert watch record")
		return nil, apperr.Internal("Error starting course watch", err)
	}

	rec, has, err := t.store.get(ctx, studentID, courseID)
	if err != nil {
		return nil, apperr.Internal("Error starting course watch", err)
	}
	if !has {
		// the course was deleted between the upsert and the read
		return nil, apperr.NotFound("Course not found")
	}

	logger.WithField("watch_id", rec.ID).Info("✓ Watch session started")
	return rec, nil
}

func validPosition(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// UpdateProgress records a playback position. The delta is measured against the record
// as this call read it and is added to the stored watch time, never written over it, so
// concurrent reports from the same base each count. The record change and the student's
// hours commit in one transaction, under a per (student, course) lock.
func (t *Tracker) UpdateProgress(ctx context.Context, studentID, courseID string, currentPosition, courseDuration float64) (*Progress, error) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":     "watch",
		"function":   "UpdateProgress",
		"student_id": studentID,
		"course_id":  courseID,
	})

	if !validPosition(currentPosition) {
		return nil, apperr.InvalidArgument("Current position must be a non-negative number")
	}
	if !validPosition(courseDuration) || courseDuration == 0 {
		return nil, apperr.InvalidArgument("Duration must be a positive number")
	}

	snapshot, has, err := t.store.get(ctx, studentID, courseID)
	if err != nil {
		return nil, apperr.Internal("Error updating watch progress", err)
	}
	if !has {
		return nil, apperr.NotFound("Watch session not found, start watching first")
	}
	delta := snapshot.Advance(currentPosition, courseDuration)
	reached := snapshot.Completed

	unlock, err := t.locker.Lock(ctx, studentID+":"+courseID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Internal("Error updating watch progress", err)
		}
		// the write is a single atomic increment either way
		logger.WithError(err).Warn("Watch lock unavailable, writing without it")
	} else {
		defer unlock()
	}

	rec, err := t.commitProgress(ctx, snapshot.ID, studentID, delta, currentPosition, reached)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			logger.WithError(err).WithField("delta", delta).Error("Failed to commit watch progress")
		}
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"position":  rec.LastPosition,
		"delta":     delta,
		"completed": rec.Completed,
	}).Debug("✓ Watch progress updated")

	return &Progress{
		LastPosition:  rec.LastPosition,
		WatchDuration: rec.WatchDuration,
		Completed:     rec.Completed,
	}, nil
}

func (t *Tracker) commitProgress(ctx context.Context, recordID, studentID string, delta, position float64, reached bool) (*models.CourseWatch, error) {
	sess := t.store.engine.NewSession()
	defer sess.Close()
	sess = sess.Context(ctx)

	if err := sess.Begin(); err != nil {
		return nil, apperr.Internal("Error updating watch progress", err)
	}

	found, err := t.store.addProgress(sess, recordID, delta, position, reached)
	if err != nil {
		sess.Rollback()
		return nil, apperr.Internal("Error updating watch progress", err)
	}
	if !found {
		// the course or the student was deleted after the read
		sess.Rollback()
		return nil, apperr.NotFound("Watch session not found, start watching first")
	}

	if delta > 0 {
		if err := t.students.IncrementTotalWatchingHoursIn(sess, studentID, delta/3600); err != nil {
			sess.Rollback()
			return nil, apperr.Wrap("Error updating watch progress", err)
		}
	}

	rec, err := t.store.getByID(sess, recordID)
	if err != nil {
		sess.Rollback()
		return nil, apperr.Internal("Error updating watch progress", err)
	}
	if err := sess.Commit(); err != nil {
		return nil, apperr.Internal("Error updating watch progress", err)
	}
	return rec, nil
}

// GetCourseProgress returns zeroed progress when the student never started the course.
func (t *Tracker) GetCourseProgress(ctx context.Context, studentID, courseID string) (*Progress, bool, error) {
	rec, has, err := t.store.get(ctx, studentID, courseID)
	if err != nil {
		return nil, false, apperr.Internal("Error retrieving course progress", err)
	}
	if !has {
		return &Progress{}, false, nil
	}
	return &Progress{
		LastPosition:  rec.LastPosition,
		WatchDuration: rec.WatchDuration,
		Completed:     rec.Completed,
	}, true, nil
}

// CourseSummary is the course part of a history entry.
type CourseSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	TitleFile   string `json:"titleFile"`
}

type HistoryEntry struct {
	models.CourseWatch
	Course *CourseSummary `json:"course"`
}

type WatchHistory struct {
	TotalWatchingHours float64        `json:"totalWatchingHours"`
	History            []HistoryEntry `json:"history"`
}

// GetWatchHistory lists the student's records newest first. Entries of deleted courses
// carry a nil course.
func (t *Tracker) GetWatchHistory(ctx context.Context, studentID string) (*WatchHistory, error) {
	student, err := t.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	rows, err := t.store.history(ctx, studentID)
	if err != nil {
		return nil, apperr.Internal("Error retrieving watch history", err)
	}

	courses, err := t.courses.FindByIDs(ctx, courseIDs(rows))
	if err != nil {
		return nil, err
	}

	out := &WatchHistory{
		TotalWatchingHours: student.TotalWatchingHours,
		History:            make([]HistoryEntry, 0, len(rows)),
	}
	for _, rec := range rows {
		entry := HistoryEntry{CourseWatch: rec}
		if c, ok := courses[rec.CourseID]; ok {
			entry.Course = &CourseSummary{
				ID:          c.ID,
				Title:       c.Title,
				Description: c.Description,
				TitleFile:   c.TitleFile,
			}
		}
		out.History = append(out.History, entry)
	}
	return out, nil
}

type LastWatched struct {
	Course        *catalogModels.Course `json:"course"`
	WatchDuration float64               `json:"watchDuration"`
	WatchedAt     int64                 `json:"watchedAt"`
	LastPosition  float64               `json:"lastPosition"`
	Completed     bool                  `json:"completed"`
}

// GetLastWatchedCourse returns the most recently watched course, limited to playlistID
// when it is not empty. Nil means nothing matched.
func (t *Tracker) GetLastWatchedCourse(ctx context.Context, studentID, playlistID string) (*LastWatched, error) {
	var filter []string
	if playlistID != "" {
		courses, err := t.courses.FindByPlaylist(ctx, playlistID)
		if err != nil {
			return nil, err
		}
		if len(courses) == 0 {
			return nil, nil
		}
		filter = make([]string, 0, len(courses))
		for _, c := range courses {
			filter = append(filter, c.ID)
		}
	}

	rec, has, err := t.store.latest(ctx, studentID, filter)
	if err != nil {
		return nil, apperr.Internal("Error getting last watched course", err)
	}
	if !has {
		return nil, nil
	}

	course, err := t.courses.FindByID(ctx, rec.CourseID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	return &LastWatched{
		Course:        course,
		WatchDuration: rec.WatchDuration,
		WatchedAt:     rec.WatchedAt,
		LastPosition:  rec.LastPosition,
		Completed:     rec.Completed,
	}, nil
}

func courseIDs(rows []models.CourseWatch) []string {
	ids := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, rec := range rows {
		if !seen[rec.CourseID] {
			seen[rec.CourseID] = true
			ids = append(ids, rec.CourseID)
		}
	}
	return ids
}
