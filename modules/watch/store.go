package watch

import (
	"context"
	"time"

	"elearn_backend/modules/watch/models"

	"github.com/google/uuid"
	"xorm.io/xorm"
)

// store is the course_watches data access used by Tracker.
type store struct {
	engine *xorm.Engine
}

func (s *store) get(ctx context.Context, studentID, courseID string) (*models.CourseWatch, bool, error) {
	var rec models.CourseWatch
	has, err := s.engine.Context(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Get(&rec)
	if err != nil || !has {
		return nil, has, err
	}
	return &rec, true, nil
}

// upsertStart creates the record or, when it exists, only moves watched_at.
func (s *store) upsertStart(ctx context.Context, studentID, courseID string, now time.Time) error {
	_, err := s.engine.Context(ctx).Exec(`
		INSERT INTO course_watches (id, student_id, course_id, watched_at, watch_duration, last_position, completed, revision, created_at)
		VALUES (?, ?, ?, ?, 0, 0, ?, 0, ?)
		ON CONFLICT (student_id, course_id) DO UPDATE SET watched_at = excluded.watched_at
	`, uuid.NewString(), studentID, courseID, now.Unix(), false, now.Unix())
	return err
}

// addProgress adds delta to the record's watch time, moves its position and sets
// completed once reached, all in one statement. It reports whether the record still exists.
func (s *store) addProgress(sess *xorm.Session, id string, delta, position float64, reached bool) (bool, error) {
	res, err := sess.Exec(`
		UPDATE course_watches
		SET watch_duration = watch_duration + ?,
			last_position = ?,
			completed = (completed OR ?),
			revision = revision + 1
		WHERE id = ?
	`, delta, position, reached, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *store) getByID(sess *xorm.Session, id string) (*models.CourseWatch, error) {
	var rec models.CourseWatch
	if _, err := sess.ID(id).Get(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// history returns a student's records, most recently watched first.
func (s *store) history(ctx context.Context, studentID string) ([]models.CourseWatch, error) {
	rows := []models.CourseWatch{}
	err := s.engine.Context(ctx).
		Where("student_id = ?", studentID).
		Desc("watched_at", "created_at").
		Find(&rows)
	return rows, err
}

// latest returns the most recently watched record, optionally limited to courseIDs.
func (s *store) latest(ctx context.Context, studentID string, courseIDs []string) (*models.CourseWatch, bool, error) {
	sess := s.engine.Context(ctx).Where("student_id = ?", studentID)
	if courseIDs != nil {
		sess = sess.In("course_id", courseIDs)
	}

	var rec models.CourseWatch
	has, err := sess.Desc("watched_at", "created_at").Get(&rec)
	if err != nil || !has {
		return nil, has, err
	}
	return &rec, true, nil
}

// activeSessions counts watch records opened or resumed since the given time.
func (s *store) activeSessions(ctx context.Context, since time.Time) (int64, error) {
	return s.engine.Context(ctx).Where("watched_at >= ?", since.Unix()).Count(new(models.CourseWatch))
}

type courseTotals struct {
	CourseID      string  `xorm:"'course_id'"`
	TotalWatches  int64   `xorm:"'total_watches'"`
	TotalDuration float64 `xorm:"'total_duration'"`
	FirstWatch    int64   `xorm:"'first_watch'"`
}

// courseTotals groups records per course, most watched first, ties by first watch.
func (s *store) courseTotals(ctx context.Context) ([]courseTotals, error) {
	var rows []courseTotals
	err := s.engine.Context(ctx).SQL(`
		SELECT course_id,
			COUNT(*) AS total_watches,
			COALESCE(SUM(watch_duration), 0) AS total_duration,
			MIN(created_at) AS first_watch
		FROM course_watches
		GROUP BY course_id
		ORDER BY total_watches DESC, first_watch ASC, course_id ASC
	`).Find(&rows)
	return rows, err
}

type studentCompletion struct {
	StudentID        string `xorm:"'student_id'"`
	CompletedCourses int64  `xorm:"'completed_courses'"`
	TotalCourses     int64  `xorm:"'total_courses'"`
}

// completions counts completed and total records per student having at least one record.
func (s *store) completions(ctx context.Context) ([]studentCompletion, error) {
	var rows []studentCompletion
	err := s.engine.Context(ctx).SQL(`
		SELECT student_id,
			SUM(CASE WHEN completed THEN 1 ELSE 0 END) AS completed_courses,
			COUNT(*) AS total_courses
		FROM course_watches
		GROUP BY student_id
		ORDER BY student_id
	`).Find(&rows)
	return rows, err
}
