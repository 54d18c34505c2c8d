package watch

import (
	"context"
	"math"
	"strconv"
	"time"

	"elearn_backend/helpers/apperr"
	"elearn_backend/helpers/logs"
	catalogModels "elearn_backend/modules/catalog/models"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

const (
	activeWindow = 24 * time.Hour
	topLimit     = 5
)

// highViewer reports a completion ratio of at least 80%, compared in integers.
func highViewer(completed, total int64) bool {
	return total > 0 && completed*5 >= total*4
}

type TopCourse struct {
	CourseID      string  `json:"courseId"`
	CourseName    string  `json:"courseName"`
	TotalWatches  int64   `json:"totalWatches"`
	TotalDuration float64 `json:"totalDuration"`
}

type TopStudent struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	TotalWatchingHours float64 `json:"totalWatchingHours"`
}

type HighViewer struct {
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	CompletionRate   float64 `json:"completionRate"`
	CompletedCourses int64   `json:"completedCourses"`
	TotalCourses     int64   `json:"totalCourses"`
}

type HighViewership struct {
	Count    int          `json:"count"`
	Students []HighViewer `json:"students"`
}

type DashboardStats struct {
	ActiveWatchingCount   int64          `json:"activeWatchingCount"`
	NotWatchingCount      int64          `json:"notWatchingCount"`
	NotWatchingPercentage string         `json:"notWatchingPercentage"`
	TotalStudents         int64          `json:"totalStudents"`
	TopWatchedCourses     []TopCourse    `json:"topWatchedCourses"`
	TopStudents           []TopStudent   `json:"topStudents"`
	HighViewership        HighViewership `json:"highViewership"`
}

// GetDashboardStats computes the cross-student aggregates. It only reads.
func (t *Tracker) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":   "watch",
		"function": "GetDashboardStats",
	})

	stats := &DashboardStats{
		TopWatchedCourses: []TopCourse{},
		TopStudents:       []TopStudent{},
		HighViewership:    HighViewership{Students: []HighViewer{}},
	}

	active, err := t.store.activeSessions(ctx, t.now().Add(-activeWindow))
	if err != nil {
		return nil, apperr.Internal("Error fetching dashboard statistics", err)
	}
	total, err := t.students.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.ActiveWatchingCount = active
	stats.TotalStudents = total
	stats.NotWatchingCount = total - active
	if stats.NotWatchingCount < 0 {
		stats.NotWatchingCount = 0
	}
	stats.NotWatchingPercentage = percentage(stats.NotWatchingCount, total)

	if stats.TopWatchedCourses, err = t.topCourses(ctx); err != nil {
		return nil, err
	}

	top, err := t.students.TopByWatchingHours(ctx, topLimit)
	if err != nil {
		return nil, err
	}
	for _, s := range top {
		stats.TopStudents = append(stats.TopStudents, TopStudent{
			ID:                 s.ID,
			Name:               s.Name,
			Email:              s.Email,
			TotalWatchingHours: s.TotalWatchingHours,
		})
	}

	if stats.HighViewership, err = t.highViewership(ctx); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"active":         active,
		"total_students": total,
	}).Debug("✓ Dashboard stats computed")
	return stats, nil
}

// percentage formats part/total*100 with two decimals, "0.00" when total is zero.
func percentage(part, total int64) string {
	if total <= 0 {
		return "0.00"
	}
	return strconv.FormatFloat(float64(part)/float64(total)*100, 'f', 2, 64)
}

func (t *Tracker) topCourses(ctx context.Context) ([]TopCourse, error) {
	rows, err := t.store.courseTotals(ctx)
	if err != nil {
		return nil, apperr.Internal("Error fetching dashboard statistics", err)
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.CourseID)
	}
	courses, err := t.courses.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := []TopCourse{}
	for _, r := range rows {
		c, ok := courses[r.CourseID]
		if !ok {
			continue
		}
		out = append(out, TopCourse{
			CourseID:      r.CourseID,
			CourseName:    c.Name,
			TotalWatches:  r.TotalWatches,
			TotalDuration: r.TotalDuration,
		})
		if len(out) == topLimit {
			break
		}
	}
	return out, nil
}

func (t *Tracker) highViewership(ctx context.Context) (HighViewership, error) {
	out := HighViewership{Students: []HighViewer{}}

	rows, err := t.store.completions(ctx)
	if err != nil {
		return out, apperr.Internal("Error fetching dashboard statistics", err)
	}

	var qualified []studentCompletion
	ids := []string{}
	for _, r := range rows {
		if !highViewer(r.CompletedCourses, r.TotalCourses) {
			continue
		}
		qualified = append(qualified, r)
		ids = append(ids, r.StudentID)
	}

	students, err := t.students.FindByIDs(ctx, ids)
	if err != nil {
		return out, err
	}
	for _, r := range qualified {
		s, ok := students[r.StudentID]
		if !ok {
			continue
		}
		out.Students = append(out.Students, HighViewer{
			Name:             s.Name,
			Email:            s.Email,
			CompletionRate:   float64(r.CompletedCourses) / float64(r.TotalCourses) * 100,
			CompletedCourses: r.CompletedCourses,
			TotalCourses:     r.TotalCourses,
		})
	}
	out.Count = len(out.Students)
	return out, nil
}

// MyCourse is a watched course with the student's progress through it.
type MyCourse struct {
	catalogModels.Course
	LastWatched    int64   `json:"lastWatched"`
	LastWatchedAgo string  `json:"lastWatchedAgo"`
	CreatedAgo     string  `json:"createdAgo"`
	WatchDuration  float64 `json:"watchDuration"`
	LastPosition   float64 `json:"lastPosition"`
	Completed      bool    `json:"completed"`
	Progress       int     `json:"progress"`
}

// MyCourses lists the courses a student has watched, most recent first.
func (t *Tracker) MyCourses(ctx context.Context, studentID string) ([]MyCourse, error) {
	rows, err := t.store.history(ctx, studentID)
	if err != nil {
		return nil, apperr.Internal("Error retrieving courses", err)
	}
	courses, err := t.courses.FindByIDs(ctx, courseIDs(rows))
	if err != nil {
		return nil, err
	}

	out := make([]MyCourse, 0, len(rows))
	for _, rec := range rows {
		c, ok := courses[rec.CourseID]
		if !ok {
			continue
		}
		length := c.Duration
		if length <= 0 {
			length = 1
		}
		progress := int(math.Round(rec.LastPosition / length * 100))
		if progress > 100 {
			progress = 100
		}
		out = append(out, MyCourse{
			Course:         c,
			LastWatched:    rec.WatchedAt,
			LastWatchedAgo: humanize.Time(time.Unix(rec.WatchedAt, 0)),
			CreatedAgo:     humanize.Time(time.Unix(c.CreatedAt, 0)),
			WatchDuration:  rec.WatchDuration,
			LastPosition:   rec.LastPosition,
			Completed:      rec.Completed,
			Progress:       progress,
		})
	}
	return out, nil
}
