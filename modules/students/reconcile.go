package students

import (
	"context"
	"math"

	"elearn_backend/helpers/apperr"
	"elearn_backend/helpers/logs"

	"github.com/sirupsen/logrus"
)

// driftTolerance is the smallest difference in hours reported as drift.
const driftTolerance = 1e-6

// Drift describes a student whose stored total disagrees with the sum of their watch records.
type Drift struct {
	StudentID string  `xorm:"'student_id'" json:"studentId"`
	Stored    float64 `xorm:"'stored'" json:"stored"`
	Expected  float64 `xorm:"'expected'" json:"expected"`
	Fixed     bool    `xorm:"-" json:"fixed"`
}

// ReconcileWatchingHours compares every stored total_watching_hours with
// SUM(watch_duration)/3600 over the student's existing watch records. With fix set, a
// total below its records is raised, and only if it still holds the audited value.
// Totals above their records are reported and left alone: deleting a course removes its
// watch records but not the hours the student already watched.
func (r *Registry) ReconcileWatchingHours(ctx context.Context, fix bool) ([]Drift, error) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":   "students",
		"function": "ReconcileWatchingHours",
	})

	var rows []Drift
	err := r.engine.Context(ctx).SQL(`
		SELECT s.id AS student_id,
			s.total_watching_hours AS stored,
			COALESCE(SUM(w.watch_duration), 0) / 3600.0 AS expected
		FROM students s
		LEFT JOIN course_watches w ON w.student_id = s.id
		GROUP BY s.id, s.total_watching_hours
	`).Find(&rows)
	if err != nil {
		return nil, apperr.Internal("failed to audit watching hours", err)
	}

	var drifts []Drift
	for _, d := range rows {
		if math.Abs(d.Stored-d.Expected) <= driftTolerance {
			continue
		}
		if fix && d.Stored < d.Expected {
			res, err := r.engine.Context(ctx).Exec(
				"UPDATE students SET total_watching_hours = ? WHERE id = ? AND total_watching_hours = ?",
				d.Expected, d.StudentID, d.Stored)
			if err != nil {
				logger.WithError(err).WithField("student_id", d.StudentID).Warn("Failed to correct watching hours")
			} else if n, _ := res.RowsAffected(); n > 0 {
				d.Fixed = true
			}
		}
		drifts = append(drifts, d)
	}

	if len(drifts) > 0 {
		logger.WithFields(logrus.Fields{
			"drifted": len(drifts),
			"fix":     fix,
		}).Warn("Watching hours drift detected")
	} else {
		logger.WithField("students", len(rows)).Debug("✓ Watching hours consistent")
	}
	return drifts, nil
}
