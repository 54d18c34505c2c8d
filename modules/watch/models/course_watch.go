package models

// CourseWatch is one student's progress through one course. Positions and durations are
// in seconds, timestamps are unix seconds.
type CourseWatch struct {
	ID            string  `xorm:"pk varchar(36) 'id'" json:"id"`
	StudentID     string  `xorm:"varchar(36) not null unique(student_course) 'student_id'" json:"studentId"`
	CourseID      string  `xorm:"varchar(36) not null unique(student_course) 'course_id'" json:"courseId"`
	WatchedAt     int64   `xorm:"not null index 'watched_at'" json:"watchedAt"`
	WatchDuration float64 `xorm:"not null default 0 'watch_duration'" json:"watchDuration"`
	LastPosition  float64 `xorm:"not null default 0 'last_position'" json:"lastPosition"`
	Completed     bool    `xorm:"not null default false 'completed'" json:"completed"`
	Revision      int64   `xorm:"not null default 0 'revision'" json:"-"`
	CreatedAt     int64   `xorm:"not null 'created_at'" json:"createdAt"`
}

// TableName returns the table name for CourseWatch
func (CourseWatch) TableName() string {
	return "course_watches"
}

// CompletionThreshold is the share of a course that counts as finished.
const CompletionThreshold = 0.9

// Advance applies a progress report. Watch time only grows by forward movement and
// completion never reverts. It returns the seconds added to WatchDuration.
func (w *CourseWatch) Advance(currentPosition, courseDuration float64) float64 {
	delta := currentPosition - w.LastPosition
	if delta < 0 {
		delta = 0
	}
	w.WatchDuration += delta
	w.LastPosition = currentPosition
	w.Completed = w.Completed || currentPosition >= CompletionThreshold*courseDuration
	return delta
}
