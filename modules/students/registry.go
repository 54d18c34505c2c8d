package students

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"elearn_backend/helpers/apperr"
	"elearn_backend/helpers/logs"
	"elearn_backend/modules/students/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"xorm.io/xorm"
)

// Registry reads students and maintains their denormalized watching total.
type Registry struct {
	engine *xorm.Engine
}

func NewRegistry(engine *xorm.Engine) *Registry {
	return &Registry{engine: engine}
}

// FindByID returns the student or a NotFound error.
func (r *Registry) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	has, err := r.engine.Context(ctx).Where("id = ?", id).Get(&student)
	if err != nil {
		return nil, apperr.Internal("failed to load student", err)
	}
	if !has {
		return nil, apperr.NotFound("Student not found")
	}
	return &student, nil
}

// FindByIDs returns the students that exist, keyed by id. Missing ids are simply absent.
func (r *Registry) FindByIDs(ctx context.Context, ids []string) (map[string]models.Student, error) {
	out := make(map[string]models.Student, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []models.Student
	if err := r.engine.Context(ctx).In("id", ids).Find(&rows); err != nil {
		return nil, apperr.Internal("failed to load students", err)
	}
	for _, s := range rows {
		out[s.ID] = s
	}
	return out, nil
}

func (r *Registry) Count(ctx context.Context) (int64, error) {
	n, err := r.engine.Context(ctx).Count(new(models.Student))
	if err != nil {
		return 0, apperr.Internal("failed to count students", err)
	}
	return n, nil
}

type execer interface {
	Exec(sqlOrArgs ...interface{}) (sql.Result, error)
}

func incrementHours(db execer, id string, hours float64) error {
	res, err := db.Exec(
		"UPDATE students SET total_watching_hours = total_watching_hours + ? WHERE id = ?", hours, id)
	if err != nil {
		return apperr.Internal("failed to increment watching hours", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperr.Internal("failed to increment watching hours", err)
	}
	if affected == 0 {
		return apperr.NotFound("Student not found")
	}
	return nil
}

// IncrementTotalWatchingHours adds hours in a single UPDATE so concurrent callers never
// overwrite each other.
func (r *Registry) IncrementTotalWatchingHours(ctx context.Context, id string, hours float64) error {
	return incrementHours(r.engine.Context(ctx), id, hours)
}

// IncrementTotalWatchingHoursIn is IncrementTotalWatchingHours inside the caller's transaction.
func (r *Registry) IncrementTotalWatchingHoursIn(sess *xorm.Session, id string, hours float64) error {
	return incrementHours(sess, id, hours)
}

// TopByWatchingHours returns up to limit students ordered by total watching hours.
func (r *Registry) TopByWatchingHours(ctx context.Context, limit int) ([]models.Student, error) {
	var rows []models.Student
	err := r.engine.Context(ctx).
		Desc("total_watching_hours").
		Asc("created_at").
		Limit(limit).
		Find(&rows)
	if err != nil {
		return nil, apperr.Internal("failed to load top students", err)
	}
	return rows, nil
}

// Create inserts a student row. Used for seeding, accounts are managed elsewhere.
func (r *Registry) Create(ctx context.Context, student *models.Student) error {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":   "students",
		"function": "Create",
	})

	student.Username = strings.TrimSpace(student.Username)
	student.Email = strings.ToLower(strings.TrimSpace(student.Email))
	if student.Username == "" || student.Email == "" {
		return apperr.InvalidArgument("username and email are required")
	}
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.CreatedAt == 0 {
		student.CreatedAt = time.Now().Unix()
	}

	exists, err := r.engine.Context(ctx).
		Where("username = ? OR email = ?", student.Username, student.Email).
		Exist(new(models.Student))
	if err != nil {
		return apperr.Internal("failed to check student", err)
	}
	if exists {
		return apperr.Conflict("Username or email already exists")
	}

	if _, err := r.engine.Context(ctx).Insert(student); err != nil {
		return apperr.Internal("failed to create student", fmt.Errorf("insert %s: %w", student.ID, err))
	}

	logger.WithField("student_id", student.ID).Info("✓ Student created")
	return nil
}
