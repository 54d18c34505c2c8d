package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"elearn_backend/helpers/apperr"
	"elearn_backend/helpers/logs"
	"elearn_backend/helpers/validation"
	catalogModels "elearn_backend/modules/catalog/models"
	"elearn_backend/modules/notifications/models"
	studentModels "elearn_backend/modules/students/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"xorm.io/xorm"
)

type StudentLookup interface {
	FindByID(ctx context.Context, id string) (*studentModels.Student, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]studentModels.Student, error)
}

type PlaylistLookup interface {
	Get(ctx context.Context, id string) (*catalogModels.Playlist, error)
}

type EnrollmentLookup interface {
	EnrolledStudentIDs(ctx context.Context, playlistIDs []string) ([]string, error)
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type SendInput struct {
	StudentIDs []string `json:"studentIds" validate:"required,min=1,dive,notblank"`
	Message    string   `json:"message" validate:"notblank"`
	Type       string   `json:"type" validate:"omitempty,oneof=welcome course general"`
}

type Recipient struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	HasDeviceToken bool   `json:"hasDeviceToken"`
}

type PlaylistRef struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	StudentCount int    `json:"studentCount"`
}

type WelcomeResult struct {
	Notifications []models.Notification `json:"notifications"`
	Message       string                `json:"message"`
	Playlists     []PlaylistRef         `json:"playlists,omitempty"`
	SentTo        []Recipient           `json:"sentTo"`
}

type Pagination struct {
	CurrentPage        int   `json:"currentPage"`
	TotalPages         int   `json:"totalPages"`
	TotalNotifications int64 `json:"totalNotifications"`
	Limit              int   `json:"limit"`
}

type StudentNotifications struct {
	Notifications []models.Notification `json:"notifications"`
	Pagination    Pagination            `json:"pagination"`
	Student       Recipient             `json:"student"`
}

type Service struct {
	engine      *xorm.Engine
	settings    *Settings
	students    StudentLookup
	playlists   PlaylistLookup
	enrollments EnrollmentLookup
	now         func() time.Time
}

func NewService(engine *xorm.Engine, settings *Settings, students StudentLookup, playlists PlaylistLookup, enrollments EnrollmentLookup) *Service {
	return &Service{
		engine:      engine,
		settings:    settings,
		students:    students,
		playlists:   playlists,
		enrollments: enrollments,
		now:         time.Now,
	}
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// record inserts one notification per student in a single transaction.
func (s *Service) record(ctx context.Context, studentIDs []string, message, kind string) ([]models.Notification, error) {
	now := s.now().Unix()
	rows := make([]models.Notification, 0, len(studentIDs))
	for _, id := range studentIDs {
		rows = append(rows, models.Notification{
			ID:        uuid.NewString(),
			StudentID: id,
			Message:   message,
			Type:      kind,
			CreatedAt: now,
		})
	}

	sess := s.engine.NewSession()
	defer sess.Close()
	sess = sess.Context(ctx)
	if err := sess.Begin(); err != nil {
		return nil, err
	}
	if _, err := sess.Insert(&rows); err != nil {
		sess.Rollback()
		return nil, err
	}
	if err := sess.Commit(); err != nil {
		return nil, err
	}
	return rows, nil
}

// existingStudents resolves ids in order and fails when any is unknown.
func (s *Service) existingStudents(ctx context.Context, ids []string) ([]studentModels.Student, error) {
	found, err := s.students.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		return nil, apperr.InvalidArgument("Some student IDs are invalid")
	}
	out := make([]studentModels.Student, 0, len(ids))
	for _, id := range ids {
		out = append(out, found[id])
	}
	return out, nil
}

func recipients(list []studentModels.Student) []Recipient {
	out := make([]Recipient, 0, len(list))
	for _, st := range list {
		out = append(out, Recipient{
			ID:             st.ID,
			Name:           st.Name,
			Email:          st.Email,
			HasDeviceToken: st.FCMToken != nil && *st.FCMToken != "",
		})
	}
	return out
}

// Send records a notification for every listed student. All students must exist.
func (s *Service) Send(ctx context.Context, in SendInput) ([]models.Notification, error) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":   "notifications",
		"function": "Send",
	})

	if err := validation.Check(in); err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = models.TypeGeneral
	}

	ids := dedupe(in.StudentIDs)
	if _, err := s.existingStudents(ctx, ids); err != nil {
		return nil, err
	}

	rows, err := s.record(ctx, ids, strings.TrimSpace(in.Message), in.Type)
	if err != nil {
		logger.WithError(err).Error("Failed to record notifications")
		return nil, apperr.Internal("Error sending notifications", err)
	}

	logger.WithField("count", len(rows)).Info("✓ Notifications recorded")
	return rows, nil
}

// SendWelcome records the welcome message for the listed students. An empty custom
// message falls back to the configured one.
func (s *Service) SendWelcome(ctx context.Context, studentIDs []string, customMessage string) (*WelcomeResult, error) {
	ids := dedupe(studentIDs)
	if len(ids) == 0 {
		return nil, apperr.InvalidArgument("Please provide an array of student IDs")
	}
	list, err := s.existingStudents(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.welcome(ctx, list, customMessage, nil)
}

// SendWelcomeByPlaylist records the welcome message for every student enrolled in the playlist.
func (s *Service) SendWelcomeByPlaylist(ctx context.Context, playlistID, customMessage string) (*WelcomeResult, error) {
	return s.SendWelcomeByPlaylists(ctx, []string{playlistID}, customMessage)
}

// SendWelcomeByPlaylists records the welcome message once for each distinct student
// enrolled in any of the playlists. Unknown playlist ids are skipped.
func (s *Service) SendWelcomeByPlaylists(ctx context.Context, playlistIDs []string, customMessage string) (*WelcomeResult, error) {
	ids := dedupe(playlistIDs)
	if len(ids) == 0 {
		return nil, apperr.InvalidArgument("Please provide an array of playlist IDs")
	}

	var refs []PlaylistRef
	var found []string
	for _, id := range ids {
		p, err := s.playlists.Get(ctx, id)
		if apperr.Is(err, apperr.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		enrolled, err := s.enrollments.EnrolledStudentIDs(ctx, []string{p.ID})
		if err != nil {
			return nil, err
		}
		refs = append(refs, PlaylistRef{ID: p.ID, Title: p.Title, StudentCount: len(enrolled)})
		found = append(found, p.ID)
	}
	if len(found) == 0 {
		if len(ids) == 1 {
			return nil, apperr.NotFound("Playlist not found")
		}
		return nil, apperr.NotFound("No playlists found")
	}

	studentIDs, err := s.enrollments.EnrolledStudentIDs(ctx, found)
	if err != nil {
		return nil, err
	}
	if len(studentIDs) == 0 {
		return nil, apperr.NotFound("No students found in these playlists")
	}

	byID, err := s.students.FindByIDs(ctx, studentIDs)
	if err != nil {
		return nil, err
	}
	list := make([]studentModels.Student, 0, len(byID))
	for _, id := range studentIDs {
		if st, ok := byID[id]; ok {
			list = append(list, st)
		}
	}
	return s.welcome(ctx, list, customMessage, refs)
}

func (s *Service) welcome(ctx context.Context, list []studentModels.Student, customMessage string, refs []PlaylistRef) (*WelcomeResult, error) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":   "notifications",
		"function": "welcome",
	})

	message, err := s.settings.WelcomeMessage(ctx, customMessage)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(list))
	for _, st := range list {
		ids = append(ids, st.ID)
	}
	rows, err := s.record(ctx, ids, message, models.TypeWelcome)
	if err != nil {
		logger.WithError(err).Error("Failed to record welcome notifications")
		return nil, apperr.Internal("Error sending welcome messages", err)
	}

	logger.WithFields(logrus.Fields{
		"students":  len(rows),
		"playlists": len(refs),
	}).Info("✓ Welcome messages recorded")

	return &WelcomeResult{
		Notifications: rows,
		Message:       message,
		Playlists:     refs,
		SentTo:        recipients(list),
	}, nil
}

// ForStudent returns one page of the student's notifications, newest first, and marks
// all of the student's unread notifications as read.
func (s *Service) ForStudent(ctx context.Context, studentID string, page, limit int) (*StudentNotifications, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	rows := []models.Notification{}
	err = s.engine.Context(ctx).
		Where("student_id = ?", studentID).
		Desc("created_at").
		Asc("id").
		Limit(limit, (page-1)*limit).
		Find(&rows)
	if err != nil {
		return nil, apperr.Internal("Error fetching student notifications", err)
	}

	total, err := s.engine.Context(ctx).Where("student_id = ?", studentID).Count(new(models.Notification))
	if err != nil {
		return nil, apperr.Internal("Error fetching student notifications", err)
	}

	if _, err := s.engine.Context(ctx).
		Table(new(models.Notification)).
		Where("student_id = ? AND is_read = ?", studentID, false).
		Update(map[string]interface{}{"is_read": true}); err != nil {
		return nil, apperr.Internal("Error fetching student notifications", fmt.Errorf("mark read: %w", err))
	}

	return &StudentNotifications{
		Notifications: rows,
		Pagination: Pagination{
			CurrentPage:        page,
			TotalPages:         int((total + int64(limit) - 1) / int64(limit)),
			TotalNotifications: total,
			Limit:              limit,
		},
		Student: recipients([]studentModels.Student{*student})[0],
	}, nil
}

// Mine lists every notification of the student, newest first.
func (s *Service) Mine(ctx context.Context, studentID string) ([]models.Notification, error) {
	rows := []models.Notification{}
	err := s.engine.Context(ctx).
		Where("student_id = ?", studentID).
		Desc("created_at").
		Asc("id").
		Find(&rows)
	if err != nil {
		return nil, apperr.Internal("Error retrieving notifications", err)
	}
	return rows, nil
}
