package catalog

import (
	"context"
	"math"
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

type PlaylistInput struct {
	Title       string `json:"title" validate:"notblank,max=250"`
	Description string `json:"description" validate:"notblank"`
	Image       string `json:"image" validate:"max=500"`
}

type PlaylistUpdate struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=250"`
	Description *string `json:"description" validate:"omitempty,notblank"`
	Image       *string `json:"image" validate:"omitempty,max=500"`
}

// LengthDrift is a playlist whose stored video length disagrees with its courses.
type LengthDrift struct {
	PlaylistID string  `xorm:"'playlist_id'" json:"playlistId"`
	Stored     float64 `xorm:"'stored'" json:"stored"`
	Expected   float64 `xorm:"'expected'" json:"expected"`
	Fixed      bool    `xorm:"-" json:"fixed"`
}

type Playlists struct {
	engine *xorm.Engine
}

func NewPlaylists(engine *xorm.Engine) *Playlists {
	return &Playlists{engine: engine}
}

func (p *Playlists) List(ctx context.Context) ([]models.Playlist, error) {
	rows := []models.Playlist{}
	if err := p.engine.Context(ctx).Desc("created_at").Asc("title").Find(&rows); err != nil {
		return nil, apperr.Internal("failed to list playlists", err)
	}
	return rows, nil
}

// Get returns the playlist or a NotFound error.
func (p *Playlists) Get(ctx context.Context, id string) (*models.Playlist, error) {
	var playlist models.Playlist
	has, err := p.engine.Context(ctx).Where("id = ?", id).Get(&playlist)
	if err != nil {
		return nil, apperr.Internal("failed to load playlist", err)
	}
	if !has {
		return nil, apperr.NotFound("Playlist not found")
	}
	return &playlist, nil
}

func (p *Playlists) Create(ctx context.Context, in PlaylistInput) (*models.Playlist, error) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":   "catalog",
		"function": "CreatePlaylist",
	})

	if err := validation.Check(in); err != nil {
		return nil, err
	}

	playlist := &models.Playlist{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Image:       strings.TrimSpace(in.Image),
		CreatedAt:   time.Now().Unix(),
	}

	taken, err := p.engine.Context(ctx).Where("title = ?", playlist.Title).Exist(new(models.Playlist))
	if err != nil {
		return nil, apperr.Internal("Error creating playlist", err)
	}
	if taken {
		return nil, apperr.Conflict("Playlist title already exists")
	}

	if _, err := p.engine.Context(ctx).Insert(playlist); err != nil {
		logger.WithError(err).Error("Failed to insert playlist")
		return nil, apperr.Internal("Error creating playlist", err)
	}

	logger.WithField("playlist_id", playlist.ID).Info("✓ Playlist created")
	return playlist, nil
}

// Update changes the set fields. The video length is derived from courses and is not
// writable here.
func (p *Playlists) Update(ctx context.Context, id string, up PlaylistUpdate) (*models.Playlist, error) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":      "catalog",
		"function":    "UpdatePlaylist",
		"playlist_id": id,
	})

	if err := validation.Check(up); err != nil {
		return nil, err
	}
	if _, err := p.Get(ctx, id); err != nil {
		return nil, err
	}

	cols := map[string]interface{}{}
	if up.Title != nil {
		title := strings.TrimSpace(*up.Title)
		taken, err := p.engine.Context(ctx).Where("title = ? AND id <> ?", title, id).Exist(new(models.Playlist))
		if err != nil {
			return nil, apperr.Internal("Error updating playlist", err)
		}
		if taken {
			return nil, apperr.Conflict("Playlist title already exists")
		}
		cols["title"] = title
	}
	if up.Description != nil {
		cols["description"] = strings.TrimSpace(*up.Description)
	}
	if up.Image != nil {
		cols["image"] = strings.TrimSpace(*up.Image)
	}

	if len(cols) > 0 {
		if _, err := p.engine.Context(ctx).Table(new(models.Playlist)).Where("id = ?", id).Update(cols); err != nil {
			logger.WithError(err).Error("Failed to update playlist")
			return nil, apperr.Internal("Error updating playlist", err)
		}
	}

	logger.Info("✓ Playlist updated")
	return p.Get(ctx, id)
}

// Delete removes the playlist together with its courses, cart entries and enrollments.
func (p *Playlists) Delete(ctx context.Context, id string) error {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":      "catalog",
		"function":    "DeletePlaylist",
		"playlist_id": id,
	})

	affected, err := p.engine.Context(ctx).Where("id = ?", id).Delete(new(models.Playlist))
	if err != nil {
		logger.WithError(err).Error("Failed to delete playlist")
		return apperr.Internal("Error deleting playlist", err)
	}
	if affected == 0 {
		return apperr.NotFound("Playlist not found")
	}

	logger.Info("✓ Playlist deleted")
	return nil
}

// Courses lists the courses of an existing playlist.
func (p *Playlists) Courses(ctx context.Context, id string) ([]models.Course, error) {
	if _, err := p.Get(ctx, id); err != nil {
		return nil, err
	}
	rows := []models.Course{}
	if err := p.engine.Context(ctx).Where("playlist_id = ?", id).Asc("created_at", "title").Find(&rows); err != nil {
		return nil, apperr.Internal("failed to load playlist courses", err)
	}
	return rows, nil
}

// ReconcileVideoLength audits playlists.video_length against the sum of course durations.
// With fix set, a drifted value is replaced only if it has not moved since the audit.
func (p *Playlists) ReconcileVideoLength(ctx context.Context, fix bool) ([]LengthDrift, error) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":   "catalog",
		"function": "ReconcileVideoLength",
	})

	var rows []LengthDrift
	err := p.engine.Context(ctx).SQL(`
		SELECT p.id AS playlist_id,
			p.video_length AS stored,
			COALESCE(SUM(c.duration), 0) AS expected
		FROM playlists p
		LEFT JOIN courses c ON c.playlist_id = p.id
		GROUP BY p.id, p.video_length
	`).Find(&rows)
	if err != nil {
		return nil, apperr.Internal("failed to audit video length", err)
	}

	var drifts []LengthDrift
	for _, d := range rows {
		if math.Abs(d.Stored-d.Expected) <= 1e-6 {
			continue
		}
		if fix {
			res, err := p.engine.Context(ctx).Exec(
				"UPDATE playlists SET video_length = ? WHERE id = ? AND video_length = ?",
				d.Expected, d.PlaylistID, d.Stored)
			if err != nil {
				logger.WithError(err).WithField("playlist_id", d.PlaylistID).Warn("Failed to correct video length")
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
		}).Warn("Video length drift detected")
	}
	return drifts, nil
}
