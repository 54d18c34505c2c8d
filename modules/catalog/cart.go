package catalog

import (
	"context"
	"time"

	"elearn_backend/helpers/apperr"
	"elearn_backend/helpers/logs"
	"elearn_backend/modules/catalog/models"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"xorm.io/xorm"
)

// CartEntry is a playlist in a student's cart.
type CartEntry struct {
	models.Playlist
	TotalCourses int64 `json:"totalCourses"`
}

// EnrolledPlaylist is a playlist the student has access to.
type EnrolledPlaylist struct {
	models.Playlist
	CreatedAgo string `json:"createdAgo"`
}

type AddToCartResult struct {
	Playlist      models.Playlist `json:"playlist"`
	TotalStudents int64           `json:"totalStudents"`
}

type Cart struct {
	engine    *xorm.Engine
	hostImage string
}

func NewCart(engine *xorm.Engine, opts Options) *Cart {
	return &Cart{engine: engine, hostImage: opts.HostImage}
}

// Add puts the playlist in the student's cart and enrolls the student in it.
func (c *Cart) Add(ctx context.Context, studentID, playlistID string) (*AddToCartResult, error) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":      "catalog",
		"function":    "AddToCart",
		"student_id":  studentID,
		"playlist_id": playlistID,
	})

	result := &AddToCartResult{}
	err := inTx(ctx, c.engine, func(sess *xorm.Session) error {
		has, err := sess.Where("id = ?", playlistID).Get(&result.Playlist)
		if err != nil {
			return err
		}
		if !has {
			return apperr.NotFound("Playlist not found")
		}

		inCart, err := sess.Where("student_id = ? AND playlist_id = ?", studentID, playlistID).Exist(new(models.CartItem))
		if err != nil {
			return err
		}
		if inCart {
			return apperr.Conflict("Playlist is already in cart")
		}

		now := time.Now().Unix()
		if _, err := sess.Insert(&models.CartItem{StudentID: studentID, PlaylistID: playlistID, AddedAt: now}); err != nil {
			return err
		}

		enrolled, err := sess.Where("student_id = ? AND playlist_id = ?", studentID, playlistID).Exist(new(models.Enrollment))
		if err != nil {
			return err
		}
		if !enrolled {
			if _, err := sess.Insert(&models.Enrollment{StudentID: studentID, PlaylistID: playlistID, EnrolledAt: now}); err != nil {
				return err
			}
		}

		result.TotalStudents, err = sess.Where("playlist_id = ?", playlistID).Count(new(models.Enrollment))
		return err
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to add playlist to cart")
		return nil, apperr.Wrap("Error adding playlist to cart", err)
	}

	logger.Info("✓ Playlist added to cart")
	return result, nil
}

// Remove takes the playlist out of the cart. The enrollment stays.
func (c *Cart) Remove(ctx context.Context, studentID, playlistID string) error {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":      "catalog",
		"function":    "RemoveFromCart",
		"student_id":  studentID,
		"playlist_id": playlistID,
	})

	affected, err := c.engine.Context(ctx).
		Where("student_id = ? AND playlist_id = ?", studentID, playlistID).
		Delete(new(models.CartItem))
	if err != nil {
		return apperr.Internal("Error removing playlist from cart", err)
	}
	if affected == 0 {
		return apperr.NotFound("Playlist is not in cart")
	}

	logger.Info("✓ Playlist removed from cart")
	return nil
}

type courseCount struct {
	PlaylistID string `xorm:"'playlist_id'"`
	Total      int64  `xorm:"'total'"`
}

// Items lists the cart in the order playlists were added, with course counts and
// host-prefixed images.
func (c *Cart) Items(ctx context.Context, studentID string) ([]CartEntry, error) {
	var playlists []models.Playlist
	err := c.engine.Context(ctx).SQL(`
		SELECT p.id, p.title, p.description, p.image, p.video_length, p.created_at
		FROM playlists p
		INNER JOIN cart_items ci ON ci.playlist_id = p.id
		WHERE ci.student_id = ?
		ORDER BY ci.added_at, p.title
	`, studentID).Find(&playlists)
	if err != nil {
		return nil, apperr.Internal("Error fetching cart", err)
	}

	ids := make([]string, 0, len(playlists))
	for _, p := range playlists {
		ids = append(ids, p.ID)
	}

	counts := map[string]int64{}
	if len(ids) > 0 {
		var rows []courseCount
		err := c.engine.Context(ctx).
			Table(new(models.Course)).
			Select("playlist_id, COUNT(*) AS total").
			In("playlist_id", ids).
			GroupBy("playlist_id").
			Find(&rows)
		if err != nil {
			return nil, apperr.Internal("Error fetching cart", err)
		}
		for _, r := range rows {
			counts[r.PlaylistID] = r.Total
		}
	}

	entries := make([]CartEntry, 0, len(playlists))
	for _, p := range playlists {
		p.Image = imageURL(c.hostImage, p.Image)
		entries = append(entries, CartEntry{Playlist: p, TotalCourses: counts[p.ID]})
	}
	return entries, nil
}

// MyPlaylists lists the playlists the student is enrolled in, newest first.
func (c *Cart) MyPlaylists(ctx context.Context, studentID string) ([]EnrolledPlaylist, error) {
	var playlists []models.Playlist
	err := c.engine.Context(ctx).SQL(`
		SELECT p.id, p.title, p.description, p.image, p.video_length, p.created_at
		FROM playlists p
		INNER JOIN playlist_enrollments e ON e.playlist_id = p.id
		WHERE e.student_id = ?
		ORDER BY p.created_at DESC, p.title
	`, studentID).Find(&playlists)
	if err != nil {
		return nil, apperr.Internal("Error retrieving playlists", err)
	}

	out := make([]EnrolledPlaylist, 0, len(playlists))
	for _, p := range playlists {
		p.Image = imageURL(c.hostImage, p.Image)
		out = append(out, EnrolledPlaylist{
			Playlist:   p,
			CreatedAgo: humanize.Time(time.Unix(p.CreatedAt, 0)),
		})
	}
	return out, nil
}

// EnrolledStudentIDs returns the distinct students enrolled in any of the playlists.
func (c *Cart) EnrolledStudentIDs(ctx context.Context, playlistIDs []string) ([]string, error) {
	ids := []string{}
	if len(playlistIDs) == 0 {
		return ids, nil
	}
	err := c.engine.Context(ctx).
		Table(new(models.Enrollment)).
		Distinct("student_id").
		In("playlist_id", playlistIDs).
		Find(&ids)
	if err != nil {
		return nil, apperr.Internal("failed to load enrolled students", err)
	}
	return ids, nil
}
