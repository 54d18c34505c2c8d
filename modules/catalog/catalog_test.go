package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"elearn_backend/helpers/apperr"
	"elearn_backend/helpers/testdb"
	"elearn_backend/modules/catalog/models"
	"elearn_backend/modules/students"
	studentModels "elearn_backend/modules/students/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xorm.io/xorm"
)

type fixture struct {
	engine    *xorm.Engine
	courses   *Courses
	playlists *Playlists
	cart      *Cart
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	e := testdb.New(t)
	courses := NewCourses(e, Options{MediaDir: t.TempDir()})
	courses.probe = nil
	return &fixture{
		engine:    e,
		courses:   courses,
		playlists: NewPlaylists(e),
		cart:      NewCart(e, Options{HostImage: "https://cdn.example.com/"}),
	}
}

func (f *fixture) playlist(t *testing.T, title string) *models.Playlist {
	t.Helper()
	p, err := f.playlists.Create(context.Background(), PlaylistInput{
		Title:       title,
		Description: "about " + title,
		Image:       "uploads/images/" + title + ".png",
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) course(t *testing.T, playlistID, title string, duration float64) *models.Course {
	t.Helper()
	c, err := f.courses.Create(context.Background(), CourseInput{
		Title:       title,
		Description: "lesson " + title,
		Name:        title,
		PlaylistID:  playlistID,
		TitleFile:   "uploads/images/" + title + ".png",
		VideoLink:   "uploads/videos/" + title + ".mp4",
		Duration:    &duration,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) student(t *testing.T, username string) *studentModels.Student {
	t.Helper()
	s := &studentModels.Student{Username: username, Name: username, Email: username + "@example.com"}
	require.NoError(t, students.NewRegistry(f.engine).Create(context.Background(), s))
	return s
}

func videoLength(t *testing.T, f *fixture, id string) float64 {
	t.Helper()
	p, err := f.playlists.Get(context.Background(), id)
	require.NoError(t, err)
	return p.VideoLength
}

func TestCreateCourseValidation(t *testing.T) {
	f := newFixture(t)
	p := f.playlist(t, "go")
	ctx := context.Background()

	_, err := f.courses.Create(ctx, CourseInput{Title: "intro", PlaylistID: p.ID})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
	fields := apperr.FieldsOf(err)
	assert.Contains(t, fields, "description")
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "titleFile")
	assert.Contains(t, fields, "videoLink")

	d := 10.0
	_, err = f.courses.Create(ctx, CourseInput{
		Title: "intro", Description: "d", Name: "n", PlaylistID: "missing",
		TitleFile: "t.png", VideoLink: "v.mp4", Duration: &d,
	})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	f.course(t, p.ID, "intro", 10)
	_, err = f.courses.Create(ctx, CourseInput{
		Title: "intro", Description: "d", Name: "n", PlaylistID: p.ID,
		TitleFile: "t.png", VideoLink: "v.mp4", Duration: &d,
	})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestCourseDefaultsAndLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.playlist(t, "go")
	c := f.course(t, p.ID, "intro", 120)

	assert.True(t, c.IsLocked)

	got, err := f.courses.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "intro", got.Title)
	assert.Equal(t, 120.0, got.Duration)

	_, err = f.courses.FindByID(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	byIDs, err := f.courses.FindByIDs(ctx, []string{c.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, byIDs, 1)

	view, err := f.courses.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Playlist)
	assert.Equal(t, "go", view.Playlist.Title)

	list, err := f.courses.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestVideoLengthFollowsCourses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.playlist(t, "a")
	b := f.playlist(t, "b")

	c1 := f.course(t, a.ID, "one", 100)
	f.course(t, a.ID, "two", 50)
	assert.Equal(t, 150.0, videoLength(t, f, a.ID))

	d := 80.0
	_, err := f.courses.Update(ctx, c1.ID, CourseUpdate{Duration: &d})
	require.NoError(t, err)
	assert.Equal(t, 130.0, videoLength(t, f, a.ID))

	_, err = f.courses.Update(ctx, c1.ID, CourseUpdate{PlaylistID: &b.ID})
	require.NoError(t, err)
	assert.Equal(t, 50.0, videoLength(t, f, a.ID))
	assert.Equal(t, 80.0, videoLength(t, f, b.ID))

	require.NoError(t, f.courses.Delete(ctx, c1.ID))
	assert.Equal(t, 0.0, videoLength(t, f, b.ID))

	err = f.courses.Delete(ctx, c1.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	drifts, err := f.playlists.ReconcileVideoLength(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestUpdateCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.playlist(t, "go")
	f.course(t, p.ID, "taken", 10)
	c := f.course(t, p.ID, "intro", 10)

	taken := "taken"
	_, err := f.courses.Update(ctx, c.ID, CourseUpdate{Title: &taken})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	blank := "  "
	_, err = f.courses.Update(ctx, c.ID, CourseUpdate{Name: &blank})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	missing := "missing"
	_, err = f.courses.Update(ctx, c.ID, CourseUpdate{PlaylistID: &missing})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	unlocked := false
	title := "basics"
	view, err := f.courses.Update(ctx, c.ID, CourseUpdate{
		Title:       &title,
		IsLocked:    &unlocked,
		SocialMedia: &models.SocialMedia{Whatsapp: "wa", Telegram: "tg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "basics", view.Title)
	assert.False(t, view.IsLocked)
	assert.Equal(t, "tg", view.SocialMedia.Telegram)
	assert.Equal(t, 10.0, view.Duration)

	_, err = f.courses.Update(ctx, "missing", CourseUpdate{Title: &title})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreateCourseProbesLocalVideo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.playlist(t, "go")

	require.NoError(t, os.MkdirAll(filepath.Join(f.courses.mediaDir, "videos"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.courses.mediaDir, "videos", "intro.mp4"), []byte("x"), 0644))

	var probed string
	f.courses.probe = func(_ context.Context, path string) (float64, error) {
		probed = path
		return 42.5, nil
	}

	c, err := f.courses.Create(ctx, CourseInput{
		Title: "intro", Description: "d", Name: "n", PlaylistID: p.ID,
		TitleFile: "t.png", VideoLink: "videos/intro.mp4",
	})
	require.NoError(t, err)
	assert.Equal(t, 42.5, c.Duration)
	assert.Equal(t, "intro.mp4", filepath.Base(probed))
	assert.Equal(t, 42.5, videoLength(t, f, p.ID))

	f.courses.probe = func(context.Context, string) (float64, error) {
		return 0, errors.New("ffprobe failed")
	}
	c, err = f.courses.Create(ctx, CourseInput{
		Title: "remote", Description: "d", Name: "n", PlaylistID: p.ID,
		TitleFile: "t.png", VideoLink: "https://videos.example.com/remote.mp4",
	})
	require.NoError(t, err)
	assert.Zero(t, c.Duration)
}

func TestPlaylistCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.playlist(t, "go")

	_, err := f.playlists.Create(ctx, PlaylistInput{Title: "go", Description: "dup"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.playlists.Create(ctx, PlaylistInput{Title: "", Description: "x"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	desc := "updated"
	got, err := f.playlists.Update(ctx, p.ID, PlaylistUpdate{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Description)
	assert.Equal(t, "go", got.Title)

	f.course(t, p.ID, "intro", 10)
	courses, err := f.playlists.Courses(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, courses, 1)

	_, err = f.playlists.Courses(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	list, err := f.playlists.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.playlists.Delete(ctx, p.ID))
	assert.True(t, apperr.Is(f.playlists.Delete(ctx, p.ID), apperr.KindNotFound))

	_, err = f.courses.FindByPlaylist(ctx, p.ID)
	require.NoError(t, err)
	n, err := f.engine.Count(new(models.Course))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReconcileVideoLength(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.playlist(t, "go")
	f.course(t, p.ID, "intro", 100)

	_, err := f.engine.Exec("UPDATE playlists SET video_length = 7 WHERE id = ?", p.ID)
	require.NoError(t, err)

	drifts, err := f.playlists.ReconcileVideoLength(ctx, true)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, 7.0, drifts[0].Stored)
	assert.Equal(t, 100.0, drifts[0].Expected)
	assert.True(t, drifts[0].Fixed)
	assert.Equal(t, 100.0, videoLength(t, f, p.ID))
}

func TestCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.student(t, "alice")
	bob := f.student(t, "bob")
	p := f.playlist(t, "go")
	f.course(t, p.ID, "intro", 10)
	f.course(t, p.ID, "basics", 10)

	res, err := f.cart.Add(ctx, alice.ID, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.TotalStudents)
	assert.Equal(t, "go", res.Playlist.Title)

	_, err = f.cart.Add(ctx, alice.ID, p.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.cart.Add(ctx, alice.ID, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	res, err = f.cart.Add(ctx, bob.ID, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.TotalStudents)

	items, err := f.cart.Items(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.EqualValues(t, 2, items[0].TotalCourses)
	assert.Equal(t, "https://cdn.example.com/uploads/images/go.png", items[0].Image)

	require.NoError(t, f.cart.Remove(ctx, alice.ID, p.ID))
	assert.True(t, apperr.Is(f.cart.Remove(ctx, alice.ID, p.ID), apperr.KindNotFound))

	items, err = f.cart.Items(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	mine, err := f.cart.MyPlaylists(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.NotEmpty(t, mine[0].CreatedAgo)

	ids, err := f.cart.EnrolledStudentIDs(ctx, []string{p.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, ids)
}

func TestParseProbeDuration(t *testing.T) {
	d, err := parseProbeDuration([]byte(`{"format":{"filename":"a.mp4","duration":"12.500000"}}`))
	require.NoError(t, err)
	assert.Equal(t, 12.5, d)

	_, err = parseProbeDuration([]byte(`{"format":{"filename":"a.mp4"}}`))
	assert.Error(t, err)

	_, err = parseProbeDuration([]byte(`not json`))
	assert.Error(t, err)
}

func TestLocalMediaPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp4"), []byte("x"), 0644))

	path, ok := localMediaPath(dir, "a.mp4")
	assert.True(t, ok)
	assert.Equal(t, "a.mp4", filepath.Base(path))

	_, ok = localMediaPath(dir, "../../etc/passwd")
	assert.False(t, ok)

	_, ok = localMediaPath(dir, "missing.mp4")
	assert.False(t, ok)

	_, ok = localMediaPath(dir, "https://example.com/a.mp4")
	assert.False(t, ok)
}
