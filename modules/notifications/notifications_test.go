package notifications

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"elearn_backend/helpers/apperr"
	"elearn_backend/helpers/testdb"
	"elearn_backend/modules/catalog"
	"elearn_backend/modules/notifications/models"
	"elearn_backend/modules/students"
	studentModels "elearn_backend/modules/students/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	students  *students.Registry
	playlists *catalog.Playlists
	cart      *catalog.Cart
	settings  *Settings
	service   *Service
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	e := testdb.New(t)
	f := &fixture{
		students:  students.NewRegistry(e),
		playlists: catalog.NewPlaylists(e),
		cart:      catalog.NewCart(e, catalog.Options{}),
		settings:  NewSettings(e),
		clock:     time.Now().Truncate(time.Second),
	}
	f.service = NewService(e, f.settings, f.students, f.playlists, f.cart)
	f.service.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) student(t *testing.T, name string, token string) *studentModels.Student {
	t.Helper()
	s := &studentModels.Student{Username: name, Name: name, Email: name + "@example.com"}
	if token != "" {
		s.FCMToken = &token
	}
	require.NoError(t, f.students.Create(context.Background(), s))
	return s
}

func (f *fixture) playlist(t *testing.T, title string) string {
	t.Helper()
	p, err := f.playlists.Create(context.Background(), catalog.PlaylistInput{Title: title, Description: title})
	require.NoError(t, err)
	return p.ID
}

func strPtr(s string) *string { return &s }

func TestSettingsLazyInit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := f.settings.Get(ctx)
			assert.NoError(t, err)
			if s != nil {
				assert.Equal(t, DefaultWelcomeMessage, s.WelcomeMessage)
			}
		}()
	}
	wg.Wait()

	n, err := f.settings.engine.Count(new(models.Settings))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSettingsUpdateMerges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.settings.Update(ctx, SettingsUpdate{
		SupportLinks: &SupportLinksUpdate{Whatsapp: strPtr("wa.me/1"), Telegram: strPtr("t.me/x")},
	})
	require.NoError(t, err)
	assert.Equal(t, "wa.me/1", s.SupportLinks.Whatsapp)
	assert.Equal(t, DefaultWelcomeMessage, s.WelcomeMessage)

	s, err = f.settings.Update(ctx, SettingsUpdate{
		SupportLinks:   &SupportLinksUpdate{Snapchat: strPtr("snap")},
		WelcomeMessage: strPtr("Hello there"),
	})
	require.NoError(t, err)
	assert.Equal(t, "wa.me/1", s.SupportLinks.Whatsapp)
	assert.Equal(t, "t.me/x", s.SupportLinks.Telegram)
	assert.Equal(t, "snap", s.SupportLinks.Snapchat)
	assert.Equal(t, "Hello there", s.WelcomeMessage)

	_, err = f.settings.Update(ctx, SettingsUpdate{WelcomeMessage: strPtr("  ")})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestSend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.student(t, "alice", "")
	b := f.student(t, "bob", "")

	rows, err := f.service.Send(ctx, SendInput{StudentIDs: []string{a.ID, b.ID, a.ID}, Message: " New course out "})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.TypeGeneral, rows[0].Type)
	assert.Equal(t, "New course out", rows[0].Message)

	_, err = f.service.Send(ctx, SendInput{StudentIDs: []string{a.ID, "missing"}, Message: "x"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, err = f.service.Send(ctx, SendInput{Message: "x"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, err = f.service.Send(ctx, SendInput{StudentIDs: []string{a.ID}, Message: "x", Type: "promo"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	mine, err := f.service.Mine(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestSendWelcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.student(t, "alice", "device-token")
	b := f.student(t, "bob", "")

	res, err := f.service.SendWelcome(ctx, []string{a.ID, b.ID}, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultWelcomeMessage, res.Message)
	require.Len(t, res.Notifications, 2)
	assert.Equal(t, models.TypeWelcome, res.Notifications[1].Type)
	require.Len(t, res.SentTo, 2)
	assert.True(t, res.SentTo[0].HasDeviceToken)
	assert.False(t, res.SentTo[1].HasDeviceToken)

	res, err = f.service.SendWelcome(ctx, []string{a.ID}, "Custom hi")
	require.NoError(t, err)
	assert.Equal(t, "Custom hi", res.Message)

	_, err = f.service.SendWelcome(ctx, nil, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, err = f.service.SendWelcome(ctx, []string{"missing"}, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestSendWelcomeByPlaylists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.student(t, "alice", "")
	b := f.student(t, "bob", "")
	f.student(t, "carol", "")
	goID := f.playlist(t, "go")
	rustID := f.playlist(t, "rust")
	emptyID := f.playlist(t, "empty")

	_, err := f.cart.Add(ctx, a.ID, goID)
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, b.ID, goID)
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, a.ID, rustID)
	require.NoError(t, err)

	res, err := f.service.SendWelcomeByPlaylist(ctx, goID, "Welcome to Go")
	require.NoError(t, err)
	assert.Len(t, res.Notifications, 2)
	require.Len(t, res.Playlists, 1)
	assert.Equal(t, 2, res.Playlists[0].StudentCount)

	res, err = f.service.SendWelcomeByPlaylists(ctx, []string{goID, rustID, "missing"}, "")
	require.NoError(t, err)
	assert.Len(t, res.Notifications, 2, "alice is counted once")
	assert.Len(t, res.Playlists, 2)

	_, err = f.service.SendWelcomeByPlaylist(ctx, "missing", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.service.SendWelcomeByPlaylist(ctx, emptyID, "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.service.SendWelcomeByPlaylists(ctx, []string{"x", "y"}, "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.service.SendWelcomeByPlaylists(ctx, nil, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestForStudentPaginatesAndMarksRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.student(t, "alice", "")

	for i := 0; i < 12; i++ {
		_, err := f.service.Send(ctx, SendInput{StudentIDs: []string{a.ID}, Message: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
		f.clock = f.clock.Add(time.Second)
	}

	page, err := f.service.ForStudent(ctx, a.ID, 1, 5)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 5)
	assert.Equal(t, "m11", page.Notifications[0].Message)
	assert.False(t, page.Notifications[0].IsRead)
	assert.Equal(t, Pagination{CurrentPage: 1, TotalPages: 3, TotalNotifications: 12, Limit: 5}, page.Pagination)
	assert.Equal(t, "alice", page.Student.Name)

	page, err = f.service.ForStudent(ctx, a.ID, 3, 5)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 2)
	assert.Equal(t, "m0", page.Notifications[1].Message)
	assert.True(t, page.Notifications[1].IsRead)

	page, err = f.service.ForStudent(ctx, a.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.CurrentPage)
	assert.Equal(t, 10, page.Pagination.Limit)

	_, err = f.service.ForStudent(ctx, "missing", 1, 10)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
