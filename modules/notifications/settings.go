// Package notifications keeps the platform settings and the notification records sent
// to students. Delivery to devices happens elsewhere.
package notifications

import (
	"context"
	"strings"
	"time"

	"elearn_backend/helpers/apperr"
	"elearn_backend/helpers/logs"
	"elearn_backend/helpers/validation"
	"elearn_backend/modules/notifications/models"

	"github.com/sirupsen/logrus"
	"xorm.io/xorm"
)

const (
	settingsID            = "default"
	DefaultWelcomeMessage = "Welcome to our platform!"
)

type SupportLinksUpdate struct {
	Whatsapp *string `json:"whatsapp" validate:"omitempty,max=250"`
	Telegram *string `json:"telegram" validate:"omitempty,max=250"`
	Snapchat *string `json:"snapchat" validate:"omitempty,max=250"`
}

// SettingsUpdate merges the set fields into the stored settings.
type SettingsUpdate struct {
	SupportLinks   *SupportLinksUpdate `json:"supportLinks"`
	WelcomeMessage *string             `json:"welcomeMessage" validate:"omitempty,notblank"`
}

type Settings struct {
	engine *xorm.Engine
	now    func() time.Time
}

func NewSettings(engine *xorm.Engine) *Settings {
	return &Settings{engine: engine, now: time.Now}
}

// ensure creates the settings row on first use. Concurrent callers race harmlessly.
func (s *Settings) ensure(ctx context.Context) error {
	_, err := s.engine.Context(ctx).Exec(`
		INSERT INTO settings (id, support_whatsapp, support_telegram, support_snapchat, welcome_message, updated_at)
		VALUES (?, '', '', '', ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, settingsID, DefaultWelcomeMessage, s.now().Unix())
	return err
}

func (s *Settings) Get(ctx context.Context) (*models.Settings, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, apperr.Internal("Error fetching settings", err)
	}

	var settings models.Settings
	has, err := s.engine.Context(ctx).Where("id = ?", settingsID).Get(&settings)
	if err != nil {
		return nil, apperr.Internal("Error fetching settings", err)
	}
	if !has {
		return nil, apperr.Internal("Error fetching settings", nil)
	}
	return &settings, nil
}

func (s *Settings) Update(ctx context.Context, up SettingsUpdate) (*models.Settings, error) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module":   "notifications",
		"function": "UpdateSettings",
	})

	if err := validation.Check(up); err != nil {
		return nil, err
	}
	if err := s.ensure(ctx); err != nil {
		return nil, apperr.Internal("Error updating settings", err)
	}

	cols := map[string]interface{}{"updated_at": s.now().Unix()}
	if links := up.SupportLinks; links != nil {
		if links.Whatsapp != nil {
			cols["support_whatsapp"] = strings.TrimSpace(*links.Whatsapp)
		}
		if links.Telegram != nil {
			cols["support_telegram"] = strings.TrimSpace(*links.Telegram)
		}
		if links.Snapchat != nil {
			cols["support_snapchat"] = strings.TrimSpace(*links.Snapchat)
		}
	}
	if up.WelcomeMessage != nil {
		cols["welcome_message"] = strings.TrimSpace(*up.WelcomeMessage)
	}

	if _, err := s.engine.Context(ctx).Table(new(models.Settings)).Where("id = ?", settingsID).Update(cols); err != nil {
		logger.WithError(err).Error("Failed to update settings")
		return nil, apperr.Internal("Error updating settings", err)
	}

	logger.Info("✓ Settings updated")
	return s.Get(ctx)
}

// WelcomeMessage returns custom when set, otherwise the configured welcome message.
func (s *Settings) WelcomeMessage(ctx context.Context, custom string) (string, error) {
	if msg := strings.TrimSpace(custom); msg != "" {
		return msg, nil
	}
	settings, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	return settings.WelcomeMessage, nil
}
