package models

type SupportLinks struct {
	Whatsapp string `xorm:"varchar(250) not null 'support_whatsapp'" json:"whatsapp"`
	Telegram string `xorm:"varchar(250) not null 'support_telegram'" json:"telegram"`
	Snapchat string `xorm:"varchar(250) not null 'support_snapchat'" json:"snapchat"`
}

// Settings is the platform-wide configuration row.
type Settings struct {
	ID             string       `xorm:"pk varchar(36) 'id'" json:"-"`
	SupportLinks   SupportLinks `xorm:"extends" json:"supportLinks"`
	WelcomeMessage string       `xorm:"text not null 'welcome_message'" json:"welcomeMessage"`
	UpdatedAt      int64        `xorm:"not null 'updated_at'" json:"updatedAt"`
}

// TableName returns the table name for Settings
func (Settings) TableName() string {
	return "settings"
}
