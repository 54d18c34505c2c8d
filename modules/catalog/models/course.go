package models

// SocialMedia holds the course's community links.
type SocialMedia struct {
	Whatsapp string `xorm:"varchar(250) not null 'social_whatsapp'" json:"whatsapp"`
	Telegram string `xorm:"varchar(250) not null 'social_telegram'" json:"telegram"`
}

// Course is a single video lesson inside a playlist. TitleFile and VideoLink are
// references to stored media, Duration is in seconds.
type Course struct {
	ID          string      `xorm:"pk varchar(36) 'id'" json:"id"`
	Title       string      `xorm:"varchar(250) not null unique 'title'" json:"title"`
	Description string      `xorm:"text not null 'description'" json:"description"`
	Name        string      `xorm:"varchar(250) not null 'name'" json:"name"`
	TitleFile   string      `xorm:"varchar(500) not null 'title_file'" json:"titleFile"`
	VideoLink   string      `xorm:"varchar(500) not null 'video_link'" json:"videoLink"`
	Duration    float64     `xorm:"not null default 0 'duration'" json:"duration"`
	PlaylistID  string      `xorm:"varchar(36) not null index 'playlist_id'" json:"playlistId"`
	IsLocked    bool        `xorm:"not null default true 'is_locked'" json:"isLocked"`
	SocialMedia SocialMedia `xorm:"extends" json:"socialMedia"`
	CreatedAt   int64       `xorm:"not null 'created_at'" json:"createdAt"`
}

// TableName returns the table name for Course
func (Course) TableName() string {
	return "courses"
}
