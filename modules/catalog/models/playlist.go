package models

// Playlist groups courses. VideoLength is the sum of its course durations in seconds,
// maintained incrementally as courses change.
type Playlist struct {
	ID          string  `xorm:"pk varchar(36) 'id'" json:"id"`
	Title       string  `xorm:"varchar(250) not null 'title'" json:"title"`
	Description string  `xorm:"text not null 'description'" json:"description"`
	Image       string  `xorm:"varchar(500) not null 'image'" json:"image"`
	VideoLength float64 `xorm:"not null default 0 'video_length'" json:"videoLength"`
	CreatedAt   int64   `xorm:"not null 'created_at'" json:"createdAt"`
}

// TableName returns the table name for Playlist
func (Playlist) TableName() string {
	return "playlists"
}

// CartItem is a playlist a student put in their cart.
type CartItem struct {
	StudentID  string `xorm:"pk varchar(36) 'student_id'"`
	PlaylistID string `xorm:"pk varchar(36) 'playlist_id'"`
	AddedAt    int64  `xorm:"not null 'added_at'"`
}

// TableName returns the table name for CartItem
func (CartItem) TableName() string {
	return "cart_items"
}

// Enrollment links a student to a playlist they have access to.
type Enrollment struct {
	StudentID  string `xorm:"pk varchar(36) 'student_id'"`
	PlaylistID string `xorm:"pk varchar(36) 'playlist_id'"`
	EnrolledAt int64  `xorm:"not null 'enrolled_at'"`
}

// TableName returns the table name for Enrollment
func (Enrollment) TableName() string {
	return "playlist_enrollments"
}
