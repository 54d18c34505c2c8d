package models

const (
	TypeWelcome = "welcome"
	TypeCourse  = "course"
	TypeGeneral = "general"
)

// Notification is a message recorded for a student.
type Notification struct {
	ID        string `xorm:"pk varchar(36) 'id'" json:"id"`
	StudentID string `xorm:"varchar(36) not null index 'student_id'" json:"studentId"`
	Message   string `xorm:"text not null 'message'" json:"message"`
	Type      string `xorm:"varchar(20) not null 'type'" json:"type"`
	IsRead    bool   `xorm:"not null default false 'is_read'" json:"isRead"`
	CreatedAt int64  `xorm:"not null 'created_at'" json:"createdAt"`
}

// TableName returns the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}
