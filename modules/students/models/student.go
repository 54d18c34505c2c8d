package models

// Student is the account row owned by the account service. This backend only reads it
// and maintains total_watching_hours.
type Student struct {
	ID                 string  `xorm:"pk varchar(36) 'id'" json:"id"`
	Username           string  `xorm:"varchar(100) not null unique 'username'" json:"username"`
	Name               string  `xorm:"varchar(200) not null 'name'" json:"name"`
	Email              string  `xorm:"varchar(200) not null unique 'email'" json:"email"`
	Phone              string  `xorm:"varchar(50) not null 'phone'" json:"phone"`
	Image              string  `xorm:"varchar(500) not null 'image'" json:"image"`
	CourseName         string  `xorm:"varchar(200) not null 'course_name'" json:"courseName"`
	FCMToken           *string `xorm:"varchar(500) null 'fcm_token'" json:"-"`
	IsBlocked          bool    `xorm:"not null default false 'is_blocked'" json:"isBlocked"`
	TotalWatchingHours float64 `xorm:"not null default 0 'total_watching_hours'" json:"totalWatchingHours"`
	CreatedAt          int64   `xorm:"not null 'created_at'" json:"createdAt"`
}

// TableName returns the table name for Student
func (Student) TableName() string {
	return "students"
}
