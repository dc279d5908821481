package model

// User represents an administrative user
type User struct {
	BaseModel
	Username     string `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`
	Role         string `gorm:"type:varchar(32);default:'admin'" json:"role"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}
