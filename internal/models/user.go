package models

import (
	"time"
)

// User is one registration record. Column names match the legacy users.db
// layout: users(telegram_id PRIMARY KEY, name, phone, approved, created_at,
// approved_at), so an existing database can be reused as-is.
type User struct {
	TelegramID int64      `gorm:"column:telegram_id;primaryKey"`
	Name       string     `gorm:"column:name;size:255;not null"`
	Phone      string     `gorm:"column:phone;size:32;not null"`
	Approved   bool       `gorm:"column:approved;default:false"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	ApprovedAt *time.Time `gorm:"column:approved_at"`
}

func (User) TableName() string {
	return "users"
}
