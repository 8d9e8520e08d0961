package models

import (
	"time"
)

// ApprovalIntent records an approval decision before the spreadsheet write is
// attempted. An intent that stays uncommitted marks a user that is approved
// locally but missing from the ledger, so the reconciler can retry it.
type ApprovalIntent struct {
	ID         string    `gorm:"column:id;primaryKey;size:36"`
	TelegramID int64     `gorm:"column:telegram_id;not null;index"`
	Committed  bool      `gorm:"column:committed;default:false;index"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (ApprovalIntent) TableName() string {
	return "approval_intents"
}
