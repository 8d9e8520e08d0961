package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lethai-bot/internal/models"
)

// RecordIntent persists an approval decision before the spreadsheet write is
// attempted. Returns the intent id, or "" on a storage fault (best effort:
// the approval itself proceeds without the intent).
func (s *Users) RecordIntent(ctx context.Context, telegramID int64) string {
	intent := models.ApprovalIntent{
		ID:         uuid.NewString(),
		TelegramID: telegramID,
		Committed:  false,
	}
	if err := s.db.WithContext(ctx).Create(&intent).Error; err != nil {
		zap.L().Error("Failed to record approval intent", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return ""
	}
	return intent.ID
}

// CommitIntent marks an intent as settled after the ledger row exists.
func (s *Users) CommitIntent(ctx context.Context, intentID string) bool {
	if intentID == "" {
		return false
	}
	res := s.db.WithContext(ctx).Model(&models.ApprovalIntent{}).
		Where("id = ?", intentID).
		Update("committed", true)
	if res.Error != nil {
		zap.L().Error("Failed to commit approval intent", zap.String("intent_id", intentID), zap.Error(res.Error))
		return false
	}
	return res.RowsAffected > 0
}

// PendingIntents returns uncommitted intents older than the grace period,
// oldest first. These are approvals whose ledger row is still missing.
func (s *Users) PendingIntents(ctx context.Context, olderThan time.Duration) []models.ApprovalIntent {
	cutoff := time.Now().UTC().Add(-olderThan)

	var intents []models.ApprovalIntent
	err := s.db.WithContext(ctx).
		Where("committed = ? AND created_at < ?", false, cutoff).
		Order("created_at ASC").
		Find(&intents).Error
	if err != nil {
		zap.L().Error("Failed to list pending intents", zap.Error(err))
		return nil
	}
	return intents
}
