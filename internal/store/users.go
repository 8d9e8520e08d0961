// Package store owns the local registration database. It is the single
// source of truth for admission state: a user is either pending
// (approved=false) or approved. Storage faults are logged and converted to
// negative results; callers never see raw database errors.
package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"lethai-bot/internal/models"
)

type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// Create inserts a new pending user. Returns false if the id is already
// present (the existing record is left untouched) or on a storage fault.
func (s *Users) Create(ctx context.Context, telegramID int64, name, phone string) bool {
	var existing models.User
	err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&existing).Error
	if err == nil {
		zap.L().Warn("User already exists", zap.Int64("telegram_id", telegramID))
		return false
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		zap.L().Error("Failed to check existing user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return false
	}

	user := models.User{
		TelegramID: telegramID,
		Name:       name,
		Phone:      phone,
		Approved:   false,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		zap.L().Error("Failed to save user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return false
	}

	zap.L().Info("User saved", zap.Int64("telegram_id", telegramID))
	return true
}

// Find returns nil when the user is absent or the storage layer failed.
func (s *Users) Find(ctx context.Context, telegramID int64) *models.User {
	var user models.User
	err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			zap.L().Error("Failed to get user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		}
		return nil
	}
	return &user
}

// SetApproval flips the admission flag. approved_at is stamped when the flag
// is set and cleared when it is unset, keeping the two in lockstep. Returns
// false when the id is missing.
func (s *Users) SetApproval(ctx context.Context, telegramID int64, approved bool) bool {
	updates := map[string]interface{}{"approved": approved}
	if approved {
		now := time.Now().UTC()
		updates["approved_at"] = &now
	} else {
		updates["approved_at"] = nil
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("telegram_id = ?", telegramID).Updates(updates)
	if res.Error != nil {
		zap.L().Error("Failed to update approval", zap.Int64("telegram_id", telegramID), zap.Error(res.Error))
		return false
	}
	if res.RowsAffected == 0 {
		zap.L().Warn("User not found for approval update", zap.Int64("telegram_id", telegramID))
		return false
	}

	zap.L().Info("User approval updated", zap.Int64("telegram_id", telegramID), zap.Bool("approved", approved))
	return true
}

func (s *Users) IsApproved(ctx context.Context, telegramID int64) bool {
	user := s.Find(ctx, telegramID)
	return user != nil && user.Approved
}

// ListPending returns unapproved users oldest first, so the admin reviews
// registrations in arrival order.
func (s *Users) ListPending(ctx context.Context) []models.User {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("approved = ?", false).
		Order("created_at ASC").
		Find(&users).Error
	if err != nil {
		zap.L().Error("Failed to list pending users", zap.Error(err))
		return nil
	}
	return users
}

func (s *Users) ListApproved(ctx context.Context) []models.User {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("approved = ?", true).
		Order("approved_at ASC").
		Find(&users).Error
	if err != nil {
		zap.L().Error("Failed to list approved users", zap.Error(err))
		return nil
	}
	return users
}

// Delete removes a user. Returns false when the id is missing.
func (s *Users) Delete(ctx context.Context, telegramID int64) bool {
	res := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).Delete(&models.User{})
	if res.Error != nil {
		zap.L().Error("Failed to delete user", zap.Int64("telegram_id", telegramID), zap.Error(res.Error))
		return false
	}
	if res.RowsAffected == 0 {
		zap.L().Warn("User not found for deletion", zap.Int64("telegram_id", telegramID))
		return false
	}

	zap.L().Info("User deleted", zap.Int64("telegram_id", telegramID))
	return true
}
