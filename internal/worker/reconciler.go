package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lethai-bot/internal/admission"
	"lethai-bot/internal/store"
)

// Reconciler retries approvals whose ledger write failed: the user is
// approved locally but has no partner row in the worksheet. It scans
// uncommitted approval intents, re-runs the (idempotent) partner
// registration, and commits the intent once the row exists.
type Reconciler struct {
	Users        *store.Users
	Ledger       admission.Ledger
	Redis        *redis.Client
	Bot          *telego.Bot
	AdminGroupID int64
	Interval     time.Duration

	// Intents younger than the grace period are skipped; the approval that
	// created them may still be in flight.
	Grace time.Duration
}

func NewReconciler(users *store.Users, ledger admission.Ledger, rdb *redis.Client, bot *telego.Bot, adminGroupID int64, interval time.Duration) *Reconciler {
	return &Reconciler{
		Users:        users,
		Ledger:       ledger,
		Redis:        rdb,
		Bot:          bot,
		AdminGroupID: adminGroupID,
		Interval:     interval,
		Grace:        time.Minute,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	zap.L().Info("Ledger reconciler started", zap.Duration("interval", r.Interval))

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	// Run once at start
	r.reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("Ledger reconciler stopped")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context) {
	intents := r.Users.PendingIntents(ctx, r.Grace)
	if len(intents) == 0 {
		return
	}

	zap.L().Info("Reconciling pending approval intents", zap.Int("count", len(intents)))

	for _, intent := range intents {
		user := r.Users.Find(ctx, intent.TelegramID)
		if user == nil {
			// User was deleted after approval; nothing left to register.
			zap.L().Warn("Pending intent for missing user, committing",
				zap.String("intent_id", intent.ID), zap.Int64("telegram_id", intent.TelegramID))
			r.Users.CommitIntent(ctx, intent.ID)
			continue
		}

		partnercode := strconv.FormatInt(user.TelegramID, 10)
		if r.Ledger.RegisterPartner(ctx, partnercode, user.Name, user.Phone, "", "") {
			r.Users.CommitIntent(ctx, intent.ID)
			zap.L().Info("Reconciled ledger registration",
				zap.String("intent_id", intent.ID), zap.Int64("telegram_id", user.TelegramID))
			continue
		}

		r.alertAdmins(ctx, intent.ID, user.TelegramID, user.Name)
	}
}

// alertAdmins notifies the admin group about a stuck intent at most once per
// 24h (redis-deduped; without redis every cycle alerts, which is noisy but
// safe).
func (r *Reconciler) alertAdmins(ctx context.Context, intentID string, telegramID int64, name string) {
	if r.Bot == nil {
		return
	}

	if r.Redis != nil {
		key := fmt.Sprintf("reconcile_alert_%s", intentID)
		exists, err := r.Redis.Exists(ctx, key).Result()
		if err == nil && exists > 0 {
			return
		}
		if err := r.Redis.Set(ctx, key, "true", 24*time.Hour).Err(); err != nil {
			zap.L().Warn("Failed to set alert dedup key", zap.Error(err))
		}
	}

	_, err := r.Bot.SendMessage(ctx, tu.Message(
		tu.ID(r.AdminGroupID),
		fmt.Sprintf("⚠️ Не удается добавить пользователя %s (ID: %d) в Google Sheets.\n"+
			"Проверьте доступ к таблице.", name, telegramID),
	))
	if err != nil {
		zap.L().Error("Failed to send reconciler alert", zap.Int64("telegram_id", telegramID), zap.Error(err))
	}
}
