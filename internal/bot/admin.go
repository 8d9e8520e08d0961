package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"lethai-bot/internal/admission"
	"lethai-bot/internal/health"
	"lethai-bot/internal/qr"
)

const (
	adminPanelPageSize   = 10
	adminPanelButtonRows = 5
	maxMessageLength     = 4000
)

func (b *Bot) registerAdminHandlers(handler *th.BotHandler) {
	handler.Handle(b.handleAdminPanel, th.CommandEqual("admin"))
	handler.Handle(b.handleAdminPanel, th.TextEqual("⚙️ Админ панель"))

	handler.Handle(b.handleStats, th.CommandEqual("stats"))
	handler.Handle(b.handleStats, th.TextEqual("📊 Статистика"))

	handler.Handle(b.handleListUsers, th.CommandEqual("users"))
	handler.Handle(b.handleListUsers, th.TextEqual("👥 Список пользователей"))

	handler.Handle(b.handleHealth, th.CommandEqual("health"))
	handler.Handle(b.handleHealth, th.TextEqual("🏥 Здоровье системы"))

	handler.Handle(b.handleDelete, th.CommandEqual("delete"))

	handler.Handle(b.handleApproveCallback, th.CallbackDataPrefix("approve_"))
	handler.Handle(b.handleRejectCallback, th.CallbackDataPrefix("reject_"))
}

func (b *Bot) handleAdminPanel(ctx *th.Context, update telego.Update) error {
	userID := update.Message.From.ID
	if !b.Cfg.IsAdmin(userID) {
		b.send(ctx, userID, msgNotAdmin, nil)
		return nil
	}

	pending := b.Users.ListPending(ctx.Context())
	if len(pending) == 0 {
		b.send(ctx, userID, "👥 Админ панель\n\n📋 Нет пользователей, ожидающих подтверждения.", nil)
		return nil
	}

	var sb strings.Builder
	sb.WriteString("👥 Админ панель\n\n📋 Пользователи, ожидающие подтверждения:\n\n")
	for i, user := range pending {
		if i >= adminPanelPageSize {
			fmt.Fprintf(&sb, "... и еще %d пользователей\n", len(pending)-adminPanelPageSize)
			break
		}
		fmt.Fprintf(&sb, "%d. ID: %d\n   Имя: %s\n   Телефон: %s\n   Дата: %s\n\n",
			i+1, user.TelegramID, user.Name, user.Phone, user.CreatedAt.Format("02.01.2006 15:04"))
	}

	var rows [][]telego.InlineKeyboardButton
	for i, user := range pending {
		if i >= adminPanelButtonRows {
			break
		}
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(fmt.Sprintf("✅ %s (%d)", user.Name, user.TelegramID)).
				WithCallbackData(fmt.Sprintf("approve_%d", user.TelegramID)),
			tu.InlineKeyboardButton("❌ Отклонить").
				WithCallbackData(fmt.Sprintf("reject_%d", user.TelegramID)),
		))
	}

	_, err := ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(userID), sb.String()).
		WithReplyMarkup(tu.InlineKeyboard(rows...)))
	if err != nil {
		zap.L().Error("Failed to send admin panel", zap.Error(err))
	}
	return nil
}

func (b *Bot) handleApproveCallback(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	targetID, ok := callbackTarget(callback.Data, "approve_")
	if !ok {
		b.answerCallback(ctx, callback.ID, "❌ Некорректная заявка.")
		return nil
	}

	outcome := b.Admission.Approve(ctx.Context(), callback.From.ID, targetID, callback.From.Username)
	switch outcome.Result {
	case admission.ResultOK:
		b.dispatch(ctx.Context(), outcome.Notifications)
		b.answerCallback(ctx, callback.ID, "✅ Пользователь одобрен!")
		b.editCallbackMessage(ctx, callback, fmt.Sprintf(
			"✅ Пользователь %s (ID: %d) одобрен!\n\nРеферальная ссылка: %s",
			outcome.User.Name, targetID, qr.Link(b.Cfg.ReferralBaseURL, strconv.FormatInt(targetID, 10))))
	case admission.ResultInconsistent:
		b.dispatch(ctx.Context(), outcome.Notifications)
		b.answerCallback(ctx, callback.ID, "⚠️ Одобрен локально, но ошибка Google Sheets.")
	case admission.ResultAlreadyApproved:
		b.answerCallback(ctx, callback.ID, "❌ Пользователь уже одобрен.")
	case admission.ResultNotFound:
		b.answerCallback(ctx, callback.ID, "❌ Пользователь не найден.")
	case admission.ResultNotAuthorized:
		b.answerCallback(ctx, callback.ID, msgNotAdmin)
	default:
		b.answerCallback(ctx, callback.ID, "❌ Ошибка при обновлении статуса пользователя.")
	}
	return nil
}

func (b *Bot) handleRejectCallback(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	targetID, ok := callbackTarget(callback.Data, "reject_")
	if !ok {
		b.answerCallback(ctx, callback.ID, "❌ Некорректная заявка.")
		return nil
	}

	outcome := b.Admission.Reject(ctx.Context(), callback.From.ID, targetID)
	switch outcome.Result {
	case admission.ResultOK:
		b.dispatch(ctx.Context(), outcome.Notifications)
		b.answerCallback(ctx, callback.ID, "❌ Пользователь отклонен!")
		b.editCallbackMessage(ctx, callback, fmt.Sprintf(
			"❌ Пользователь %s (ID: %d) отклонен.", outcome.User.Name, targetID))
	case admission.ResultNotFound:
		b.answerCallback(ctx, callback.ID, "❌ Пользователь не найден.")
	case admission.ResultNotAuthorized:
		b.answerCallback(ctx, callback.ID, msgNotAdmin)
	default:
		b.answerCallback(ctx, callback.ID, "❌ Произошла ошибка при отклонении пользователя.")
	}
	return nil
}

func (b *Bot) handleStats(ctx *th.Context, update telego.Update) error {
	userID := update.Message.From.ID
	if !b.Cfg.IsAdmin(userID) {
		b.send(ctx, userID, msgNotAdmin, nil)
		return nil
	}

	pending := b.Users.ListPending(ctx.Context())
	approved := b.Users.ListApproved(ctx.Context())

	var sb strings.Builder
	sb.WriteString("📊 Статистика реферальной системы\n\n")
	fmt.Fprintf(&sb, "⏳ Ожидают подтверждения: %d\n", len(pending))
	fmt.Fprintf(&sb, "✅ Одобренных пользователей: %d\n", len(approved))
	fmt.Fprintf(&sb, "📈 Всего зарегистрированных: %d\n\n", len(pending)+len(approved))

	if b.Ledger.TestConnection(ctx.Context()) {
		sb.WriteString("📋 Google Sheets:\n   • Подключение: ✅\n")
		if stats, ok := b.Ledger.WorksheetStats(ctx.Context()); ok {
			fmt.Fprintf(&sb, "   • Партнеров в таблице: %d\n", stats.PartnerCount)
			fmt.Fprintf(&sb, "   • Строк в таблице: %d\n", stats.RowCount)
		}
	} else {
		sb.WriteString("📋 Google Sheets: ❌ Нет подключения\n")
	}

	b.send(ctx, userID, sb.String(), nil)
	return nil
}

func (b *Bot) handleListUsers(ctx *th.Context, update telego.Update) error {
	userID := update.Message.From.ID
	if !b.Cfg.IsAdmin(userID) {
		b.send(ctx, userID, msgNotAdmin, nil)
		return nil
	}

	approved := b.Users.ListApproved(ctx.Context())
	if len(approved) == 0 {
		b.send(ctx, userID, "📋 Нет одобренных пользователей.", nil)
		return nil
	}

	var sb strings.Builder
	sb.WriteString("👥 Одобренные пользователи:\n\n")
	for i, user := range approved {
		approvedAt := "-"
		if user.ApprovedAt != nil {
			approvedAt = user.ApprovedAt.Format("02.01.2006 15:04")
		}
		fmt.Fprintf(&sb, "%d. ID: %d\n   Имя: %s\n   Телефон: %s\n   Одобрен: %s\n   Ссылка: %s\n\n",
			i+1, user.TelegramID, user.Name, user.Phone, approvedAt,
			qr.Link(b.Cfg.ReferralBaseURL, strconv.FormatInt(user.TelegramID, 10)))
	}

	// Telegram rejects messages over 4096 chars, send in chunks.
	text := sb.String()
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxMessageLength {
			cut := strings.LastIndex(chunk[:maxMessageLength], "\n\n")
			if cut <= 0 {
				cut = maxMessageLength
			}
			chunk = text[:cut]
		}
		b.send(ctx, userID, chunk, nil)
		text = text[len(chunk):]
	}
	return nil
}

func (b *Bot) handleHealth(ctx *th.Context, update telego.Update) error {
	userID := update.Message.From.ID
	if !b.Cfg.IsAdmin(userID) {
		b.send(ctx, userID, msgNotAdmin, nil)
		return nil
	}

	report := b.Health.Run(ctx.Context())

	statusIcon := "✅"
	if report.Status != health.StatusHealthy {
		statusIcon = "❌"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏥 Состояние системы: %s %s\n\n", statusIcon, strings.ToUpper(string(report.Status)))
	fmt.Fprintf(&sb, "📊 Проверок выполнено: %d/%d\n\n", report.Healthy, report.Total)

	for _, check := range report.Checks {
		icon := "✅"
		switch check.Status {
		case health.StatusError:
			icon = "❌"
		case health.StatusSkipped:
			icon = "➖"
		}
		fmt.Fprintf(&sb, "%s %s:\n   %s\n", icon, check.Name, check.Message)
		for key, value := range check.Details {
			fmt.Fprintf(&sb, "   • %s: %s\n", key, value)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "🕐 Время проверки: %s", report.Timestamp.Format("02.01.2006 15:04:05"))

	b.send(ctx, userID, sb.String(), nil)
	return nil
}

func (b *Bot) handleDelete(ctx *th.Context, update telego.Update) error {
	message := update.Message
	userID := message.From.ID

	fields := strings.Fields(message.Text)
	if len(fields) < 2 {
		b.send(ctx, userID, "Использование: /delete <telegram_id>", nil)
		return nil
	}
	targetID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		b.send(ctx, userID, "❌ Некорректный ID пользователя.", nil)
		return nil
	}

	outcome := b.Admission.Delete(ctx.Context(), userID, targetID)
	switch outcome.Result {
	case admission.ResultOK:
		b.send(ctx, userID, fmt.Sprintf("🗑 Пользователь %d удален.", targetID), nil)
	case admission.ResultNotFound:
		b.send(ctx, userID, "❌ Пользователь не найден.", nil)
	case admission.ResultNotAuthorized:
		b.send(ctx, userID, msgNotAdmin, nil)
	}
	return nil
}

func (b *Bot) answerCallback(ctx *th.Context, callbackID, text string) {
	err := ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callbackID).
		WithText(text).
		WithShowAlert())
	if err != nil {
		zap.L().Error("Failed to answer callback", zap.Error(err))
	}
}

func (b *Bot) editCallbackMessage(ctx *th.Context, callback *telego.CallbackQuery, text string) {
	if callback.Message == nil {
		return
	}
	_, err := ctx.Bot().EditMessageText(ctx.Context(), &telego.EditMessageTextParams{
		ChatID:    tu.ID(callback.Message.GetChat().ID),
		MessageID: callback.Message.GetMessageID(),
		Text:      text,
	})
	if err != nil {
		zap.L().Error("Failed to edit callback message", zap.Error(err))
	}
}

func callbackTarget(data, prefix string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
