package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"lethai-bot/internal/admission"
	"lethai-bot/internal/config"
	"lethai-bot/internal/health"
	"lethai-bot/internal/qr"
	"lethai-bot/internal/sheets"
	"lethai-bot/internal/store"
)

// Registration conversation states, keyed by telegram id.
const (
	stateWaitingContact = "WAITING_CONTACT"
	stateWaitingName    = "WAITING_NAME"
)

type Bot struct {
	Instance  *telego.Bot
	Users     *store.Users
	Ledger    *sheets.Client
	Admission *admission.Workflow
	Health    *health.Checker
	Cfg       *config.Config

	UserStates map[int64]string
	phones     map[int64]string
	StatesMu   sync.RWMutex
}

func NewBot(cfg *config.Config, users *store.Users, ledger *sheets.Client, workflow *admission.Workflow, checker *health.Checker) (*Bot, error) {
	tgBot, err := telego.NewBot(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		Instance:   tgBot,
		Users:      users,
		Ledger:     ledger,
		Admission:  workflow,
		Health:     checker,
		Cfg:        cfg,
		UserStates: make(map[int64]string),
		phones:     make(map[int64]string),
	}, nil
}

// Start blocks until the update stream closes (polling stops when ctx is
// cancelled).
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.Instance.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.Instance, updates)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	// Registration order is match order: the text catch-all must come after
	// every command and menu handler.
	b.registerUserHandlers(handler)
	b.registerAdminHandlers(handler)
	b.registerFallbackHandler(handler)

	handler.Start()
	return nil
}

func (b *Bot) registerUserHandlers(handler *th.BotHandler) {
	// /start: admins get the admin keyboard, approved users the main menu,
	// pending users a waiting note, everyone else the registration flow.
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		userID := message.From.ID

		if b.Cfg.IsAdmin(userID) {
			b.send(ctx, userID,
				"👑 Панель администратора\n\n"+
					"/admin — заявки на подтверждение\n"+
					"/stats — статистика системы\n"+
					"/users — одобренные пользователи\n"+
					"/health — состояние системы\n\n"+
					"Администраторы не участвуют в реферальной программе.",
				adminKeyboard())
			return nil
		}

		user := b.Users.Find(ctx.Context(), userID)
		switch {
		case user != nil && user.Approved:
			b.send(ctx, userID,
				"Добро пожаловать в реферальную систему Lethai! 🏝️\n\nВыберите действие из меню ниже:",
				mainMenuKeyboard())
		case user != nil:
			b.send(ctx, userID, msgApprovalWaiting, nil)
		default:
			b.setState(userID, stateWaitingContact)
			b.send(ctx, userID,
				"🏝️ Добро пожаловать в реферальную систему Lethai!\n\n"+
					"Для регистрации поделитесь своим контактом, нажав кнопку ниже:",
				contactKeyboard())
		}
		return nil
	}, th.CommandEqual("start"))

	// Contact sharing step of the registration flow.
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		userID := message.From.ID

		if b.state(userID) != stateWaitingContact {
			return nil
		}

		if message.Contact.PhoneNumber == "" {
			b.send(ctx, userID, "Не удалось получить номер телефона. Попробуйте еще раз:", contactKeyboard())
			return nil
		}

		b.StatesMu.Lock()
		b.phones[userID] = message.Contact.PhoneNumber
		b.UserStates[userID] = stateWaitingName
		b.StatesMu.Unlock()

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
			tu.ID(userID), "Отлично! Теперь введите ваше имя:",
		).WithReplyMarkup(&telego.ReplyKeyboardRemove{RemoveKeyboard: true}))
		return nil
	}, anyMessageWithContact)

	handler.Handle(b.handleReferralLink, th.TextEqual("Моя реферальная ссылка"))
	handler.Handle(b.handleBalance, th.TextEqual("Посмотреть баланс"))
	handler.Handle(b.handleSupport, th.TextEqual("Поддержка"))
}

// registerFallbackHandler catches the name step of the registration flow,
// plus a nudge for users who type instead of sharing a contact.
func (b *Bot) registerFallbackHandler(handler *th.BotHandler) {
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		userID := message.From.ID

		switch b.state(userID) {
		case stateWaitingContact:
			b.send(ctx, userID, "Пожалуйста, поделитесь контактом, нажав кнопку:", contactKeyboard())
		case stateWaitingName:
			b.processName(ctx, userID, message.Text)
		}
		return nil
	}, th.AnyMessageWithText())
}

func (b *Bot) processName(ctx *th.Context, userID int64, name string) {
	name = strings.TrimSpace(name)
	if runes := len([]rune(name)); runes < 2 {
		b.send(ctx, userID, "Пожалуйста, введите корректное имя (минимум 2 символа):", nil)
		return
	} else if runes > 50 {
		b.send(ctx, userID, "Имя слишком длинное. Пожалуйста, введите имя до 50 символов:", nil)
		return
	}

	b.StatesMu.RLock()
	phone := b.phones[userID]
	b.StatesMu.RUnlock()
	if phone == "" {
		b.clearState(userID)
		b.send(ctx, userID, "Ошибка: номер телефона не найден. Начните регистрацию заново командой /start", nil)
		return
	}

	outcome := b.Admission.Register(ctx.Context(), userID, name, phone)
	switch outcome.Result {
	case admission.ResultOK:
		b.dispatch(ctx.Context(), outcome.Notifications)
	case admission.ResultAlreadyExists:
		b.send(ctx, userID, msgApprovalWaiting, nil)
	default:
		b.send(ctx, userID, msgGenericError, nil)
	}
	b.clearState(userID)
}

func (b *Bot) handleReferralLink(ctx *th.Context, update telego.Update) error {
	userID := update.Message.From.ID

	if b.Cfg.IsAdmin(userID) {
		b.send(ctx, userID, "⚠️ У администраторов нет реферальных кодов.", nil)
		return nil
	}
	if !b.Users.IsApproved(ctx.Context(), userID) {
		b.send(ctx, userID, msgApprovalWaiting, nil)
		return nil
	}

	partnercode := fmt.Sprintf("%d", userID)
	link := qr.Link(b.Cfg.ReferralBaseURL, partnercode)

	png, err := qr.Image(b.Cfg.ReferralBaseURL, partnercode)
	if err != nil {
		zap.L().Error("Failed to generate QR code", zap.Int64("telegram_id", userID), zap.Error(err))
		b.send(ctx, userID, fmt.Sprintf(msgReferralLink, link), mainMenuKeyboard())
		return nil
	}

	_, err = ctx.Bot().SendPhoto(ctx.Context(), tu.Photo(
		tu.ID(userID),
		tu.File(tu.NameReader(bytes.NewReader(png), "qr_code.png")),
	).WithCaption(fmt.Sprintf(msgReferralLink, link)))
	if err != nil {
		zap.L().Error("Failed to send QR photo", zap.Int64("telegram_id", userID), zap.Error(err))
		b.send(ctx, userID, fmt.Sprintf(msgReferralLink, link), mainMenuKeyboard())
	}
	return nil
}

func (b *Bot) handleBalance(ctx *th.Context, update telego.Update) error {
	userID := update.Message.From.ID

	if !b.Users.IsApproved(ctx.Context(), userID) {
		b.send(ctx, userID, msgApprovalWaiting, nil)
		return nil
	}

	balance := b.Ledger.GetBalance(ctx.Context(), fmt.Sprintf("%d", userID))
	b.send(ctx, userID, fmt.Sprintf(
		"💰 Ваш текущий баланс: %.2f ₽\n\n"+
			"📊 Баланс обновляется автоматически при поступлении новых рефералов.\n"+
			"💬 По вопросам вывода обращайтесь к %s", balance, b.Cfg.SupportUsername),
		mainMenuKeyboard())
	return nil
}

func (b *Bot) handleSupport(ctx *th.Context, update telego.Update) error {
	userID := update.Message.From.ID

	if !b.Users.IsApproved(ctx.Context(), userID) && !b.Cfg.IsAdmin(userID) {
		b.send(ctx, userID, msgApprovalWaiting, nil)
		return nil
	}

	b.send(ctx, userID, fmt.Sprintf(
		"🆘 Поддержка Lethai\n\n"+
			"По всем вопросам обращайтесь к нашему менеджеру:\n%s\n\n"+
			"⏰ Время ответа: обычно в течение 1-2 часов в рабочее время",
		b.Cfg.SupportUsername), mainMenuKeyboard())
	return nil
}

// dispatch renders admission notification events into messages. Template
// text lives here: the workflow only names what happened.
func (b *Bot) dispatch(ctx context.Context, notifications []admission.Notification) {
	for _, n := range notifications {
		text := b.render(n)
		if text == "" {
			continue
		}
		if _, err := b.Instance.SendMessage(ctx, tu.Message(tu.ID(n.ChatID), text)); err != nil {
			zap.L().Error("Failed to send notification",
				zap.String("template", n.Template),
				zap.Int64("chat_id", n.ChatID),
				zap.Error(err))
		}
	}
}

func (b *Bot) render(n admission.Notification) string {
	id := n.Params["id"]
	name := n.Params["name"]
	phone := n.Params["phone"]

	switch n.Template {
	case admission.TemplateRegistrationReceived:
		return "✅ Регистрация успешно завершена!\n\n" + msgApprovalWaiting
	case admission.TemplateNewRegistration:
		return fmt.Sprintf(
			"🆕 Новая регистрация в реферальной системе:\n\n"+
				"👤 ID: %s\n📝 Имя: %s\n📱 Телефон: %s\n\n"+
				"Используйте /admin для рассмотрения заявки.", id, name, phone)
	case admission.TemplateApprovalSuccess:
		return "🎉 Поздравляем! Ваша заявка одобрена!\n\n" +
			"Теперь вы можете использовать реферальную систему Lethai.\n" +
			"Используйте команду /start для доступа к меню."
	case admission.TemplateUserApproved:
		return fmt.Sprintf(
			"✅ Пользователь одобрен:\n\n"+
				"👤 ID: %s\n📝 Имя: %s\n📱 Телефон: %s\n"+
				"🔗 Реферальная ссылка: %s", id, name, phone, qr.Link(b.Cfg.ReferralBaseURL, id))
	case admission.TemplateApprovalRejected:
		return fmt.Sprintf(
			"❌ К сожалению, ваша заявка была отклонена.\n\n"+
				"По вопросам обращайтесь в поддержку: %s", b.Cfg.SupportUsername)
	case admission.TemplateUserRejected:
		return fmt.Sprintf(
			"❌ Пользователь отклонен:\n\n👤 ID: %s\n📝 Имя: %s\n📱 Телефон: %s", id, name, phone)
	case admission.TemplateLedgerSyncFailed:
		return fmt.Sprintf(
			"⚠️ Пользователь %s (ID: %s) одобрен локально, но не добавлен в Google Sheets.\n"+
				"Система повторит попытку автоматически.", name, id)
	}
	zap.L().Warn("Unknown notification template", zap.String("template", n.Template))
	return ""
}

func (b *Bot) send(ctx *th.Context, chatID int64, text string, keyboard telego.ReplyMarkup) {
	msg := tu.Message(tu.ID(chatID), text)
	if keyboard != nil {
		msg = msg.WithReplyMarkup(keyboard)
	}
	if _, err := ctx.Bot().SendMessage(ctx.Context(), msg); err != nil {
		zap.L().Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) state(userID int64) string {
	b.StatesMu.RLock()
	defer b.StatesMu.RUnlock()
	return b.UserStates[userID]
}

func (b *Bot) setState(userID int64, state string) {
	b.StatesMu.Lock()
	b.UserStates[userID] = state
	b.StatesMu.Unlock()
}

func (b *Bot) clearState(userID int64) {
	b.StatesMu.Lock()
	delete(b.UserStates, userID)
	delete(b.phones, userID)
	b.StatesMu.Unlock()
}

func anyMessageWithContact(_ context.Context, update telego.Update) bool {
	return update.Message != nil && update.Message.Contact != nil
}
