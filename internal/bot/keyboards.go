package bot

import (
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Shared user-facing strings.
const (
	msgApprovalWaiting = "Ожидайте подтверждения в реферальной системе.\n" +
		"Мы уведомим вас, как только ваша заявка будет рассмотрена."
	msgGenericError = "Произошла ошибка. Попробуйте позже или обратитесь в поддержку."
	msgReferralLink = "🔗 Ваша реферальная ссылка:\n\n%s\n\n" +
		"Поделитесь этой ссылкой с друзьями и получайте бонусы за каждую регистрацию! 🎁"
	msgNotAdmin = "❌ У вас нет прав администратора."
)

func mainMenuKeyboard() *telego.ReplyKeyboardMarkup {
	return tu.Keyboard(
		tu.KeyboardRow(tu.KeyboardButton("Моя реферальная ссылка")),
		tu.KeyboardRow(tu.KeyboardButton("Посмотреть баланс")),
		tu.KeyboardRow(tu.KeyboardButton("Поддержка")),
	).WithResizeKeyboard()
}

func contactKeyboard() *telego.ReplyKeyboardMarkup {
	return tu.Keyboard(
		tu.KeyboardRow(tu.KeyboardButton("📱 Поделиться контактом").WithRequestContact()),
	).WithResizeKeyboard().WithOneTimeKeyboard()
}

func adminKeyboard() *telego.ReplyKeyboardMarkup {
	return tu.Keyboard(
		tu.KeyboardRow(tu.KeyboardButton("📊 Статистика")),
		tu.KeyboardRow(tu.KeyboardButton("👥 Список пользователей")),
		tu.KeyboardRow(tu.KeyboardButton("⚙️ Админ панель")),
		tu.KeyboardRow(tu.KeyboardButton("🏥 Здоровье системы")),
	).WithResizeKeyboard()
}
