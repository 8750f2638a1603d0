package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/tasksync/internal/service"
)

// Confirm delete keyboard; callback data is "<choice>:<task id>"
func confirmDeleteKeyboard(taskID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Task and event", fmt.Sprintf("%s:%d", service.DeleteBoth, taskID)),
			tgbotapi.NewInlineKeyboardButtonData("📅 Keep event", fmt.Sprintf("%s:%d", service.KeepEvent, taskID)),
		),
	)
}
