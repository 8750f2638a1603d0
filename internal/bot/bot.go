package bot

import (
	"context"
	"fmt"
	"html"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/tasksync/internal/domain"
	"github.com/tazhate/tasksync/internal/notify"
	"github.com/tazhate/tasksync/internal/service"
)

// Bot talks to a single Telegram chat: it posts sync notifications there
// and accepts a few task commands from it.
type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
	tasks  *service.TaskService

	// send delivers any outgoing request; tests replace it
	send func(c tgbotapi.Chattable) error
}

func New(token string, chatID int64, tasks *service.TaskService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("Authorized as @%s", api.Self.UserName)

	b := &Bot{
		api:    api,
		chatID: chatID,
		tasks:  tasks,
	}
	b.send = func(c tgbotapi.Chattable) error {
		_, err := b.api.Request(c)
		return err
	}

	b.setCommands()
	return b, nil
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "list", Description: "Open tasks"},
		{Command: "sync", Description: "Sync all providers now"},
		{Command: "done", Description: "Complete a task"},
		{Command: "undo", Description: "Reopen a task"},
		{Command: "delete", Description: "Delete a task"},
		{Command: "help", Description: "Command help"},
	}

	if err := b.send(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		log.Printf("Failed to set commands: %v", err)
	}
}

// Start long-polls for updates until ctx is done
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	return b.send(msg)
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = keyboard
	return b.send(msg)
}

// Notify posts a notification to the configured chat
func (b *Bot) Notify(_ context.Context, n domain.Notification) {
	prefix := "⚠️ "
	if n.Type == domain.NotifySuccess {
		prefix = "✅ "
	}
	if err := b.SendMessage(b.chatID, prefix+html.EscapeString(notify.Text(n))); err != nil {
		log.Printf("Error sending notification %s: %v", n.MsgKey, err)
	}
}
