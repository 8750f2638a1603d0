package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/tasksync/internal/domain"
	"github.com/tazhate/tasksync/internal/service"
)

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	// only the configured chat may drive the bot
	if msg.Chat == nil || msg.Chat.ID != b.chatID || !msg.IsCommand() {
		return
	}
	b.handleCommand(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		b.cmdHelp(chatID)
	case "list":
		b.cmdList(chatID)
	case "sync":
		b.cmdSync(ctx, chatID)
	case "done":
		b.cmdDone(ctx, chatID, args, true)
	case "undo":
		b.cmdDone(ctx, chatID, args, false)
	case "delete":
		b.cmdDelete(ctx, chatID, args)
	default:
		b.SendMessage(chatID, "Unknown command. /help for the list")
	}
}

func (b *Bot) cmdHelp(chatID int64) {
	text := `<b>Commands:</b>

/list - open tasks
/sync - pull changes from every provider
/done ID - complete a task
/undo ID - reopen a task
/delete ID - delete a task`

	b.SendMessage(chatID, text)
}

func (b *Bot) cmdList(chatID int64) {
	tasks, err := b.tasks.List(false)
	if err != nil {
		b.SendMessage(chatID, "❌ Error: "+html.EscapeString(err.Error()))
		return
	}
	b.SendMessage(chatID, html.EscapeString(b.tasks.FormatTaskList(tasks)))
}

func (b *Bot) cmdSync(ctx context.Context, chatID int64) {
	res, err := b.tasks.SyncAll(ctx)
	if err != nil {
		b.SendMessage(chatID, "❌ Sync failed: "+html.EscapeString(err.Error()))
		return
	}
	b.SendMessage(chatID, fmt.Sprintf("🔄 Synced: %d updated, %d imported", res.Updated, res.Imported))
}

func (b *Bot) cmdDone(ctx context.Context, chatID int64, args string, done bool) {
	id, err := parseTaskID(args)
	if err != nil {
		b.SendMessage(chatID, "Give a task ID: /done 12")
		return
	}

	if done {
		err = b.tasks.MarkDone(ctx, id)
	} else {
		err = b.tasks.MarkUndone(ctx, id)
	}
	if err != nil {
		b.SendMessage(chatID, "❌ Error: "+html.EscapeString(err.Error()))
		return
	}

	if done {
		b.SendMessage(chatID, fmt.Sprintf("✅ Task #%d done", id))
	} else {
		b.SendMessage(chatID, fmt.Sprintf("↩️ Task #%d reopened", id))
	}
}

// cmdDelete asks first when the task mirrors an event that may be
// deleted remotely too.
func (b *Bot) cmdDelete(ctx context.Context, chatID int64, args string) {
	id, err := parseTaskID(args)
	if err != nil {
		b.SendMessage(chatID, "Give a task ID: /delete 12")
		return
	}

	task, err := b.tasks.Get(id)
	if errors.Is(err, service.ErrTaskNotFound) {
		b.SendMessage(chatID, fmt.Sprintf("Task #%d not found", id))
		return
	}
	if err != nil {
		b.SendMessage(chatID, "❌ Error: "+html.EscapeString(err.Error()))
		return
	}

	if b.tasks.AsksBeforeDelete(task) {
		b.SendMessageWithKeyboard(chatID,
			fmt.Sprintf("Delete <b>%s</b>. Remove the calendar item as well?", html.EscapeString(task.Title)),
			confirmDeleteKeyboard(id))
		return
	}

	if err := b.tasks.Delete(ctx, id, nil); err != nil {
		b.SendMessage(chatID, "❌ Error: "+html.EscapeString(err.Error()))
		return
	}
	b.SendMessage(chatID, fmt.Sprintf("🗑 Task #%d deleted", id))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil || cb.Message.Chat.ID != b.chatID {
		return
	}
	chatID := cb.Message.Chat.ID

	action, rest, _ := strings.Cut(cb.Data, ":")
	id, err := parseTaskID(rest)
	if err != nil {
		b.answer(cb.ID, "Bad request")
		return
	}

	switch service.DeleteChoice(action) {
	case service.DeleteBoth, service.KeepEvent:
		if err := b.tasks.Delete(ctx, id, choice(action)); err != nil {
			log.Printf("Error deleting task %d: %v", id, err)
			b.answer(cb.ID, "Delete failed")
			b.SendMessage(chatID, "❌ Error: "+html.EscapeString(err.Error()))
			return
		}
		b.answer(cb.ID, "Deleted")
		b.SendMessage(chatID, fmt.Sprintf("🗑 Task #%d deleted", id))
	default:
		b.answer(cb.ID, "")
	}
}

func (b *Bot) answer(callbackID, text string) {
	if err := b.send(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Printf("Error answering callback: %v", err)
	}
}

// choice is a Confirmer whose answer was already picked from the keyboard
type choice service.DeleteChoice

func (c choice) ConfirmEventDeletion(context.Context, *domain.Task) (service.DeleteChoice, error) {
	return service.DeleteChoice(c), nil
}

func parseTaskID(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
}
