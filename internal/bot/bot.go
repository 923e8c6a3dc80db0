package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"power6/internal/auth"
	"power6/internal/config"
	"power6/internal/model"
	"power6/internal/repository"
	"power6/internal/service"
)

const (
	cbTogglePrefix = "toggle:"
	cbDeletePrefix = "delete:"
)

type confirmationRequest struct {
	taskID uint
	title  string
}

// messenger is the part of the Telegram API the handlers talk to.
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           *tgbotapi.BotAPI
	out           messenger
	users         *repository.UserRepository
	tasks         *service.TaskService
	streaks       *service.StreakService
	summaries     *service.SummaryService
	jwtSecret     string
	tokenTTL      time.Duration
	now           service.Clock
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, users *repository.UserRepository, tasks *service.TaskService, streaks *service.StreakService, summaries *service.SummaryService, cfg config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	b := newBot(api, users, tasks, streaks, summaries, cfg.JWTSecret, cfg.TokenTTL, time.Now)
	b.api = api
	return b, nil
}

func newBot(out messenger, users *repository.UserRepository, tasks *service.TaskService, streaks *service.StreakService, summaries *service.SummaryService, secret string, ttl time.Duration, clock service.Clock) *Bot {
	return &Bot{
		out:           out,
		users:         users,
		tasks:         tasks,
		streaks:       streaks,
		summaries:     summaries,
		jwtSecret:     secret,
		tokenTTL:      ttl,
		now:           clock,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			log.Printf("handle callback: %v", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Printf("handle message: %v", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled. Start again whenever you like.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Use /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "today":
		return b.handleToday(ctx, msg)
	case "toggle":
		return b.handleToggle(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "streak":
		return b.handleStreak(ctx, msg)
	case "token":
		return b.handleToken(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>Finish %d streak tasks a day and keep the streak alive.</b>\n"+
			"You can hold up to %d open tasks at once.\n\n%s",
		escape(user.DisplayName()),
		b.streaks.Threshold(),
		b.tasks.ActiveLimit(),
		commandList,
	)
	return b.sendText(msg.Chat.ID, text)
}

const commandList = "Commands:\n" +
	"• /newtask — add a task step by step\n" +
	"• /tasks — open tasks with toggle and delete buttons\n" +
	"• /today — today's progress and open tasks\n" +
	"• /toggle &lt;id&gt; — complete or reopen a task\n" +
	"• /delete &lt;id&gt; — delete a task\n" +
	"• /streak — current streak\n" +
	"• /token — API access token\n" +
	"• /cancel — abort the current input"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Help</b>\n"+commandList)
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.summaries.DailySummary(ctx, *user, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, describeError(err))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	log.Printf("[info] list tasks for user=%d", user.ID)
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) handleToggle(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok, err := b.commandTaskID(msg, "/toggle 12")
	if !ok {
		return err
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.toggleTask(ctx, msg.Chat.ID, user, taskID)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok, err := b.commandTaskID(msg, "/delete 12")
	if !ok {
		return err
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.askDeleteConfirmation(ctx, msg.Chat.ID, msg.From.ID, user, taskID)
}

func (b *Bot) handleStreak(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	streak, err := b.streaks.GetStreak(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, describeError(err))
	}
	return b.sendText(msg.Chat.ID, service.FormatStreak(streak))
}

func (b *Bot) handleToken(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	now := b.now()
	token, err := auth.IssueToken(b.jwtSecret, user.ID, b.tokenTTL, now)
	if err != nil {
		return b.sendText(msg.Chat.ID, describeError(err))
	}
	log.Printf("[info] api token issued user=%d", user.ID)
	text := fmt.Sprintf(
		"🔑 Your API token, valid until %s:\n<code>%s</code>\nSend it as <code>Authorization: Bearer &lt;token&gt;</code>.",
		now.Add(b.tokenTTL).UTC().Format(time.DateOnly),
		escape(token),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		user, err := b.ensureUser(ctx, msg.From)
		if err != nil {
			return err
		}
		return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, user, req)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Kept the task.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel the deletion.", confirmKeyboard())
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}

	if _, err := b.out.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	var prefix string
	switch {
	case strings.HasPrefix(cb.Data, cbTogglePrefix):
		prefix = cbTogglePrefix
	case strings.HasPrefix(cb.Data, cbDeletePrefix):
		prefix = cbDeletePrefix
	default:
		return nil
	}

	taskID, err := parseTaskID(cb.Data, prefix)
	if err != nil {
		return nil
	}
	log.Printf("[info] callback %s user=%d task=%d", strings.TrimSuffix(prefix, ":"), cb.From.ID, taskID)

	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		return err
	}
	chatID := cb.Message.Chat.ID
	if prefix == cbDeletePrefix {
		return b.askDeleteConfirmation(ctx, chatID, cb.From.ID, user, taskID)
	}
	if err := b.toggleTask(ctx, chatID, user, taskID); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) toggleTask(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.tasks.ToggleTask(ctx, user.ID, taskID)
	if err != nil {
		return b.sendText(chatID, describeError(err))
	}

	var info string
	if task.Completed {
		info = fmt.Sprintf("✅ «%s» done.", escape(task.Title))
	} else {
		info = fmt.Sprintf("↩️ «%s» reopened.", escape(task.Title))
	}
	if task.StreakBound {
		if streak, err := b.streaks.GetStreak(ctx, user.ID); err == nil {
			info += "\n" + service.FormatStreak(streak)
		}
	}
	return b.sendText(chatID, info)
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID, telegramID int64, user *model.User, taskID uint) error {
	task, err := b.tasks.GetTask(ctx, user.ID, taskID)
	if err != nil {
		return b.sendText(chatID, describeError(err))
	}

	text := fmt.Sprintf("Delete task «%s» (#%d)?", escape(task.Title), task.ID)
	b.setConfirmation(telegramID, confirmationRequest{taskID: task.ID, title: task.Title})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, user *model.User, req confirmationRequest) error {
	if err := b.tasks.DeleteTask(ctx, user.ID, req.taskID); err != nil {
		return b.sendTextWithRemove(chatID, describeError(err))
	}
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 Task «%s» deleted.", escape(req.title))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	open := false
	tasks, err := b.tasks.ListTasks(ctx, user.ID, service.ListOptions{Completed: &open, Order: "-priority"})
	if err != nil {
		return b.sendText(chatID, describeError(err))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "No open tasks. Add one with /newtask.")
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📋 <b>Open tasks</b> (%d/%d)\n", len(tasks), b.tasks.ActiveLimit()))
	builder.WriteString("Tap ✅ to complete a task or 🗑 to delete it.\n\n")

	buttons := make([][]tgbotapi.InlineKeyboardButton, 0, len(tasks))
	for _, task := range tasks {
		builder.WriteString(formatTaskLine(task))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 24)), fmt.Sprintf("%s%d", cbTogglePrefix, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.out.Send(msg)
	return err
}

// SendDailyReports sends a summary to every user linked to Telegram.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.users.ListTelegramLinked(ctx)
	if err != nil {
		return err
	}
	now := b.now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.summaries.DailySummary(ctx, user, now)
		if err != nil {
			log.Printf("build summary for user %d: %v", user.ID, err)
			continue
		}
		if err := b.sendText(*user.TelegramID, text); err != nil {
			log.Printf("send summary to %d: %v", *user.TelegramID, err)
		}
	}
	return nil
}

func (b *Bot) commandTaskID(msg *tgbotapi.Message, example string) (uint, bool, error) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return 0, false, b.sendText(msg.Chat.ID, "Give me a task id, e.g. "+example)
	}
	taskID, err := strconv.ParseUint(strings.TrimPrefix(args, "#"), 10, 64)
	if err != nil || taskID == 0 {
		return 0, false, b.sendText(msg.Chat.ID, "Task id must be a positive number.")
	}
	return uint(taskID), true, nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

// describeError turns service errors into a reply. Unexpected errors are
// logged and not shown.
func describeError(err error) string {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return "Task not found."
	case errors.Is(err, service.ErrCapacityExceeded):
		return "⛔ " + escape(capitalize(err.Error())) + "."
	case service.IsValidation(err):
		return "⚠️ " + escape(capitalize(err.Error())) + "."
	default:
		log.Printf("bot: %v", err)
		return "Something went wrong, please try again."
	}
}

func parseTaskID(data, prefix string) (uint, error) {
	raw := strings.TrimPrefix(data, prefix)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func escape(s string) string {
	return html.EscapeString(s)
}
