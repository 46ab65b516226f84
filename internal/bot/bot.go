package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/chatlens/internal/models"
	"github.com/xaenox/chatlens/internal/pipeline"
	"github.com/xaenox/chatlens/internal/report"
	"github.com/xaenox/chatlens/internal/storage"
)

// Bot records group chat traffic into storage and serves analysis reports
// on demand.
type Bot struct {
	api           *tgbotapi.BotAPI
	storage       storage.Storage
	pipeline      *pipeline.Pipeline
	defaultFormat report.Format
	logger        *zap.Logger
}

func New(token string, storage storage.Storage, p *pipeline.Pipeline, defaultFormat report.Format, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		api:           api,
		storage:       storage,
		pipeline:      p,
		defaultFormat: defaultFormat,
		logger:        logger,
	}
	p.SetSelfID(b.SelfID())

	return b, nil
}

// SelfID is the bot's own sender id, used to exclude its messages from
// analysis.
func (b *Bot) SelfID() string {
	return strconv.FormatInt(b.api.Self.ID, 10)
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		go b.handleMessage(update.Message)
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	// Only group traffic is worth analyzing
	if !message.Chat.IsGroup() && !message.Chat.IsSuperGroup() {
		return
	}

	b.recordMessage(ctx, message)
}

func (b *Bot) recordMessage(ctx context.Context, message *tgbotapi.Message) {
	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if content == "" || message.From == nil {
		return
	}

	chatID := strconv.FormatInt(message.Chat.ID, 10)
	senderID := strconv.FormatInt(message.From.ID, 10)

	body, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		b.logger.Error("Failed to encode message body",
			zap.Error(err),
			zap.String("chat_id", chatID))
		return
	}

	raw := models.RawMessage{
		ID:          uuid.New().String(),
		TimestampMs: int64(message.Date) * 1000,
		SenderID:    senderID,
		Type:        "text",
		Body:        string(body),
	}
	if message.ReplyToMessage != nil {
		raw.ReplyToID, _ = b.replyKey(message.ReplyToMessage)
	}

	if err := b.storage.SaveMessage(ctx, chatID, raw); err != nil {
		b.logger.Error("Failed to save message",
			zap.Error(err),
			zap.String("chat_id", chatID),
			zap.String("sender_id", senderID))
		return
	}

	// Capture the sender's identity while it is at hand
	identity := models.Identity{
		ID:        senderID,
		Name:      displayName(message.From),
		FetchedAt: time.Now(),
	}
	if err := b.storage.SaveIdentity(ctx, identity); err != nil {
		b.logger.Error("Failed to save identity",
			zap.Error(err),
			zap.String("sender_id", senderID))
	}
}

// replyKey derives a stable-enough reference for a replied-to message. The
// platform only gives numeric ids, which do not match the stored uuids, so
// the reference is informational.
func (b *Bot) replyKey(message *tgbotapi.Message) (string, bool) {
	if message == nil {
		return "", false
	}
	return strconv.Itoa(message.MessageID), true
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "report":
		b.handleReport(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Hi! I watch this group and can summarize what happened.

Add me to a group chat and I will keep track of the conversation.
Use /report to get the daily analysis, /help for details.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Introduce the bot
/help - Show this help message
/report [text|image|pdf] - Analyze recent group activity

The report covers hot topics, member titles, memorable quotes and
activity statistics for the configured period.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleReport(ctx context.Context, message *tgbotapi.Message) {
	if !message.Chat.IsGroup() && !message.Chat.IsSuperGroup() {
		b.sendMessage(message.Chat.ID, "Reports only work in group chats.")
		return
	}

	format := b.defaultFormat
	if arg := strings.TrimSpace(message.CommandArguments()); arg != "" {
		parsed, ok := report.ParseFormat(arg)
		if !ok {
			b.sendMessage(message.Chat.ID, "Unknown format. Use text, image or pdf.")
			return
		}
		format = parsed
	}

	runID := uuid.New().String()
	chatID := strconv.FormatInt(message.Chat.ID, 10)
	b.logger.Info("Starting report run",
		zap.String("run_id", runID),
		zap.String("chat_id", chatID),
		zap.String("format", string(format)))

	b.sendMessage(message.Chat.ID, "Analyzing the chat, this can take a minute...")

	result, outcome, err := b.pipeline.Run(ctx, chatID, format)
	if err != nil {
		b.logger.Error("Report run failed",
			zap.Error(err),
			zap.String("run_id", runID),
			zap.String("chat_id", chatID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, the analysis failed. Please try again later.")
		return
	}

	b.deliver(message.Chat.ID, runID, outcome)

	b.logger.Info("Report run finished",
		zap.String("run_id", runID),
		zap.String("chat_id", chatID),
		zap.String("delivered", string(outcome.Delivered)),
		zap.Int("messages", result.Statistics.MessageCount),
		zap.Int("tokens", result.TokenUsage.TotalTokens))
}

func (b *Bot) deliver(chatID int64, runID string, outcome *report.Outcome) {
	switch outcome.Delivered {
	case report.FormatImage:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
			Name:  "report-" + runID + ".png",
			Bytes: outcome.Data,
		})
		if _, err := b.api.Send(photo); err != nil {
			b.logger.Error("Failed to send report image",
				zap.Error(err),
				zap.Int64("chat_id", chatID))
			b.sendMessage(chatID, outcome.Text)
			return
		}
	case report.FormatPDF:
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
			Name:  "report-" + runID + ".pdf",
			Bytes: outcome.Data,
		})
		if _, err := b.api.Send(doc); err != nil {
			b.logger.Error("Failed to send report document",
				zap.Error(err),
				zap.Int64("chat_id", chatID))
			b.sendMessage(chatID, outcome.Text)
			return
		}
	default:
		b.sendMessage(chatID, outcome.Text)
	}

	if outcome.Fallback() {
		notes := make([]string, len(outcome.Fallbacks))
		for i, step := range outcome.Fallbacks {
			notes[i] = step.String()
		}
		b.sendMessage(chatID, "Note: the requested format was unavailable ("+strings.Join(notes, "; ")+")")
	}
}

func displayName(user *tgbotapi.User) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.UserName
	}
	return name
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
