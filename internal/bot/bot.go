package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/tracely/internal/api"
	"github.com/xaenox/tracely/internal/models"
)

const listLimit = 10

// sender is the part of the Telegram client the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api     *tgbotapi.BotAPI
	sender  sender
	service *api.Service
	logger  *zap.Logger
}

func New(token string, service *api.Service, logger *zap.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := newBot(botAPI, service, logger)
	b.api = botAPI
	return b, nil
}

func newBot(s sender, service *api.Service, logger *zap.Logger) *Bot {
	return &Bot{
		sender:  s,
		service: service,
		logger:  logger.With(zap.String("component", "telegram")),
	}
}

// Run handles updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func callerOf(message *tgbotapi.Message) api.Caller {
	if message.From == nil {
		return api.Caller{}
	}
	name := strings.TrimSpace(message.From.FirstName + " " + message.From.LastName)
	return api.Caller{UserID: "tg:" + strconv.FormatInt(message.From.ID, 10), Name: name}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	// Handle commands
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if strings.TrimSpace(content) == "" {
		return
	}

	resp := b.service.SubmitMessage(ctx, callerOf(message), api.SubmitMessageRequest{
		Message: content,
		Type:    api.MessageTypeFact,
	})
	if !resp.Success {
		b.logger.Debug("Fact not saved",
			zap.Int64("chat_id", message.Chat.ID),
			zap.String("type", resp.Type),
			zap.String("error", resp.Error))
		b.sendReply(message.Chat.ID, message.MessageID, "⚠️ "+resp.Message)
		return
	}
	b.sendMarkdownReply(message.Chat.ID, message.MessageID, formatFactSaved(resp))
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	caller := callerOf(message)
	args := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "start":
		b.handleStart(ctx, caller, message)
	case "help":
		b.sendMessage(message.Chat.ID, helpText)
	case "ask":
		b.handleAsk(ctx, caller, message, args)
	case "facts":
		b.handleFacts(ctx, caller, message, args)
	case "summary":
		b.handleSummary(ctx, caller, message)
	case "ideas":
		b.handleIdeas(ctx, caller, message, args)
	case "chat":
		b.handleChat(ctx, caller, message, args)
	case "clear":
		resp := b.service.ClearChat(ctx, caller)
		b.sendMessage(message.Chat.ID, resp.Message)
	case "delete":
		resp := b.service.DeleteFact(ctx, caller, api.DeleteFactRequest{FactID: args})
		b.sendStatus(message.Chat.ID, resp.Status)
	case "edit":
		b.handleEdit(ctx, caller, message, args)
	default:
		b.sendMessage(message.Chat.ID, "Comando sconosciuto. Usa /help per vedere i comandi disponibili.")
	}
}

func (b *Bot) handleStart(ctx context.Context, caller api.Caller, message *tgbotapi.Message) {
	if resp := b.service.StoreProfile(ctx, caller); !resp.Success {
		b.logger.Warn("Failed to store profile",
			zap.String("user_id", caller.UserID),
			zap.String("error", resp.Error))
	}
	b.sendMessage(message.Chat.ID, welcomeText)
}

func (b *Bot) handleAsk(ctx context.Context, caller api.Caller, message *tgbotapi.Message, question string) {
	if question == "" {
		b.sendMessage(message.Chat.ID, "Scrivi la tua domanda dopo /ask.")
		return
	}
	resp := b.service.SubmitMessage(ctx, caller, api.SubmitMessageRequest{Message: question, Type: api.MessageTypeQuery})
	b.sendMessage(message.Chat.ID, resp.Message)
}

func (b *Bot) handleFacts(ctx context.Context, caller api.Caller, message *tgbotapi.Message, tag string) {
	resp := b.service.ListFacts(ctx, caller, api.ListFactsRequest{Tag: tag, Limit: listLimit})
	if !resp.Success {
		b.sendStatus(message.Chat.ID, resp.Status)
		return
	}
	if len(resp.Facts) == 0 {
		b.sendMessage(message.Chat.ID, "Non hai ancora salvato nessun fatto.")
		return
	}
	b.sendMarkdown(message.Chat.ID, formatFacts(resp.Facts))
}

func (b *Bot) handleSummary(ctx context.Context, caller api.Caller, message *tgbotapi.Message) {
	resp := b.service.FactsByPriority(ctx, caller, api.FactsByPriorityRequest{})
	if !resp.Success {
		b.sendStatus(message.Chat.ID, resp.Status)
		return
	}
	b.sendMarkdown(message.Chat.ID, formatHierarchy(resp))
}

func (b *Bot) handleIdeas(ctx context.Context, caller api.Caller, message *tgbotapi.Message, args string) {
	req := parseIdeasArgs(args)
	b.sendMessage(message.Chat.ID, "💭 Sto pensando a qualche idea...")

	resp := b.service.GenerateRecommendations(ctx, caller, req)
	if !resp.Success {
		b.sendStatus(message.Chat.ID, resp.Status)
		return
	}
	b.sendMarkdown(message.Chat.ID, formatSuggestions(resp.Suggestions))
}

func (b *Bot) handleChat(ctx context.Context, caller api.Caller, message *tgbotapi.Message, text string) {
	if text == "" {
		b.sendMessage(message.Chat.ID, "Scrivi il tuo messaggio dopo /chat.")
		return
	}
	resp := b.service.Chat(ctx, caller, api.ChatRequest{Message: text})
	b.sendMessage(message.Chat.ID, resp.Response)
}

func (b *Bot) handleEdit(ctx context.Context, caller api.Caller, message *tgbotapi.Message, args string) {
	id, text, _ := strings.Cut(args, " ")
	resp := b.service.UpdateFact(ctx, caller, api.UpdateFactRequest{FactID: id, FactText: strings.TrimSpace(text)})
	b.sendStatus(message.Chat.ID, resp.Status)
}

// parseIdeasArgs reads "/ideas [count] [tag...]".
func parseIdeasArgs(args string) api.GenerateRecommendationsRequest {
	var req api.GenerateRecommendationsRequest
	fields := strings.Fields(args)
	if len(fields) > 0 {
		if n, err := strconv.Atoi(fields[0]); err == nil {
			req.Count = n
			fields = fields[1:]
		}
	}
	if len(fields) > 0 {
		req.Tags = fields
	}
	return req
}

const welcomeText = `Ciao! 💕
Raccontami piccoli dettagli sulla tua partner: cosa ama, cosa odia, le persone importanti per lei.
Li trasformo in fatti ordinati e li uso per suggerirti regali, appuntamenti e gesti speciali.

Usa /help per vedere tutti i comandi.`

const helpText = `Comandi disponibili:
/start - Inizia
/help - Mostra questo messaggio
/ask <domanda> - Chiedi un consiglio
/facts [tag] - Mostra gli ultimi fatti
/summary - Fatti ordinati per priorità
/ideas [numero] [tag...] - Genera suggerimenti
/chat <messaggio> - Parla con l'assistente
/clear - Cancella la conversazione
/delete <id> - Elimina un fatto
/edit <id> <testo> - Modifica un fatto

Ogni altro messaggio viene analizzato e salvato come fatto.`

func formatTags(tags []models.Tag) string {
	formatted := make([]string, len(tags))
	for i, tag := range tags {
		formatted[i] = escapeMarkdown("#" + string(tag))
	}
	return strings.Join(formatted, " ")
}

func formatFactSaved(resp api.SubmitMessageResponse) string {
	text := "✅ " + escapeMarkdown(resp.Message) + "\n"
	if resp.FactData != nil {
		text += fmt.Sprintf("*Tag:* %s\n", formatTags(resp.FactData.Tags))
		text += fmt.Sprintf("*Sentiment:* %s\n", escapeMarkdown(string(resp.FactData.Sentiment)))
	}
	if resp.FactID != "" {
		text += fmt.Sprintf("*ID:* `%s`", resp.FactID)
	}
	return text
}

func formatFacts(facts []models.Fact) string {
	text := "*I tuoi fatti:*\n\n"
	for _, f := range facts {
		text += fmt.Sprintf("_%s_\n", escapeMarkdown(f.Text))
		if len(f.Tags) > 0 {
			text += formatTags(f.Tags) + "\n"
		}
		text += fmt.Sprintf("`%s`\n\n", f.ID)
	}
	return text
}

func formatHierarchy(resp api.FactsByPriorityResponse) string {
	if resp.TotalFacts == 0 {
		return escapeMarkdown("Non hai ancora salvato nessun fatto.")
	}
	text := "*Fatti per priorità:*\n"
	for i, bucket := range resp.FactsHierarchy {
		if len(bucket) == 0 || i >= len(resp.TagNames) {
			continue
		}
		text += fmt.Sprintf("\n*%s* \\(%d\\)\n", escapeMarkdown(strings.ToUpper(string(resp.TagNames[i]))), len(bucket))
		for _, f := range bucket {
			text += escapeMarkdown("- "+f.Text) + "\n"
		}
	}
	return text
}

func formatSuggestions(suggestions []models.Suggestion) string {
	text := "*Ecco qualche idea:*\n\n"
	for i, s := range suggestions {
		text += fmt.Sprintf("%d\\. %s", i+1, escapeMarkdown(s.Sentence))
		if s.Effort != nil {
			text += " " + strings.Repeat("⭐", *s.Effort)
		}
		text += "\n"
		if len(s.Tags) > 0 {
			text += formatTags(s.Tags) + "\n"
		}
	}
	return text
}

// escapeMarkdown escapes special characters for MarkdownV2.
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) sendStatus(chatID int64, status api.Status) {
	if status.Success {
		b.sendMessage(chatID, "✅ "+status.Message)
		return
	}
	text := status.Message
	if text == "" {
		text = status.Error
	}
	b.sendErrorMessage(chatID, text)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendReply(chatID int64, replyToID int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyToID
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send reply",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	b.sendMarkdownReply(chatID, 0, text)
}

func (b *Bot) sendMarkdownReply(chatID int64, replyToID int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyToMessageID = replyToID
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send markdown message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
