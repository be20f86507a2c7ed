// Package telegram runs the planning wizard, store editing and recipe review
// as a Telegram bot.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"dinner-planner/internal/api"
	"dinner-planner/internal/config"
	"dinner-planner/internal/household"
	"dinner-planner/internal/importer"
	"dinner-planner/internal/metrics"
	"dinner-planner/internal/notify"
	"dinner-planner/internal/storage"
	"dinner-planner/internal/stores"
	"dinner-planner/internal/suggestion"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const wizardTTL = 24 * time.Hour

// Sender is the part of the Telegram API the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Backend is everything the bot asks of the planning backend.
type Backend interface {
	suggestion.Client
	stores.Client
	household.Client
	SearchRecipes(ctx context.Context, query string, limit int) ([]api.Recipe, error)
	GetRecipe(ctx context.Context, id string) (*api.Recipe, error)
	UpdatePlan(ctx context.Context, date string, update api.PlanUpdate) (*api.Plan, error)
}

// Deps are the collaborators of a Bot.
type Deps struct {
	Backend  Backend
	Importer *importer.Importer
	Metrics  *metrics.Store
	Archive  *storage.ExportStore
	Wizards  *WizardRepository
	DataPath string

	SessionOptions []suggestion.SessionOption
	Now            func() time.Time
}

// Bot routes Telegram updates to the wizard and the other commands.
type Bot struct {
	api  Sender
	cfg  *config.Config
	deps Deps

	stores *stores.Editor
	locks  sync.Map
}

// NewBot initializes the Telegram API and sets the webhook.
func NewBot(cfg *config.Config, deps Deps) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := bot.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)

	return New(bot, cfg, deps), nil
}

// New builds a Bot on top of an existing sender.
func New(sender Sender, cfg *config.Config, deps Deps) *Bot {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Bot{
		api:    sender,
		cfg:    cfg,
		deps:   deps,
		stores: stores.NewEditor(deps.Backend, notify.Log{}),
	}
}

// RegisterHandlers registers the webhook and health handlers on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Printf("Error parsing update: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	go b.HandleUpdate(context.Background(), update)
}

// HandleUpdate processes one update. Updates for the same chat are handled
// one at a time.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	var from *tgbotapi.User
	var chatID int64
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		from = update.CallbackQuery.From
		chatID = update.CallbackQuery.Message.Chat.ID
	case update.Message != nil && update.Message.Chat != nil:
		from = update.Message.From
		chatID = update.Message.Chat.ID
	default:
		return
	}

	if from == nil || !b.cfg.IsAllowedTelegramUser(from.ID) {
		if from != nil {
			log.Printf("⚠️ Unauthorized access attempt from UserID: %d (@%s)", from.ID, from.UserName)
		}
		return
	}

	unlock := b.lockChat(chatID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if update.CallbackQuery != nil {
		b.handleCallbackQuery(ctx, update.CallbackQuery)
		return
	}
	b.processMessage(ctx, update.Message)
}

func (b *Bot) lockChat(chatID int64) func() {
	v, _ := b.locks.LoadOrStore(chatID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	chatID := msg.Chat.ID

	command, arg, _ := strings.Cut(text, " ")
	switch command {
	case "/start", "/help":
		b.sendMarkdown(chatID, helpText)
		return
	case "/plan":
		b.startWizard(ctx, chatID, strings.TrimSpace(arg))
		return
	case "/cancel":
		b.cancelWizard(ctx, chatID)
		return
	case "/stores":
		b.handleStoresCommand(ctx, chatID)
		return
	case "/pending":
		b.handlePendingCommand(ctx, chatID)
		return
	case "/metrics":
		if msg.From.ID != b.cfg.AdminTelegramID {
			b.sendMarkdown(chatID, "⛔ *Access Denied*: Admin only.")
			return
		}
		b.handleMetricsCommand(chatID)
		return
	}

	if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
		b.handleImport(ctx, chatID, text)
		return
	}

	st, err := b.deps.Wizards.Get(ctx, chatID, b.deps.Now())
	if err != nil {
		log.Printf("Failed to load wizard for chat %d: %v", chatID, err)
	}
	if st != nil && st.Step == stepPick {
		b.handleSearch(ctx, chatID, st, text)
		return
	}

	b.sendMarkdown(chatID, helpText)
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// Answer callback to remove spinner
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}

	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID
	parts := strings.Split(query.Data, "|")

	switch parts[0] {
	case "day", "opt", "gen", "alt", "pick", "choose", "back", "refresh", "approve", "cancel":
		b.handleWizardCallback(ctx, chatID, messageID, parts)
	case "store", "mv":
		b.handleStoreCallback(ctx, chatID, messageID, parts)
	case "rev":
		b.handleReviewCallback(ctx, chatID, messageID, parts)
	default:
		log.Printf("Unknown callback data %q", query.Data)
	}
}

// chatNotifier delivers notices to the chat.
func (b *Bot) chatNotifier(chatID int64) notify.Notifier {
	bus := &notify.Bus{}
	bus.Subscribe(notify.Log{})
	bus.Subscribe(notify.Func(func(_ context.Context, n notify.Notice) {
		b.sendMarkdown(chatID, formatNotice(n))
	}))
	return bus
}

func (b *Bot) handleMetricsCommand(chatID int64) {
	if b.deps.Metrics == nil {
		b.sendMarkdown(chatID, "_Metrics are not enabled._")
		return
	}
	usage, err := b.deps.Metrics.GetDailyUsage(7)
	if err != nil {
		log.Printf("Failed to fetch metrics: %v", err)
		b.sendMarkdown(chatID, "❌ Error fetching metrics.")
		return
	}
	endpoints, err := b.deps.Metrics.GetEndpointStats(7)
	if err != nil {
		log.Printf("Failed to fetch endpoint stats: %v", err)
	}

	health := metrics.GetSysHealth(b.deps.DataPath)
	b.sendMarkdown(chatID, formatMetrics(usage, endpoints, health))
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Failed to send message to chat %d: %v", chatID, err)
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) int {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if len(keyboard.InlineKeyboard) > 0 {
		msg.ReplyMarkup = keyboard
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		log.Printf("Failed to send message to chat %d: %v", chatID, err)
		return 0
	}
	return sent.MessageID
}

func (b *Bot) editWithKeyboard(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if keyboard != nil && len(keyboard.InlineKeyboard) > 0 {
		edit.ReplyMarkup = keyboard
	}
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("Failed to edit message %d in chat %d: %v", messageID, chatID, err)
	}
}

func (b *Bot) sendAdminAlert(text string) {
	if b.cfg.AdminTelegramID == 0 {
		return
	}
	b.sendMarkdown(b.cfg.AdminTelegramID, text)
}
