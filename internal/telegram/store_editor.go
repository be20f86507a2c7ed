package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"dinner-planner/internal/stores"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleStoresCommand(ctx context.Context, chatID int64) {
	list, err := b.stores.Load(ctx)
	if err != nil {
		log.Printf("Failed to load stores: %v", err)
		b.sendMarkdown(chatID, "❌ Could not load your stores.")
		return
	}
	if len(list) == 0 {
		b.sendMarkdown(chatID, "_No stores yet._")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range list {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏪 "+s.Name, "store|"+s.ID),
		))
	}
	b.sendWithKeyboard(chatID, "Which store do you want to reorder?", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleStoreCallback handles "store|id" and "mv|id|index|u" or "mv|id|index|d".
func (b *Bot) handleStoreCallback(ctx context.Context, chatID int64, messageID int, parts []string) {
	if len(parts) < 2 {
		return
	}
	storeID := parts[1]

	if _, err := b.stores.Categories(storeID); errors.Is(err, stores.ErrUnknownStore) {
		if _, err := b.stores.Load(ctx); err != nil {
			log.Printf("Failed to reload stores: %v", err)
			b.editWithKeyboard(chatID, messageID, "❌ Could not load your stores.", nil)
			return
		}
	}

	note := ""
	if parts[0] == "mv" && len(parts) == 4 {
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			return
		}
		dir := stores.Up
		if parts[3] == "d" {
			dir = stores.Down
		}
		if err := b.stores.MoveCategory(ctx, storeID, index, dir); err != nil {
			note = "⚠️ Couldn't save the new order, it was put back."
		}
	}

	categories, err := b.stores.Categories(storeID)
	if err != nil {
		b.editWithKeyboard(chatID, messageID, "❌ That store no longer exists.", nil)
		return
	}
	text, keyboard := renderCategories(b.storeName(storeID), storeID, categories)
	if note != "" {
		text += "\n\n" + note
	}
	b.editWithKeyboard(chatID, messageID, text, &keyboard)
}

func (b *Bot) storeName(storeID string) string {
	for _, s := range b.stores.Stores() {
		if s.ID == storeID {
			return s.Name
		}
	}
	return storeID
}

func renderCategories(name, storeID string, categories []string) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🏪 *%s* aisle order\n\n", escape(name)))
	if len(categories) == 0 {
		sb.WriteString("_No categories_")
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, c := range categories {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, escape(c)))
		idx := strconv.Itoa(i)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c, "store|"+storeID),
			tgbotapi.NewInlineKeyboardButtonData("⬆️", "mv|"+storeID+"|"+idx+"|u"),
			tgbotapi.NewInlineKeyboardButtonData("⬇️", "mv|"+storeID+"|"+idx+"|d"),
		))
	}
	return strings.TrimRight(sb.String(), "\n"), tgbotapi.NewInlineKeyboardMarkup(rows...)
}
