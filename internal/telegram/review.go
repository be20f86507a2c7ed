package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"dinner-planner/internal/household"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handlePendingCommand(ctx context.Context, chatID int64) {
	svc, err := household.Load(ctx, b.deps.Backend)
	if err != nil {
		log.Printf("Failed to load household: %v", err)
		b.sendMarkdown(chatID, "❌ Could not load your household.")
		return
	}

	pending, err := svc.PendingRecipes(ctx)
	if errors.Is(err, household.ErrForbidden) {
		b.sendMarkdown(chatID, "⛔ Only household owners and admins can review recipes.")
		return
	}
	if err != nil {
		log.Printf("Failed to load pending recipes: %v", err)
		b.sendMarkdown(chatID, "❌ Could not load pending recipes.")
		return
	}
	if len(pending) == 0 {
		b.sendMarkdown(chatID, "🎉 Nothing to review.")
		return
	}

	for _, r := range pending {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("📝 *%s*\n", escape(r.Title)))
		if r.SourceURL != "" {
			sb.WriteString(escape(r.SourceURL) + "\n")
		}
		if len(r.Ingredients) > 0 {
			sb.WriteString(fmt.Sprintf("_%d ingredients_", len(r.Ingredients)))
		}
		keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👍 Approve", "rev|"+r.ID+"|a"),
			tgbotapi.NewInlineKeyboardButtonData("👎 Reject", "rev|"+r.ID+"|r"),
		))
		b.sendWithKeyboard(chatID, strings.TrimRight(sb.String(), "\n"), keyboard)
	}
}

// handleReviewCallback handles "rev|recipeID|a" and "rev|recipeID|r".
func (b *Bot) handleReviewCallback(ctx context.Context, chatID int64, messageID int, parts []string) {
	if len(parts) != 3 {
		return
	}
	decision := household.Approve
	if parts[2] == "r" {
		decision = household.Reject
	}

	svc, err := household.Load(ctx, b.deps.Backend)
	if err != nil {
		log.Printf("Failed to load household: %v", err)
		b.editWithKeyboard(chatID, messageID, "❌ Could not load your household.", nil)
		return
	}

	recipe, err := svc.Review(ctx, parts[1], decision, "")
	switch {
	case errors.Is(err, household.ErrForbidden):
		b.editWithKeyboard(chatID, messageID, "⛔ Only household owners and admins can review recipes.", nil)
	case err != nil:
		log.Printf("Failed to review recipe %s: %v", parts[1], err)
		b.editWithKeyboard(chatID, messageID, "❌ Review failed, try again later.", nil)
	case decision == household.Approve:
		b.editWithKeyboard(chatID, messageID, fmt.Sprintf("👍 *%s* approved.", escape(recipe.Title)), nil)
	default:
		b.editWithKeyboard(chatID, messageID, fmt.Sprintf("👎 *%s* rejected.", escape(recipe.Title)), nil)
	}
}

func (b *Bot) handleImport(ctx context.Context, chatID int64, url string) {
	if b.deps.Importer == nil {
		b.sendMarkdown(chatID, "_Recipe import is not enabled._")
		return
	}

	messageID := b.sendWithKeyboard(chatID, "✂️ *Importing recipe...*", tgbotapi.InlineKeyboardMarkup{})

	recipe, err := b.deps.Importer.Import(ctx, url)
	var text string
	if err != nil {
		log.Printf("Error importing recipe %s: %v", url, err)
		safeErr := strings.ReplaceAll(err.Error(), "`", "'")
		text = fmt.Sprintf("❌ *Error importing recipe:*\n```\n%v\n```", safeErr)
		b.sendAdminAlert(fmt.Sprintf("⚠️ *Import failed*\n%s", escape(url)))
	} else {
		text = fmt.Sprintf("✅ *Recipe submitted for review!*\n\n*Title:* %s", escape(recipe.Title))
	}

	if messageID == 0 {
		b.sendMarkdown(chatID, text)
		return
	}
	b.editWithKeyboard(chatID, messageID, text, nil)
}
