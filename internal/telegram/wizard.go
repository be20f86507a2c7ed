package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"dinner-planner/internal/api"
	"dinner-planner/internal/approval"
	"dinner-planner/internal/dateutil"
	"dinner-planner/internal/suggestion"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) startWizard(ctx context.Context, chatID int64, arg string) {
	startDate := dateutil.NextMonday(b.deps.Now())
	if arg != "" {
		if _, err := dateutil.ParseDate(arg); err != nil {
			b.sendMarkdown(chatID, fmt.Sprintf("❌ *Invalid start date* `%s`. Use YYYY-MM-DD.", arg))
			return
		}
		startDate = arg
	}

	st := &WizardState{
		Step:       stepConstraints,
		StartDate:  startDate,
		DinnerDays: []int{0, 1, 2, 3, 4, 5, 6},
	}
	c, err := b.constraintsFor(chatID, st)
	if err != nil {
		log.Printf("Failed to start wizard for chat %d: %v", chatID, err)
		b.sendMarkdown(chatID, "❌ Could not start planning.")
		return
	}

	text, keyboard := renderConstraints(c)
	st.MessageID = b.sendWithKeyboard(chatID, text, keyboard)
	b.saveWizard(ctx, chatID, st)
}

func (b *Bot) cancelWizard(ctx context.Context, chatID int64) {
	if err := b.deps.Wizards.Delete(ctx, chatID); err != nil {
		log.Printf("Failed to cancel wizard: %v", err)
	}
	b.sendMarkdown(chatID, "Planning cancelled. Send /plan to start again.")
}

func (b *Bot) saveWizard(ctx context.Context, chatID int64, st *WizardState) {
	if err := b.deps.Wizards.Save(ctx, chatID, st, b.deps.Now().Add(wizardTTL)); err != nil {
		log.Printf("Failed to save wizard for chat %d: %v", chatID, err)
	}
}

func (b *Bot) constraintsFor(chatID int64, st *WizardState) (*suggestion.Constraints, error) {
	c, err := suggestion.NewConstraints(b.deps.Backend, b.chatNotifier(chatID), st.StartDate, b.deps.SessionOptions...)
	if err != nil {
		return nil, err
	}
	if err := c.SetDinnerDays(st.DinnerDays); err != nil {
		return nil, err
	}
	c.SetAvoidRepeats(st.AvoidRepeats)
	c.SetPreferSimple(st.PreferSimple)
	c.SetVegetarianOnly(st.VegetarianOnly)
	return c, nil
}

func (b *Bot) sessionFor(chatID int64, st *WizardState) *suggestion.Session {
	return suggestion.RestoreSession(b.deps.Backend, b.chatNotifier(chatID), *st.Session, b.deps.SessionOptions...)
}

func (b *Bot) handleWizardCallback(ctx context.Context, chatID int64, messageID int, parts []string) {
	st, err := b.deps.Wizards.Get(ctx, chatID, b.deps.Now())
	if err != nil {
		log.Printf("Failed to load wizard for chat %d: %v", chatID, err)
	}
	if st == nil {
		b.editWithKeyboard(chatID, messageID, "⌛ This planning session expired. Send /plan to start again.", nil)
		return
	}

	action := parts[0]
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}

	if action == "cancel" {
		if err := b.deps.Wizards.Delete(ctx, chatID); err != nil {
			log.Printf("Failed to cancel wizard: %v", err)
		}
		b.editWithKeyboard(chatID, messageID, "Planning cancelled.", nil)
		return
	}

	switch st.Step {
	case stepConstraints:
		b.handleConstraintsAction(ctx, chatID, messageID, st, action, arg)
	case stepSuggestions, stepPick:
		if st.Session == nil {
			log.Printf("Wizard for chat %d is in step %s without a session", chatID, st.Step)
			return
		}
		b.handleSuggestionsAction(ctx, chatID, messageID, st, action, arg)
	}
}

func (b *Bot) handleConstraintsAction(ctx context.Context, chatID int64, messageID int, st *WizardState, action, arg string) {
	c, err := b.constraintsFor(chatID, st)
	if err != nil {
		log.Printf("Failed to rebuild constraints for chat %d: %v", chatID, err)
		return
	}

	switch action {
	case "day":
		day, err := strconv.Atoi(arg)
		if err != nil {
			return
		}
		if err := c.ToggleDay(day); err != nil {
			log.Printf("Ignoring toggle for day %q: %v", arg, err)
			return
		}
	case "opt":
		v := c.Value()
		switch arg {
		case "avoid":
			c.SetAvoidRepeats(!v.AvoidRepeats)
		case "simple":
			c.SetPreferSimple(!v.PreferSimple)
		case "veg":
			c.SetVegetarianOnly(!v.VegetarianOnly)
		}
	case "gen":
		b.generate(ctx, chatID, messageID, st, c)
		return
	default:
		return
	}

	storeConstraints(st, c)
	b.saveWizard(ctx, chatID, st)
	text, keyboard := renderConstraints(c)
	b.editWithKeyboard(chatID, messageID, text, &keyboard)
}

func storeConstraints(st *WizardState, c *suggestion.Constraints) {
	v := c.Value()
	st.DinnerDays = c.DinnerDays()
	st.AvoidRepeats = v.AvoidRepeats
	st.PreferSimple = v.PreferSimple
	st.VegetarianOnly = v.VegetarianOnly
}

func (b *Bot) generate(ctx context.Context, chatID int64, messageID int, st *WizardState, c *suggestion.Constraints) {
	if !c.CanGenerate() {
		text, keyboard := renderConstraints(c)
		b.editWithKeyboard(chatID, messageID, text+"\n\n⚠️ Pick at least one day to cook.", &keyboard)
		return
	}

	b.editWithKeyboard(chatID, messageID, "🧑‍🍳 *Thinking...*\n(Picking dinners for your week)", nil)

	sess, err := c.Submit(ctx)
	if err != nil {
		// The chat notifier already told the user what went wrong.
		text, keyboard := renderConstraints(c)
		b.editWithKeyboard(chatID, messageID, text, &keyboard)
		return
	}

	snap := sess.Snapshot()
	st.Session = &snap
	st.Step = stepSuggestions
	st.MessageID = messageID
	b.saveWizard(ctx, chatID, st)
	b.showSuggestions(chatID, messageID, sess, "")
}

func (b *Bot) handleSuggestionsAction(ctx context.Context, chatID int64, messageID int, st *WizardState, action, arg string) {
	sess := b.sessionFor(chatID, st)
	note := ""

	switch action {
	case "alt":
		if _, err := sess.RequestAlternative(ctx, arg); err != nil {
			switch {
			case errors.Is(err, suggestion.ErrNoAlternative), errors.Is(err, suggestion.ErrSupersededRequest):
				return
			default:
				note = fmt.Sprintf("⚠️ Couldn't find another recipe for %s.", dateutil.FormatDateString(arg, approval.DefaultLayout))
			}
		}
	case "pick":
		if _, err := sess.Day(arg); err != nil {
			return
		}
		st.Step = stepPick
		st.PickDate = arg
		st.MessageID = messageID
		b.saveWizard(ctx, chatID, st)
		b.sendMarkdown(chatID, fmt.Sprintf("🔎 Send a search term for *%s*.", dateutil.FormatDateString(arg, approval.DefaultLayout)))
		return
	case "choose":
		if st.PickDate == "" {
			return
		}
		date := st.PickDate
		picker := suggestion.PickerFunc(func(ctx context.Context, req suggestion.PickRequest) error {
			_, err := b.deps.Backend.UpdatePlan(ctx, req.Date, api.PlanUpdate{RecipeID: arg})
			return err
		})
		if err := sess.PickManually(ctx, date, picker); err != nil {
			note = fmt.Sprintf("⚠️ Couldn't save your pick for %s.", dateutil.FormatDateString(date, approval.DefaultLayout))
		}
		st.Step = stepSuggestions
		st.PickDate = ""
	case "back":
		st.Step = stepSuggestions
		st.PickDate = ""
		if err := sess.Refresh(ctx); err != nil {
			note = "⚠️ Couldn't reach the server, showing the last known plan."
		}
	case "refresh":
		if err := sess.Refresh(ctx); err != nil {
			note = "⚠️ Couldn't reach the server, showing the last known plan."
		}
	case "approve":
		b.approve(ctx, chatID, messageID, st, sess)
		return
	default:
		return
	}

	snap := sess.Snapshot()
	st.Session = &snap
	st.MessageID = messageID
	b.saveWizard(ctx, chatID, st)
	b.showSuggestions(chatID, messageID, sess, note)
}

func (b *Bot) approve(ctx context.Context, chatID int64, messageID int, st *WizardState, sess *suggestion.Session) {
	b.editWithKeyboard(chatID, messageID, "⏳ *Approving your week...*", nil)

	result, err := sess.Approve(ctx)
	if err != nil {
		snap := sess.Snapshot()
		st.Session = &snap
		b.saveWizard(ctx, chatID, st)
		b.showSuggestions(chatID, messageID, sess, "")
		return
	}

	if err := result.ResolveTitles(ctx, b.deps.Backend); err != nil {
		log.Printf("Failed to resolve recipe titles for week %s: %v", result.WeekStart, err)
	}

	digest := result.Digest(approval.DefaultLayout)
	b.editWithKeyboard(chatID, messageID, "✅ *Week approved*\n\n"+escape(digest), nil)
	b.sendPlanPDF(chatID, result)

	if err := b.deps.Wizards.Delete(ctx, chatID); err != nil {
		log.Printf("Failed to clear wizard after approval: %v", err)
	}
}

func (b *Bot) sendPlanPDF(chatID int64, result *approval.Result) {
	var file tgbotapi.RequestFileData
	if b.deps.Archive != nil {
		path, err := b.deps.Archive.Save(result)
		if err != nil {
			log.Printf("Failed to archive week %s: %v", result.WeekStart, err)
			return
		}
		file = tgbotapi.FilePath(path)
	} else {
		var buf bytes.Buffer
		if err := result.WritePDF(&buf, approval.DefaultLayout); err != nil {
			log.Printf("Failed to render week %s: %v", result.WeekStart, err)
			return
		}
		file = tgbotapi.FileBytes{Name: fmt.Sprintf("week_%s.pdf", result.WeekStart), Bytes: buf.Bytes()}
	}

	doc := tgbotapi.NewDocument(chatID, file)
	doc.Caption = "🗓 Your dinner plan"
	if _, err := b.api.Send(doc); err != nil {
		log.Printf("Failed to send plan pdf to chat %d: %v", chatID, err)
	}
}

func (b *Bot) showSuggestions(chatID int64, messageID int, sess *suggestion.Session, note string) {
	text, keyboard := renderSuggestions(sess.StartDate(), sess.Suggestions())
	if note != "" {
		text += "\n\n" + note
	}
	b.editWithKeyboard(chatID, messageID, text, &keyboard)
}

func (b *Bot) handleSearch(ctx context.Context, chatID int64, st *WizardState, query string) {
	if query == "" {
		return
	}
	recipes, err := b.deps.Backend.SearchRecipes(ctx, query, 5)
	if err != nil {
		log.Printf("Recipe search %q failed: %v", query, err)
		b.sendMarkdown(chatID, "❌ Search failed, try again.")
		return
	}
	if len(recipes) == 0 {
		b.sendMarkdown(chatID, fmt.Sprintf("No recipes match *%s*. Try another term.", escape(query)))
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range recipes {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(r.Title, "choose|"+r.ID),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("↩️ Back", "back"),
	))

	text := fmt.Sprintf("Pick a recipe for *%s*:", dateutil.FormatDateString(st.PickDate, approval.DefaultLayout))
	b.sendWithKeyboard(chatID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}
