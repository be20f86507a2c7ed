package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"dinner-planner/internal/api"
	"dinner-planner/internal/approval"
	"dinner-planner/internal/dateutil"
	"dinner-planner/internal/metrics"
	"dinner-planner/internal/notify"
	"dinner-planner/internal/suggestion"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = `🍽 *Dinner Planner*

/plan - plan next week (or /plan YYYY-MM-DD)
/stores - reorder store aisles
/pending - review submitted recipes
/cancel - stop planning

Send a recipe link to submit it for review.`

var weekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func check(on bool) string {
	if on {
		return "✅"
	}
	return "▫️"
}

func renderConstraints(c *suggestion.Constraints) (string, tgbotapi.InlineKeyboardMarkup) {
	v := c.Value()
	text := fmt.Sprintf("🗓 *Plan the week of %s*\nChoose the days you want to cook dinner.",
		dateutil.FormatDateString(v.StartDate, approval.DefaultLayout))

	var days []tgbotapi.InlineKeyboardButton
	for i, name := range weekdayNames {
		label := name
		if c.IsSelected(i) {
			label = "✅" + name
		}
		days = append(days, tgbotapi.NewInlineKeyboardButtonData(label, "day|"+strconv.Itoa(i)))
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		days[:4],
		days[4:],
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(check(v.AvoidRepeats)+" No repeats", "opt|avoid"),
			tgbotapi.NewInlineKeyboardButtonData(check(v.PreferSimple)+" Simple", "opt|simple"),
			tgbotapi.NewInlineKeyboardButtonData(check(v.VegetarianOnly)+" Veggie", "opt|veg"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✨ Suggest dinners", "gen"),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "cancel"),
		),
	)
	return text, keyboard
}

// dayLine renders one day of a suggestion set.
func dayLine(d api.DaySuggestion) string {
	date := dateutil.FormatDateString(d.Date, approval.DefaultLayout)
	switch suggestion.DisplayOf(d) {
	case suggestion.DisplaySkipped:
		label := d.Label
		if label == "" {
			label = "Skipped"
		}
		return fmt.Sprintf("*%s*: _%s_", date, escape(label))
	case suggestion.DisplayRecipe:
		title := d.RecipeID
		if d.Recipe != nil && d.Recipe.Title != "" {
			title = d.Recipe.Title
		}
		return fmt.Sprintf("*%s*: %s", date, escape(title))
	default:
		return fmt.Sprintf("*%s*: _%s_", date, approval.NoMealPlanned)
	}
}

func renderSuggestions(startDate string, days []api.DaySuggestion) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 *Suggestions for the week of %s*\n\n",
		dateutil.FormatDateString(startDate, approval.DefaultLayout)))

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, d := range days {
		sb.WriteString(dayLine(d))
		sb.WriteString("\n")

		name := dateutil.DayName(d.Date)
		if len(name) > 3 {
			name = name[:3]
		}
		switch suggestion.DisplayOf(d) {
		case suggestion.DisplayRecipe:
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔄 "+name, "alt|"+d.Date),
				tgbotapi.NewInlineKeyboardButtonData("🔎 "+name, "pick|"+d.Date),
			))
		case suggestion.DisplayEmpty:
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔎 "+name, "pick|"+d.Date),
			))
		}
	}

	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔃 Refresh", "refresh"),
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "approve"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "cancel"),
		),
	)
	return strings.TrimRight(sb.String(), "\n"), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func formatNotice(n notify.Notice) string {
	icon := "ℹ️"
	switch n.Level {
	case notify.LevelWarn:
		icon = "⚠️"
	case notify.LevelError:
		icon = "❌"
	}
	return fmt.Sprintf("%s *%s*\n%s", icon, escape(n.Title), escape(n.Message))
}

func formatMetrics(usage []metrics.DailyUsage, endpoints []metrics.EndpointStats, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d requests (%d failed), %d tokens\n",
			d.Date, d.Requests, d.FailedRequests, d.TotalPrompt+d.TotalCompletion))
	}

	if len(endpoints) > 0 {
		sb.WriteString("\n🔌 *Endpoints*\n")
		for _, e := range endpoints {
			sb.WriteString(fmt.Sprintf("• `%s %s`: %d calls, %d failed, %dms avg\n",
				e.Method, e.Endpoint, e.Count, e.Failures, e.AvgLatencyMS))
		}
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Uptime: %s\n", health.Uptime))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataSize))
	return sb.String()
}
