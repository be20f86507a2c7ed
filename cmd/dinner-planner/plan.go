package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dinner-planner/internal/api"
	"dinner-planner/internal/app"
	"dinner-planner/internal/approval"
	"dinner-planner/internal/dateutil"
	"dinner-planner/internal/suggestion"
)

var dayIndex = map[string]int{"mon": 0, "tue": 1, "wed": 2, "thu": 3, "fri": 4, "sat": 5, "sun": 6}

func parseDays(raw string) ([]int, error) {
	var days []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		d, ok := dayIndex[part[:min(3, len(part))]]
		if !ok {
			return nil, fmt.Errorf("unknown day %q", part)
		}
		days = append(days, d)
	}
	return days, nil
}

func runPlan(ctx context.Context, a *app.App, args []string) error {
	cmd := flag.NewFlagSet("plan", flag.ExitOnError)
	start := cmd.String("start", dateutil.NextMonday(time.Now()), "First day of the week (YYYY-MM-DD)")
	days := cmd.String("days", "mon,tue,wed,thu,fri,sat,sun", "Days to cook, comma separated")
	avoid := cmd.Bool("avoid-repeats", false, "Avoid recipes from recent weeks")
	simple := cmd.Bool("simple", false, "Prefer simple recipes")
	veg := cmd.Bool("vegetarian", false, "Vegetarian recipes only")
	cmd.Parse(args)

	if _, err := a.RequireSession(ctx); err != nil {
		return err
	}

	c, err := a.NewConstraints(*start, cliNotifier)
	if err != nil {
		return err
	}
	dinnerDays, err := parseDays(*days)
	if err != nil {
		return err
	}
	if err := c.SetDinnerDays(dinnerDays); err != nil {
		return err
	}
	c.SetAvoidRepeats(*avoid)
	c.SetPreferSimple(*simple)
	c.SetVegetarianOnly(*veg)

	fmt.Printf("Picking dinners for the week of %s...\n", dateutil.FormatDateString(*start, approval.DefaultLayout))
	sess, err := c.Submit(ctx)
	if err != nil {
		return err
	}

	in := bufio.NewScanner(os.Stdin)
	for {
		printSuggestions(sess.Suggestions())
		fmt.Print("\n[a N] another recipe  [p N words] search  [r] refresh  [ok] approve  [q] quit\n> ")
		if !in.Scan() {
			return in.Err()
		}
		fields := strings.Fields(in.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "a":
			date, ok := pickDate(sess, fields)
			if !ok {
				continue
			}
			if _, err := sess.RequestAlternative(ctx, date); err != nil {
				fmt.Printf("No alternative: %v\n", err)
			}
		case "p":
			date, ok := pickDate(sess, fields)
			if !ok || len(fields) < 3 {
				fmt.Println("Usage: p N search words")
				continue
			}
			recipe, err := searchAndChoose(ctx, a, in, strings.Join(fields[2:], " "))
			if err != nil || recipe == nil {
				if err != nil {
					fmt.Printf("Search failed: %v\n", err)
				}
				continue
			}
			if err := sess.PickManually(ctx, date, a.PlanPicker(recipe.ID)); err != nil {
				fmt.Printf("Could not save your pick: %v\n", err)
			}
		case "r":
			if err := sess.Refresh(ctx); err != nil {
				fmt.Printf("Refresh failed, showing the last known plan: %v\n", err)
			}
		case "ok":
			result, err := sess.Approve(ctx)
			if err != nil {
				continue
			}
			path, err := a.FinishApproval(ctx, result)
			fmt.Printf("\n=== APPROVED WEEK ===\n%s\n", result.Digest(approval.DefaultLayout))
			if err != nil {
				return fmt.Errorf("week approved but not exported: %w", err)
			}
			fmt.Printf("\nSaved %s\n", path)
			return nil
		case "q":
			return nil
		}
	}
}

// pickDate resolves the 1-based day number in fields[1].
func pickDate(sess *suggestion.Session, fields []string) (string, bool) {
	if len(fields) < 2 {
		return "", false
	}
	n, err := strconv.Atoi(fields[1])
	days := sess.Suggestions()
	if err != nil || n < 1 || n > len(days) {
		fmt.Printf("Pick a day between 1 and %d\n", len(days))
		return "", false
	}
	return days[n-1].Date, true
}

func searchAndChoose(ctx context.Context, a *app.App, in *bufio.Scanner, query string) (*api.Recipe, error) {
	recipes, err := a.Client.SearchRecipes(ctx, query, 5)
	if err != nil {
		return nil, err
	}
	if len(recipes) == 0 {
		fmt.Printf("No recipes match %q.\n", query)
		return nil, nil
	}
	for i, r := range recipes {
		fmt.Printf("  %d. %s\n", i+1, r.Title)
	}
	fmt.Print("Choose a recipe (empty to cancel): ")
	if !in.Scan() {
		return nil, in.Err()
	}
	n, err := strconv.Atoi(strings.TrimSpace(in.Text()))
	if err != nil || n < 1 || n > len(recipes) {
		return nil, nil
	}
	return &recipes[n-1], nil
}

func printSuggestions(days []api.DaySuggestion) {
	fmt.Println()
	for i, d := range days {
		date := dateutil.FormatDateString(d.Date, approval.DefaultLayout)
		var label string
		switch suggestion.DisplayOf(d) {
		case suggestion.DisplaySkipped:
			label = "(" + d.Label + ")"
			if d.Label == "" {
				label = "(skipped)"
			}
		case suggestion.DisplayRecipe:
			label = d.RecipeID
			if d.Recipe != nil {
				label = d.Recipe.Title
			}
		default:
			label = approval.NoMealPlanned
		}
		fmt.Printf("%d. %-12s %s\n", i+1, date, label)
	}
}
