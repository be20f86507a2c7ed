package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"dinner-planner/internal/app"
	"dinner-planner/internal/config"
	"dinner-planner/internal/household"
	"dinner-planner/internal/metrics"
	"dinner-planner/internal/notify"
	"dinner-planner/internal/session"
	"dinner-planner/internal/stores"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer application.Close()

	if err := run(ctx, application, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			fmt.Fprintln(os.Stderr, "You are not signed in. Run: dinner-planner login -email you@example.com")
		}
		application.Close()
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func run(ctx context.Context, a *app.App, command string, args []string) error {
	switch command {
	case "login":
		cmd := flag.NewFlagSet("login", flag.ExitOnError)
		email := cmd.String("email", "", "Account email")
		password := cmd.String("password", os.Getenv("DINNER_PLANNER_PASSWORD"), "Account password")
		cmd.Parse(args)

		user, err := a.Session.Login(ctx, *email, *password)
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s <%s>\n", user.Name, user.Email)
	case "signup":
		cmd := flag.NewFlagSet("signup", flag.ExitOnError)
		name := cmd.String("name", "", "Your name")
		email := cmd.String("email", "", "Account email")
		password := cmd.String("password", os.Getenv("DINNER_PLANNER_PASSWORD"), "Account password")
		cmd.Parse(args)

		user, err := a.Session.Signup(ctx, *name, *email, *password)
		if err != nil {
			return err
		}
		fmt.Printf("Welcome, %s!\n", user.Name)
	case "logout":
		if err := a.Session.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Signed out.")
	case "whoami":
		user, err := a.RequireSession(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s <%s>\n", user.Name, user.Email)
	case "plan":
		return runPlan(ctx, a, args)
	case "stores":
		return runStores(ctx, a, args)
	case "import":
		return runImport(ctx, a, args)
	case "household":
		return runHousehold(ctx, a, args)
	case "pending":
		return runPending(ctx, a)
	case "review":
		return runReview(ctx, a, args)
	case "exports":
		weeks, err := a.Archive.List()
		if err != nil {
			return err
		}
		for _, w := range weeks {
			fmt.Println(w)
		}
	case "metrics":
		cmd := flag.NewFlagSet("metrics", flag.ExitOnError)
		days := cmd.Int("days", 7, "Report the last N days")
		cmd.Parse(args)
		return printMetrics(a, *days)
	case "metrics-cleanup":
		cmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cmd.Int("days", 30, "Keep records for the last N days")
		cmd.Parse(args)

		affected, err := a.CleanupMetrics(*days)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	return nil
}

// cliNotifier prints notices to stderr.
var cliNotifier = notify.Func(func(_ context.Context, n notify.Notice) {
	fmt.Fprintf(os.Stderr, "\n[%s] %s\n  %s\n", strings.ToUpper(string(n.Level)), n.Title, n.Message)
})

func runStores(ctx context.Context, a *app.App, args []string) error {
	cmd := flag.NewFlagSet("stores", flag.ExitOnError)
	storeID := cmd.String("store", "", "Store to reorder")
	index := cmd.Int("index", -1, "Position of the category to move (1-based)")
	dir := cmd.String("dir", "up", "Direction to move: up or down")
	cmd.Parse(args)

	if _, err := a.RequireSession(ctx); err != nil {
		return err
	}

	editor := a.StoreEditor(cliNotifier)
	list, err := editor.Load(ctx)
	if err != nil {
		return err
	}

	if *storeID == "" {
		for _, s := range list {
			fmt.Printf("%s  %s\n", s.ID, s.Name)
			for i, c := range s.CategoryOrder {
				fmt.Printf("    %d. %s\n", i+1, c)
			}
		}
		return nil
	}

	direction := stores.Up
	if *dir == "down" {
		direction = stores.Down
	}
	moveErr := editor.MoveCategory(ctx, *storeID, *index-1, direction)

	order, err := editor.Categories(*storeID)
	if err != nil {
		return err
	}
	for i, c := range order {
		fmt.Printf("%d. %s\n", i+1, c)
	}
	return moveErr
}

func runImport(ctx context.Context, a *app.App, args []string) error {
	cmd := flag.NewFlagSet("import", flag.ExitOnError)
	preview := cmd.Bool("preview", false, "Show what would be submitted without sending it")
	cmd.Parse(args)
	if cmd.NArg() != 1 {
		return fmt.Errorf("usage: dinner-planner import [-preview] <url>")
	}
	url := cmd.Arg(0)

	if *preview {
		sub, err := a.Importer.Preview(ctx, url)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n\nIngredients:\n", sub.Title)
		for _, i := range sub.Ingredients {
			fmt.Printf("- %s\n", i)
		}
		fmt.Println("\nInstructions:")
		for n, s := range sub.Instructions {
			fmt.Printf("%d. %s\n", n+1, s)
		}
		return nil
	}

	if _, err := a.RequireSession(ctx); err != nil {
		return err
	}
	recipe, err := a.Importer.Import(ctx, url)
	if err != nil {
		return err
	}
	fmt.Printf("Submitted '%s' for review (%s).\n", recipe.Title, recipe.Status)
	return nil
}

func runHousehold(ctx context.Context, a *app.App, args []string) error {
	cmd := flag.NewFlagSet("household", flag.ExitOnError)
	invite := cmd.String("invite", "", "Email address to invite")
	remove := cmd.String("remove", "", "User id to remove")
	cmd.Parse(args)

	if _, err := a.RequireSession(ctx); err != nil {
		return err
	}
	svc, err := a.Household(ctx)
	if err != nil {
		return err
	}

	switch {
	case *invite != "":
		if err := svc.Invite(ctx, *invite); err != nil {
			return err
		}
		fmt.Printf("Invited %s.\n", *invite)
	case *remove != "":
		if err := svc.RemoveMember(ctx, *remove); err != nil {
			return err
		}
		fmt.Printf("Removed %s.\n", *remove)
	default:
		h := svc.Household()
		fmt.Printf("%s (you are %s)\n", h.Name, svc.Role())
		for _, m := range h.Members {
			fmt.Printf("  %-8s %s <%s>  %s\n", m.Role, m.Name, m.Email, m.UserID)
		}
	}
	return nil
}

func runPending(ctx context.Context, a *app.App) error {
	if _, err := a.RequireSession(ctx); err != nil {
		return err
	}
	svc, err := a.Household(ctx)
	if err != nil {
		return err
	}
	pending, err := svc.PendingRecipes(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("Nothing to review.")
	}
	for _, r := range pending {
		fmt.Printf("%s  %s  %s\n", r.ID, r.Title, r.SourceURL)
	}
	return nil
}

func runReview(ctx context.Context, a *app.App, args []string) error {
	cmd := flag.NewFlagSet("review", flag.ExitOnError)
	id := cmd.String("id", "", "Recipe to review")
	decision := cmd.String("decision", "approve", "approve or reject")
	note := cmd.String("note", "", "Optional note for the submitter")
	cmd.Parse(args)

	if _, err := a.RequireSession(ctx); err != nil {
		return err
	}
	svc, err := a.Household(ctx)
	if err != nil {
		return err
	}
	recipe, err := svc.Review(ctx, *id, household.Decision(*decision), *note)
	if err != nil {
		return err
	}
	fmt.Printf("'%s' is now %s.\n", recipe.Title, recipe.Status)
	return nil
}

func printMetrics(a *app.App, days int) error {
	usage, err := a.Metrics.GetDailyUsage(days)
	if err != nil {
		return err
	}
	fmt.Println("=== DAILY USAGE ===")
	for _, d := range usage {
		fmt.Printf("%s  requests=%d failed=%d tokens=%d llm_calls=%d\n",
			d.Date, d.Requests, d.FailedRequests, d.TotalPrompt+d.TotalCompletion, d.TotalExecution)
	}

	stats, err := a.Metrics.GetEndpointStats(days)
	if err != nil {
		return err
	}
	fmt.Println("\n=== ENDPOINTS ===")
	for _, s := range stats {
		fmt.Printf("%-6s %-28s calls=%d failed=%d avg=%dms\n", s.Method, s.Endpoint, s.Count, s.Failures, s.AvgLatencyMS)
	}

	h := metrics.GetSysHealth(a.DataPath())
	fmt.Printf("\nData: %s  Go: %s\n", h.DataSize, h.GoVersion)
	return nil
}

func printUsage() {
	fmt.Println("Usage: dinner-planner <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  login, signup, logout, whoami   Manage the session on this device")
	fmt.Println("  plan                            Plan a week interactively")
	fmt.Println("  stores                          Show or reorder store aisles")
	fmt.Println("  import <url>                    Submit a recipe from the web")
	fmt.Println("  household                       Show, invite or remove members")
	fmt.Println("  pending, review                 Review submitted recipes")
	fmt.Println("  exports                         List approved weeks on disk")
	fmt.Println("  metrics, metrics-cleanup        Show or prune request metrics")
}
