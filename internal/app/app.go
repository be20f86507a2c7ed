// Package app wires the local database, the backend client and the workflow
// packages together for the command line and the bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"dinner-planner/internal/api"
	"dinner-planner/internal/approval"
	"dinner-planner/internal/config"
	"dinner-planner/internal/database"
	"dinner-planner/internal/devicestore"
	"dinner-planner/internal/household"
	"dinner-planner/internal/importer"
	"dinner-planner/internal/llm"
	"dinner-planner/internal/metrics"
	"dinner-planner/internal/notify"
	"dinner-planner/internal/session"
	"dinner-planner/internal/storage"
	"dinner-planner/internal/stores"
	"dinner-planner/internal/suggestion"
)

// App holds the application's dependencies.
type App struct {
	cfg     *config.Config
	db      *database.DB
	textGen llm.TextGenerator

	Client   *api.Client
	Session  *session.Manager
	Metrics  *metrics.Store
	Importer *importer.Importer
	Archive  *storage.ExportStore
}

// New opens the local database and builds every component from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...api.Option) (*App, error) {
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	metricsStore := metrics.NewStore(db.SQL)
	client := api.NewFromConfig(cfg, append([]api.Option{api.WithObserver(metricsStore)}, opts...)...)

	kv := devicestore.NewSQLStore(db.SQL)
	manager := session.NewManager(client, devicestore.OpenTokenStore(cfg.DeviceSecret, kv), kv)
	client.SetTokenSource(manager)

	textGen, err := llm.NewFromConfig(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create text generator: %w", err)
	}

	archive, err := storage.NewExportStore(cfg.ExportDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &App{
		cfg:      cfg,
		db:       db,
		textGen:  textGen,
		Client:   client,
		Session:  manager,
		Metrics:  metricsStore,
		Importer: importer.New(client, textGen, metricsStore),
		Archive:  archive,
	}, nil
}

// Close releases the database and the text generator.
func (a *App) Close() error {
	var errs []error
	if c, ok := a.textGen.(llm.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}

// DB exposes the underlying connection for components that keep their own tables.
func (a *App) DB() *database.DB {
	return a.db
}

// DataPath is the directory holding the local database.
func (a *App) DataPath() string {
	return filepath.Dir(a.cfg.DatabasePath)
}

// RequireSession restores the stored session and checks it with the server.
func (a *App) RequireSession(ctx context.Context) (*api.User, error) {
	if _, err := a.Session.Restore(ctx); err != nil {
		return nil, err
	}
	return a.Session.Revalidate(ctx)
}

// NewConstraints starts a planning wizard for the week beginning startDate.
func (a *App) NewConstraints(startDate string, notifier notify.Notifier, opts ...suggestion.SessionOption) (*suggestion.Constraints, error) {
	return suggestion.NewConstraints(a.Client, notifier, startDate, opts...)
}

// PlanPicker saves recipeID as the plan for the date it is asked about.
func (a *App) PlanPicker(recipeID string) suggestion.Picker {
	return suggestion.PickerFunc(func(ctx context.Context, req suggestion.PickRequest) error {
		_, err := a.Client.UpdatePlan(ctx, req.Date, api.PlanUpdate{RecipeID: recipeID})
		return err
	})
}

// FinishApproval fills in recipe titles and archives the approved week. It
// returns the path of the exported PDF.
func (a *App) FinishApproval(ctx context.Context, result *approval.Result) (string, error) {
	if err := result.ResolveTitles(ctx, a.Client); err != nil {
		log.Printf("Failed to resolve recipe titles for week %s: %v", result.WeekStart, err)
	}
	return a.Archive.Save(result)
}

// Household loads the signed-in user's household.
func (a *App) Household(ctx context.Context) (*household.Service, error) {
	return household.Load(ctx, a.Client)
}

// StoreEditor returns an editor for the household's store aisle order.
func (a *App) StoreEditor(notifier notify.Notifier) *stores.Editor {
	return stores.NewEditor(a.Client, notifier)
}

// CleanupMetrics drops metrics older than days.
func (a *App) CleanupMetrics(days int) (int64, error) {
	return a.Metrics.Cleanup(days)
}
