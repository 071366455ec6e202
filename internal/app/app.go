package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"TasteClient/internal/api"
	"TasteClient/internal/config"
	"TasteClient/internal/infrastructure/notify"
	"TasteClient/internal/infrastructure/storage"
	"TasteClient/internal/infrastructure/transport"
	"TasteClient/internal/logging"
	"TasteClient/internal/session"
	"TasteClient/internal/usecase"
)

// LoginCommand is what the user is told to run after a forced logout.
const LoginCommand = "tasteai login"

// Application wires configs to use cases and owns their lifecycle.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	out    io.Writer

	store     *session.Store
	transport *transport.Client
	api       *api.Client
	workflow  *usecase.ScoringWorkflow
	trends    *usecase.TrendClient
	notices   *notify.Console

	closeStorage func() error
}

// New builds every component once and restores a persisted session.
// Command output goes to out; nil means stdout.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, out io.Writer) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if out == nil {
		out = os.Stdout
	}

	backend, err := storage.DefaultRegistry().Resolve(cfg.Storage.Driver)
	if err != nil {
		return nil, err
	}
	persister, closeStorage, err := backend.Open(ctx, storage.Settings{
		Dir:           cfg.Storage.Dir,
		DSN:           cfg.Storage.DSN,
		EncryptionKey: cfg.Storage.EncryptionKey,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}

	store := session.NewStore(persister, cfg.Session.StorageKey, baseLogger.With("component", "session"))

	tc, err := transport.New(transport.Options{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
		LoginPath: cfg.Session.LoginPath,
	}, store, baseLogger.With("component", "transport"))
	if err != nil {
		_ = closeStorage()
		return nil, err
	}

	notices := notify.NewConsole(out, LoginCommand)
	tc.OnAuthExpired(notices)

	client := api.New(tc, store, baseLogger.With("component", "api"))
	if err := client.Auth.InitializeToken(ctx); err != nil {
		_ = closeStorage()
		return nil, err
	}

	workflow := usecase.NewScoringWorkflow(client.Aesthetic, usecase.WorkflowOptions{
		MaxBytes:     cfg.Upload.MaxBytes,
		AllowedTypes: cfg.Upload.AllowedTypes,
	}, baseLogger.With("component", "workflow"))

	baseLogger.Debug("client ready", "api", tc.BaseURL(), "storage", cfg.Storage.Driver)

	return &Application{
		cfg:          cfg,
		logger:       baseLogger,
		out:          out,
		store:        store,
		transport:    tc,
		api:          client,
		workflow:     workflow,
		trends:       usecase.NewTrendClient(client.Trends, baseLogger.With("component", "trends")),
		notices:      notices,
		closeStorage: closeStorage,
	}, nil
}

// Close releases storage handles and outstanding previews.
func (a *Application) Close() error {
	a.workflow.Close()
	if a.closeStorage == nil {
		return nil
	}
	return a.closeStorage()
}

// ErrUsage marks a command line that could not be understood.
var ErrUsage = errors.New("usage")
