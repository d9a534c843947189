package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dshills/vizier/pkg/config"
	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/datastore"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/execution"
	"github.com/dshills/vizier/pkg/filestore"
	"github.com/dshills/vizier/pkg/lens"
	"github.com/dshills/vizier/pkg/metrics"
	"github.com/dshills/vizier/pkg/repository"
	"github.com/dshills/vizier/pkg/rpc"
	"github.com/dshills/vizier/pkg/storage"
	"github.com/dshills/vizier/pkg/transform"
	"github.com/dshills/vizier/pkg/vizual"
	"github.com/dshills/vizier/pkg/workflow"
)

// App is the assembled stack a command works against.
type App struct {
	Config   *config.Config
	Repo     *repository.Repository
	Files    *filestore.Store
	Datasets dataset.Store
	Metrics  *metrics.Collector
	Logger   *slog.Logger

	closers []io.Closer
}

// OpenApp builds the viztrail store, dataset store, file store and engine
// selected by cfg. Secrets for the s3 backend and the delegated engine are
// read from creds; missing entries fall back to anonymous access and the
// default AWS credential chain.
func OpenApp(ctx context.Context, cfg *config.Config, creds *storage.KeyringCredentialStore, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	viztrails, err := openViztrailStore(cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, viztrails)

	headers, err := engineHeaders(cfg, creds)
	if err != nil {
		return nil, err
	}

	dc := cfg.DatastoreConfig()
	dc.Headers = headers
	if dc.Driver == datastore.DriverS3 {
		if err := fillS3Keys(&dc.S3, creds); err != nil {
			return nil, err
		}
	}
	app.Datasets, err = datastore.Open(ctx, dc)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset store: %w", err)
	}
	if c, ok := app.Datasets.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}

	app.Files, err = filestore.NewStore(cfg.FilesDir())
	if err != nil {
		return nil, err
	}

	var lensEngine lens.Engine = lens.NewLocalEngine()
	if cfg.Datasets.Backend == config.DatasetsRPC {
		remote, err := lens.NewRPCEngine(rpc.Config{BaseURL: cfg.Engine.URL, Headers: headers, Timeout: cfg.Engine.Timeout})
		if err != nil {
			return nil, fmt.Errorf("failed to connect lens engine: %w", err)
		}
		app.closers = append(app.closers, remote)
		lensEngine = remote
	}

	engine := execution.NewEngine(workflow.DefaultCommandRepository(),
		execution.WithLogger(logger),
		execution.WithObserver(app.Metrics),
		execution.WithExecutor(workflow.PackageVizual, vizual.NewExecutor(app.Files, vizual.WithLogger(logger))),
		execution.WithExecutor(workflow.PackageScript, transform.NewInterpreter(transform.WithLogger(logger))),
		execution.WithExecutor(workflow.PackageLens, lens.NewExecutor(lensEngine, logger)),
	)
	app.Repo = repository.New(viztrails, app.Datasets, engine,
		repository.WithLogger(logger),
		repository.WithRecorder(app.Metrics),
	)

	logger.Debug("opened stack",
		"viztrails", cfg.Viztrails.Backend,
		"datasets", cfg.Datasets.Backend,
		"data_dir", cfg.DataDir)
	return app, nil
}

// Close releases every store in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openViztrailStore(cfg *config.Config) (storage.ViztrailStore, error) {
	switch cfg.Viztrails.Backend {
	case config.ViztrailsMemory:
		return storage.NewMemoryViztrailStore(), nil
	case config.ViztrailsSQLite:
		return storage.NewSQLiteViztrailStore(cfg.ViztrailsPath())
	default:
		return storage.NewFilesystemViztrailStore(cfg.ViztrailsPath())
	}
}

// engineHeaders returns the bearer header for the delegated engine, or nil
// when no engine is configured or no token is stored.
func engineHeaders(cfg *config.Config, creds *storage.KeyringCredentialStore) (map[string]string, error) {
	if cfg.Engine.URL == "" || creds == nil {
		return nil, nil
	}
	key := cfg.Engine.Credential
	if key == "" {
		key = storage.CredentialEngineToken
	}
	token, err := creds.Get(key)
	if errors.Is(err, verrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read engine credential: %w", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}, nil
}

func fillS3Keys(s3 *datastore.S3Config, creds *storage.KeyringCredentialStore) error {
	if creds == nil {
		return nil
	}
	var cred storage.S3Credential
	err := creds.GetStructured(storage.CredentialS3, &cred)
	if errors.Is(err, verrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read s3 credential: %w", err)
	}
	s3.AccessKeyID = cred.AccessKeyID
	s3.SecretAccessKey = cred.SecretAccessKey
	s3.SessionToken = cred.SessionToken
	return nil
}

// openApp opens the stack for the loaded global configuration.
func openApp(ctx context.Context) (*App, error) {
	if GlobalConfig.Settings == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return OpenApp(ctx, GlobalConfig.Settings, storage.NewKeyringCredentialStore(), newLogger())
}
