package cli

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dshills/vizier/pkg/config"
	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/datastore"
	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/lens"
	"github.com/dshills/vizier/pkg/metrics"
	"github.com/dshills/vizier/pkg/rpc"
	"github.com/dshills/vizier/pkg/storage"
)

// Paths served by the engine.
const (
	PathRPC     = "/rpc"
	PathMetrics = "/metrics"
	PathHealth  = "/health"
)

// EngineHandler serves the dataset store and the lens engine over JSON-RPC
// on PathRPC, Prometheus metrics on PathMetrics and a liveness probe on
// PathHealth. A non-empty token is required as a bearer token on PathRPC.
func EngineHandler(store dataset.Store, engine lens.Engine, collector *metrics.Collector, token string, logger *slog.Logger) (http.Handler, error) {
	srv := rpc.NewServer(logger)
	datastore.RegisterService(srv, store)
	lens.RegisterService(srv, engine, store)

	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if collector != nil {
		if err := collector.Register(reg); err != nil {
			return nil, err
		}
	}

	mux := http.NewServeMux()
	mux.Handle(PathRPC, requireToken(token, srv))
	mux.Handle(PathMetrics, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc(PathHealth, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux, nil
}

func requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	want := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(strings.TrimSpace(r.Header.Get("Authorization")))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewServeCommand creates the engine server command
func NewServeCommand() *cobra.Command {
	var (
		addr       string
		credential string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve datasets and lenses to remote Vizier clients",
		Long: `Run the delegated engine: the configured dataset store and the lens engine are
served over JSON-RPC so that clients configured with datasets.backend=rpc and
engine.url=http://<addr>/rpc share one store.

If the credential named by --credential exists, clients must send it as a
bearer token.

Endpoints:
  /rpc      JSON-RPC 2.0 (datastore.*, lens.apply)
  /metrics  Prometheus metrics
  /health   liveness probe`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GlobalConfig.Settings
			if cfg.Datasets.Backend == config.DatasetsRPC {
				return fmt.Errorf("serve requires a local dataset backend, configured backend is %q", cfg.Datasets.Backend)
			}

			token, err := storage.NewKeyringCredentialStore().Get(credential)
			if err != nil && !errors.Is(err, verrors.ErrNotFound) {
				return fmt.Errorf("failed to read %s: %w", credential, err)
			}

			return withApp(cmd, func(app *App) error {
				handler, err := EngineHandler(app.Datasets, lens.NewLocalEngine(), app.Metrics, token, app.Logger)
				if err != nil {
					return err
				}
				return serve(cmd, addr, handler, app.Logger)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8089", "Listen address")
	cmd.Flags().StringVar(&credential, "credential", storage.CredentialEngineToken, "Credential holding the bearer token clients must send")

	return cmd
}

func serve(cmd *cobra.Command, addr string, handler http.Handler, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("engine listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s (Ctrl-C to stop)\n", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("engine stopped")
	return nil
}
