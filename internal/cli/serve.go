/*
PURPOSE:
  Defines the 'serve' subcommand: the classification HTTP service.

REQUIREMENTS:
  User-specified:
  - Expose classify and predict over HTTP with the configured models.

  Implementation-discovered:
  - The prediction store is optional for serving; a store that fails to
    open is logged and the /predictions route answers 404.

ARCHITECTURE INTEGRATION:
  - Calls: internal/server.New, Start, Stop

ERROR HANDLING:
  - Listen errors are returned. SIGINT/SIGTERM shut down gracefully.

USAGE:
  foodallergens serve --addr :8080

RELATED FILES:
  - internal/server/server.go
*/

package cli

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IsseiKhai277/foodallergens/internal/output"
	"github.com/IsseiKhai277/foodallergens/internal/server"
	"github.com/IsseiKhai277/foodallergens/internal/store"
)

var (
	addrOverride   string
	serveWithStore bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve allergen classification over HTTP",
	Example: `  foodallergens serve --addr 0.0.0.0:8080
  curl -s localhost:8080/predict -d '{"ingredients":"milk, sugar"}'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addrOverride != "" {
			cfg.ServerAddr = addrOverride
		}

		var st store.Store
		if serveWithStore {
			st, err = store.Open(cfg.StoreBackend, cfg.StorePath)
			if err != nil {
				output.Logger.Warn("Prediction store unavailable", "backend", cfg.StoreBackend, "path", cfg.StorePath, "error", err)
				st = nil
			} else {
				defer st.Close()
			}
		}

		srv := server.New(newDriver(cfg), server.Options{
			Addr:         cfg.ServerAddr,
			ModelDir:     cfg.ModelDir,
			DefaultModel: cfg.DefaultModel,
			CacheTTL:     cfg.CacheTTL.Duration,
			CacheSize:    cfg.CacheSize,
		}, st)

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			srv.Stop()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case sig := <-stop:
			output.Logger.Info("Shutting down", "signal", sig.String())
			return srv.Stop()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&addrOverride, "addr", "", "Listen address (overrides server_addr)")
	serveCmd.Flags().BoolVar(&serveWithStore, "store", true, "Serve stored predictions under /predictions/{model}")
}
