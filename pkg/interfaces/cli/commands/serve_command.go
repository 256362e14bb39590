package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vsinha/picktrack/pkg/application/services/picking"
	"github.com/vsinha/picktrack/pkg/application/services/reconcile"
	"github.com/vsinha/picktrack/pkg/infrastructure/config"
	"github.com/vsinha/picktrack/pkg/infrastructure/repositories/postgres"
	"github.com/vsinha/picktrack/pkg/interfaces/handler"
)

func (a *App) serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve read-only progress, excess pick and audit reports over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := a.storeFor(ctx)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}

			srv := &http.Server{
				Addr:         addr,
				Handler:      handler.NewRouter(store.Orders(), picking.NewService(store, a.logger), reconcile.NewService(store, a.logger), a.logger),
				ReadTimeout:  5 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("starting server", zap.String("addr", addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			a.logger.Info("shutting down server")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default HTTP_ADDR)")
	return cmd
}

func (a *App) migrateCommand() *cobra.Command {
	var qtyOnOrder bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.StoreDriver != config.DriverPostgres {
				return usageError("migrate needs DATABASE_URL or STORE_DRIVER=postgres")
			}
			store, err := a.storeFor(cmd.Context())
			if err != nil {
				return err
			}
			pg, ok := store.(*postgres.Store)
			if !ok {
				return fmt.Errorf("store %T does not support migrations", store)
			}
			if err := pg.Migrate(cmd.Context(), qtyOnOrder); err != nil {
				return err
			}
			a.logger.Info("schema migrated", zap.Bool("qty_on_order", pg.Capabilities().QtyOnOrder))
			return nil
		},
	}
	cmd.Flags().BoolVar(&qtyOnOrder, "qty-on-order", true, "Add the optional qty_on_order column")
	return cmd
}
