package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Tiliavir/timereg/internal/logger"
	"github.com/Tiliavir/timereg/internal/server"
	"github.com/Tiliavir/timereg/internal/storage"
	"github.com/Tiliavir/timereg/internal/storage/sqlstore"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the /time-entries API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides server.listen)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	started := time.Now()

	repo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("closing repository failed", "error", err)
		}
	}()

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.Server.Listen
	if serveListen != "" {
		srvCfg.Addr = serveListen
	}
	srvCfg.CORSOrigins = cfg.Server.CORSOrigins
	srv := server.New(srvCfg, repo)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	fmt.Printf("Server stopped. Uptime: %s\n", formatElapsed(int64(time.Since(started).Seconds())))
	return nil
}

// openRepository opens the storage driver selected in the config.
func openRepository(ctx context.Context) (storage.Repository, error) {
	st := cfg.Server.Storage
	switch st.Driver {
	case sqlstore.DriverSQLite, sqlstore.DriverPostgres:
		dsn := st.DSN
		if dsn == "" {
			if st.Driver == sqlstore.DriverPostgres {
				return nil, fmt.Errorf("the postgres driver needs server.storage.dsn")
			}
			var err error
			if dsn, err = sqlstore.DefaultPath(); err != nil {
				return nil, err
			}
		}
		logger.Info("opening sql storage", "driver", st.Driver)
		db, err := sqlstore.Open(ctx, st.Driver, dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		base := st.DSN
		if base == "" {
			var err error
			if base, err = storage.BaseDir(); err != nil {
				return nil, err
			}
		}
		logger.Info("opening json storage", "dir", base)
		files, err := storage.Open(base)
		if err != nil {
			return nil, err
		}
		return files, nil
	}
}

func formatElapsed(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
