package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/timereg/internal/collection"
	"github.com/Tiliavir/timereg/internal/config"
	"github.com/Tiliavir/timereg/internal/entrystore"
	"github.com/Tiliavir/timereg/internal/event"
	"github.com/Tiliavir/timereg/internal/logger"
	"github.com/Tiliavir/timereg/internal/model"
)

var (
	debug bool
	cfg   config.Config
)

var rootCmd = &cobra.Command{
	Use:   "treg",
	Short: "treg – register working hours against a time entry service",
	Long: `treg records time entries through the /time-entries API.
Run "treg serve" to host the API locally; every other command talks to the
backend configured in ~/.treg/config.json.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute is the entry point called from main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log debug output to stderr")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(outlookCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	return logger.Init(logger.Config{
		Debug:  debug,
		Dir:    filepath.Join(dir, "logs"),
		Stderr: cmd == serveCmd,
	})
}

// exitCode maps an error to the process exit status: 1 for input the user
// can fix, 2 for backend and I/O failures.
func exitCode(err error) int {
	var ce *collection.Error
	if errors.As(err, &ce) {
		switch ce.Kind {
		case collection.KindTransport, collection.KindAPI:
			return 2
		}
		return 1
	}
	return 1
}

// newStore builds the entry store client from the loaded config.
func newStore(ctx context.Context) *entrystore.Client {
	token, err := cfg.ResolveToken()
	if err != nil {
		logger.Warn("keyring lookup failed, continuing without token", "error", err)
	}
	return entrystore.New(ctx, entrystore.Options{
		BaseURL:      cfg.API.BaseURL,
		Timeout:      time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		Token:        token,
		TokenURL:     cfg.API.TokenURL,
		ClientID:     cfg.API.ClientID,
		ClientSecret: cfg.API.ClientSecret,
	})
}

// loadManager creates a collection manager over the configured backend and
// loads it. Collection changes are logged at debug level until ctx ends.
func loadManager(ctx context.Context) (*collection.Manager, error) {
	bus := event.NewBus()
	m := collection.New(newStore(ctx),
		collection.WithBus(bus),
		collection.WithVariant(model.FormVariant(cfg.View.FormVariant)),
		collection.WithPageSize(cfg.View.PageSize),
	)

	changes, err := m.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	go func() {
		for c := range changes {
			logger.Debug("collection changed", "type", c.Type, "id", c.EntryID, "count", c.Count, "error", c.Error)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = bus.Close()
	}()

	if err := m.Load(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// parseID parses an entry id argument.
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid entry id %q", arg)
	}
	return id, nil
}
