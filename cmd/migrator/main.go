package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mini_orm/internal/config"
	"mini_orm/internal/db"
	"mini_orm/internal/logging"
	"mini_orm/internal/migrate"
	"mini_orm/internal/models"
	"mini_orm/internal/orm"
	"mini_orm/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app carries what every subcommand shares. The connection is opened on
// first use so that commands working only on stored scripts never dial.
type app struct {
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
	catalog *orm.Catalog
	store   *storage.Store
	conn    db.Conn
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "migrator",
		Short: "Generate, apply and roll back schema migrations for the registered models",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "path to a YAML config file")
	flags.String("dsn", "", "PostgreSQL connection string")
	flags.String("schema", "", "database schema to introspect")
	flags.Duration("timeout", 0, "timeout for each command's database work")
	flags.String("migrations-dir", "", "where generated scripts are stored")
	flags.String("history-table", "", "name of the migration history table")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "json or text")

	root.AddCommand(
		newInitCmd(a),
		newDiffCmd(a),
		newGenerateCmd(a),
		newApplyCmd(a),
		newRollbackCmd(a),
		newRollbackToCmd(a),
		newStatusCmd(a),
		newEnsureCreatedCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if a.catalog, err = models.Catalog(); err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	a.store = storage.New(cfg.Migrations.Dir)
	return nil
}

func (a *app) connect() (db.Conn, error) {
	if a.conn != nil {
		return a.conn, nil
	}
	pg, err := db.Open(a.cfg.Database)
	if err != nil {
		return nil, err
	}
	a.conn = db.WithLogging(pg, a.logger, a.cfg.Database.SlowQueryThreshold)
	return a.conn, nil
}

func (a *app) close() error {
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}

// bounded applies the configured statement timeout to a whole command.
func (a *app) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Database.StatementTimeout > 0 {
		return context.WithTimeout(ctx, a.cfg.Database.StatementTimeout)
	}
	return context.WithCancel(ctx)
}

func (a *app) runner() (*migrate.Runner, error) {
	conn, err := a.connect()
	if err != nil {
		return nil, err
	}
	return migrate.NewRunner(conn, a.logger, migrate.WithHistoryTable(a.cfg.Migrations.HistoryTable)), nil
}

func (a *app) generator() (*migrate.Generator, error) {
	conn, err := a.connect()
	if err != nil {
		return nil, err
	}
	return migrate.NewGenerator(migrate.NewIntrospector(conn, a.cfg.Database.Schema)), nil
}

func (a *app) session() (*orm.Session, error) {
	conn, err := a.connect()
	if err != nil {
		return nil, err
	}
	return orm.NewSession(conn, a.catalog,
		orm.WithLogger(a.logger),
		orm.WithTimeout(a.cfg.Database.StatementTimeout),
	), nil
}
