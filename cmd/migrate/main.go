package main

import (
	"context"
	"log"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/kevin07696/payment-transactions/internal/adapters/database"
	"github.com/kevin07696/payment-transactions/internal/adapters/secrets"
	"github.com/kevin07696/payment-transactions/internal/config"
	"github.com/kevin07696/payment-transactions/pkg/logging"
)

const migrationsDir = "internal/db/migrations"

var (
	app        = kingpin.New("migrate", "Manage the payment transaction database schema.")
	configPath = app.Flag("config", "Path to the application config file").Short('c').Default("").String()

	_            = app.Command("up", "Migrate the DB to the most recent version available")
	_            = app.Command("up-by-one", "Migrate the DB up by 1")
	upToCmd      = app.Command("up-to", "Migrate the DB to a specific VERSION")
	upToVersion  = upToCmd.Arg("version", "Target version").Required().String()
	_            = app.Command("down", "Roll back the version by 1")
	downToCmd    = app.Command("down-to", "Roll back to a specific VERSION")
	downToTarget = downToCmd.Arg("version", "Target version").Required().String()
	_            = app.Command("redo", "Re-run the latest migration")
	_            = app.Command("reset", "Roll back all migrations")
	_            = app.Command("status", "Dump the migration status for the current DB")
	_            = app.Command("version", "Print the current version of the database")
	createCmd    = app.Command("create", "Create a new SQL migration file with the current timestamp")
	createName   = createCmd.Arg("name", "Migration name").Required().String()
	createDir    = createCmd.Flag("dir", "Directory with migration files").Default(migrationsDir).String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// create only writes a file, no database needed
	if command == createCmd.FullCommand() {
		if err := goose.Create(nil, *createDir, *createName, "sql"); err != nil {
			log.Fatalf("goose create: %v", err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	logger, err := logging.New(cfg.Logger.Level, cfg.Logger.Encoding, cfg.Logger.Development)
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := context.Background()
	manager, err := secrets.NewManager(ctx, cfg.Secrets, logger)
	if err != nil {
		logger.Fatal("Failed to initialize secret manager", zap.Error(err))
	}
	password, err := secrets.ResolveDatabasePassword(ctx, manager, cfg.Secrets, cfg.Database.Password)
	if err != nil {
		logger.Fatal("Failed to resolve database password", zap.Error(err))
	}
	dbCfg := database.ConfigFromSettings(cfg.Database)
	dbCfg.Password = password

	db, err := database.NewPostgreSQLAdapter(ctx, dbCfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	var args []string
	switch command {
	case upToCmd.FullCommand():
		args = []string{*upToVersion}
	case downToCmd.FullCommand():
		args = []string{*downToTarget}
	}

	if err := db.Migrate(ctx, command, args...); err != nil {
		logger.Fatal("Migration failed", zap.String("command", command), zap.Error(err))
	}
	logger.Info("Migration finished", zap.String("command", command))
}
