package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/library/internal/audit"
	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/config"
	"github.com/mrlokans/library/internal/database"
	auditRepo "github.com/mrlokans/library/internal/database/audit"
	"github.com/mrlokans/library/internal/database/users"
	"github.com/mrlokans/library/internal/logger"
	"github.com/mrlokans/library/internal/scheduler"
)

// MaintenanceCommand runs the scheduled cleanup once, in process.
type MaintenanceCommand struct {
	DatabasePath  string
	RetentionDays int
	Verbose       bool
}

func NewMaintenanceCommand() *MaintenanceCommand {
	return &MaintenanceCommand{}
}

func (cmd *MaintenanceCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the library database")
	fs.IntVar(&cmd.RetentionDays, "retention-days", 30, "Delete audit events older than this many days")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s maintenance [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Delete old audit events and expired password reset tokens.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.RetentionDays <= 0 {
		return fmt.Errorf("-retention-days must be positive")
	}
	return nil
}

func (cmd *MaintenanceCommand) Run() error {
	log := logger.Discard()
	if cmd.Verbose {
		log = logger.New(logger.Config{Writer: os.Stderr, Level: logger.ParseLevel("debug")})
	}

	db, err := database.NewDatabase(cmd.DatabasePath, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	auditSvc := audit.NewService(auditRepo.NewRepository(db.DB), log)
	authSvc := auth.NewService(users.NewRepository(db.DB), config.Auth{}, nil, nil, log)

	job := scheduler.InlineJob(auditSvc, authSvc, cmd.RetentionDays, log)
	if err := job(context.Background()); err != nil {
		return fmt.Errorf("maintenance failed: %w", err)
	}
	fmt.Println("Maintenance complete")
	return nil
}
