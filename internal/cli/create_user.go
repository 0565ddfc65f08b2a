package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/config"
	"github.com/mrlokans/library/internal/database"
	"github.com/mrlokans/library/internal/database/users"
)

// CreateUserCommand registers an account directly in the database.
type CreateUserCommand struct {
	DatabasePath string
	Email        string
	Name         string
	Password     string
	WithToken    bool

	auth config.Auth
}

func NewCreateUserCommand() *CreateUserCommand {
	return &CreateUserCommand{auth: config.NewConfig().Auth}
}

func (cmd *CreateUserCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the library database")
	fs.StringVar(&cmd.Email, "email", "", "Email address of the new account (required)")
	fs.StringVar(&cmd.Name, "name", "", "Display name (required)")
	fs.StringVar(&cmd.Password, "password", "", "Password (required)")
	fs.BoolVar(&cmd.WithToken, "token", false, "Also print an API token for the new account")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-user -email <email> -name <name> -password <password> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create an account without going through the HTTP API.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case cmd.Email == "":
		return fmt.Errorf("required flag -email not provided")
	case cmd.Name == "":
		return fmt.Errorf("required flag -name not provided")
	case cmd.Password == "":
		return fmt.Errorf("required flag -password not provided")
	}
	return nil
}

func (cmd *CreateUserCommand) Run() error {
	db, err := database.NewDatabase(cmd.DatabasePath, nil)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	service := auth.NewService(users.NewRepository(db.DB), cmd.auth, nil, nil, nil)

	user, err := service.Register(ctx, cmd.Name, cmd.Email, cmd.Password)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	fmt.Printf("Created user %d (%s)\n", user.ID, user.Email)

	if cmd.WithToken {
		token, err := service.GenerateToken(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}
		fmt.Printf("API token: %s\n", token)
	}
	return nil
}
