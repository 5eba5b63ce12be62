package cli

import (
	"context"
	"fmt"

	"hightechcross/internal/app"
	"hightechcross/internal/config"
	"hightechcross/internal/infra/postgres"
	"github.com/spf13/cobra"
)

// NewCreateUserCmd registers an account directly in the database.
func NewCreateUserCmd(configPath *string) *cobra.Command {
	var (
		username string
		password string
		email    string
		admin    bool
	)
	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create a team or admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := app.UserInput{Username: &username, Password: &password, IsStaff: &admin}
			if email != "" {
				in.Email = &email
			}
			return createUser(cmd.Context(), *configPath, in)
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account name")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant staff access")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func createUser(ctx context.Context, configPath string, in app.UserInput) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	logger := newLogger(cfg, nil)

	db := postgres.Open(cfg.Postgres.URL)
	defer db.Close()
	if err := migrateDB(ctx, db, logger); err != nil {
		return err
	}

	users := app.NewUserService(postgres.NewStore(db), app.WithLogger(logger))
	u, created, err := users.EnsureUser(ctx, in)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("user %q already exists", u.Username)
	}
	fmt.Printf("created user %s (id %d)\n", u.Username, u.ID)
	return nil
}
