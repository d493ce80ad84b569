package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/voralabs/vora/internal/config"
	"github.com/voralabs/vora/internal/domain/repositories"
	"github.com/voralabs/vora/internal/infrastructure/database/postgres"
	"github.com/voralabs/vora/migrations"
)

func newSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session management commands",
		Long:  "Commands for inspecting and revoking user sessions",
	}

	cmd.AddCommand(newSessionsListCommand())
	cmd.AddCommand(newSessionsRevokeCommand())

	return cmd
}

func newSessionsListCommand() *cobra.Command {
	var (
		email      string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's active sessions",
		Example: `  # List sessions for a user
  vora-server sessions list --email user@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listSessions(configPath, email)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "User email (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (optional)")

	cmd.MarkFlagRequired("email")

	return cmd
}

func newSessionsRevokeCommand() *cobra.Command {
	var (
		email      string
		sessionID  string
		all        bool
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a user's sessions",
		Example: `  # Revoke one session
  vora-server sessions revoke --email user@example.com --session-id abc123

  # Revoke everything (locks the user out until next login)
  vora-server sessions revoke --email user@example.com --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && sessionID == "" {
				return fmt.Errorf("either --session-id or --all is required")
			}
			return revokeSessions(configPath, email, sessionID, all)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "User email (required)")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Session ID to revoke")
	cmd.Flags().BoolVar(&all, "all", false, "Revoke all sessions")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (optional)")

	cmd.MarkFlagRequired("email")

	return cmd
}

func openUserRepo(configPath string) (repositories.UserRepository, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	pgConn, err := postgres.NewConnection(cfg.Database.Postgres.ConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := pgConn.RunMigrations(migrations.FS); err != nil {
		pgConn.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres.NewUserRepository(pgConn.DB), func() { pgConn.Close() }, nil
}

func listSessions(configPath, email string) error {
	userRepo, closeFn, err := openUserRepo(configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	user, err := userRepo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	fmt.Printf("Sessions for %s (%s):\n", user.Email, user.ID)
	if len(user.ActiveSessions) == 0 {
		fmt.Println("  (none)")
		return nil
	}
	for _, s := range user.ActiveSessions {
		fmt.Printf("  %s  created=%s  expires=%s  ua=%q  ip=%s\n",
			s.SessionID,
			s.CreatedAt.Format("2006-01-02 15:04:05"),
			s.ExpiresAt.Format("2006-01-02 15:04:05"),
			s.UserAgent,
			s.IP)
	}

	return nil
}

func revokeSessions(configPath, email, sessionID string, all bool) error {
	userRepo, closeFn, err := openUserRepo(configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	user, err := userRepo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	before := len(user.ActiveSessions)
	if all {
		user.ActiveSessions = nil
	} else {
		if !user.HasSession(sessionID) {
			return fmt.Errorf("user has no session %s", sessionID)
		}
		user.RemoveSession(sessionID)
	}

	if err := userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	slog.Info("Sessions revoked",
		"user_id", user.ID,
		"email", user.Email,
		"revoked", before-len(user.ActiveSessions),
	)

	return nil
}
