package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sakif/social-demo/internal/auth"
	"github.com/sakif/social-demo/internal/config"
	"github.com/sakif/social-demo/internal/server"
	"github.com/sakif/social-demo/internal/service"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func newUsersCommand() *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Account administration",
	}

	usersCmd.AddCommand(&cobra.Command{
		Use:   "verify <id>",
		Short: "Mark a local account verified",
		Long: "Local accounts start unverified and cannot post, react or comment.\n" +
			"Nothing in the HTTP API verifies them; this command does.\n" +
			"The user must log in again for the change to reach their session.",
		Args: cobra.ExactArgs(1),
		RunE: runVerify,
	})

	return usersCmd
}

// setup loads the config and builds the logger every command shares.
//
// LOGGING:
// slog.NewTextHandler writes human-readable key=value lines to stdout.
// LOG_LEVEL picks the minimum level (debug, info, warn, error).
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	if cfg.SecretGenerated {
		logger.Warn("SESSION_SECRET not set; using a random secret, sessions will not survive a restart")
	}
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set; sessions are kept in memory")
	}

	srv, err := server.New(cfg, logger, server.Deps{})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	return srv.Start()
}

func runVerify(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid user id %q", args[0])
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	store, err := server.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// The password service is never asked to hash here; the default cost is fine.
	authService := service.NewAuthService(store.Users(), auth.NewPasswordService(), logger)

	user, err := authService.VerifyUser(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "user %d (%s) is verified\n", user.ID, user.Username)
	return nil
}
