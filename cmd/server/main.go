// Package main is the entry point for the social server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main"
// package. The main package should be kept minimal. Its job is to:
//  1. Read configuration (internal/config)
//  2. Create the logger
//  3. Hand over to internal/server, or run an operator command
//
// COMMANDS (spf13/cobra):
//
//	server                     same as "server serve"
//	server serve               run the HTTP API
//	server users verify <id>   mark a local account verified
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points. Each
// executable gets its own directory with its own main.go.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "server",
		Short: "Social demo API server",
		Long:  "A small social API: local and Google sign-in, posts, reactions and comments.",
		// No subcommand means serve, so `go run ./cmd/server` just works.
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newUsersCommand())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
