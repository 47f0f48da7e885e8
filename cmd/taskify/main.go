package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kausik11/taskify/internal/commands"
	"github.com/kausik11/taskify/internal/config"
	"github.com/kausik11/taskify/internal/session"
	"github.com/kausik11/taskify/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "taskify failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{string(commands.TypeDashboard)}
	}
	cmd, err := commands.ParseArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)

	repo, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	a := newApp(cfg, repo, logger, os.Stdout)
	ctx = session.WithActor(ctx, cfg.Actor())
	if cfg.PermissionsFile != "" && cmd.Type != commands.TypePermissions {
		if _, err := a.applyPermissions(ctx, cfg.PermissionsFile); err != nil {
			return err
		}
	}

	res, err := commands.Execute(ctx, cmd, a.handlers())
	if err != nil {
		return err
	}
	if res.Message != "" {
		fmt.Fprintln(os.Stdout, res.Message)
	}
	return nil
}
