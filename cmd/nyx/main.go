package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nyx-chat/nyx/internal/app"
	"github.com/nyx-chat/nyx/internal/bus"
	"github.com/nyx-chat/nyx/internal/config"
	"github.com/nyx-chat/nyx/internal/lock"
	"github.com/nyx-chat/nyx/internal/tui"
	"github.com/nyx-chat/nyx/internal/workspace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	accountFlag := flag.String("account", "", "account name (overrides config default)")
	debugFlag := flag.Bool("debug", false, "write debug entries to the log file")
	flag.Parse()

	if err := config.LoadDotEnv(workspace.DotEnvPath(), ".env"); err != nil {
		fatal(err)
	}
	cfg, err := config.Resolve(workspace.ConfigPath())
	if err != nil {
		fatal(err)
	}
	account := workspace.Resolve(*accountFlag, cfg.DefaultAccount)
	if err := workspace.ValidateName(account); err != nil {
		fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	var (
		session *app.Session
		eb      *bus.Bus
		logger  *zap.Logger
	)
	fxApp := fx.New(
		app.Module(app.Params{Account: account, Program: "nyx", Config: cfg, Debug: *debugFlag}),
		app.WithLogger(),
		fx.Populate(&session, &eb, &logger),
	)
	if err := fxApp.Err(); err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		fatal(err)
	}

	ui := tui.NewApp(session, eb, logger, tui.Options{
		Account:        account,
		NoticeDuration: cfg.NoticeDuration.Duration,
	})
	runErr := ui.RunContext(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: shutdown: %v\n", err)
	}
	if runErr != nil {
		fatal(runErr)
	}
}

func fatal(err error) {
	var held *lock.HeldError
	if errors.As(err, &held) {
		fmt.Fprintf(os.Stderr, "error: %v\npick another account with --account\n", held)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
