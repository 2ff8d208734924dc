package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nyx-chat/nyx/internal/app"
	"github.com/nyx-chat/nyx/internal/auth"
	"github.com/nyx-chat/nyx/internal/backend"
	"github.com/nyx-chat/nyx/internal/bus"
	"github.com/nyx-chat/nyx/internal/config"
	"github.com/nyx-chat/nyx/internal/lock"
	"github.com/nyx-chat/nyx/internal/supabase"
	"github.com/nyx-chat/nyx/internal/workspace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// requestTimeout bounds a command's network work. Prompts are not counted.
const requestTimeout = 30 * time.Second

// cli carries what every command needs.
type cli struct {
	cfg     *config.Config
	auth    *auth.Service
	client  *supabase.Client
	bus     *bus.Bus
	logger  *zap.Logger
	jsonOut bool
}

func main() {
	accountFlag := flag.String("account", "", "account name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	debugFlag := flag.Bool("debug", false, "write debug entries to the log file")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

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

	c := &cli{cfg: cfg, jsonOut: *jsonFlag}
	fxApp := fx.New(
		app.Module(app.Params{Account: account, Program: "nyxctl", Config: cfg, Console: true, Debug: *debugFlag}),
		app.WithLogger(),
		fx.Populate(&c.auth, &c.client, &c.bus, &c.logger),
	)
	if err := fxApp.Err(); err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	if err := fxApp.Start(startCtx); err != nil {
		cancel()
		fatal(err)
	}
	cancel()

	runErr := c.run(ctx, args[0], args[1:])

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: shutdown: %v\n", err)
	}
	if runErr != nil {
		if ctx.Err() != nil && errors.Is(runErr, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(130)
		}
		if errors.Is(runErr, backend.ErrNotAuthenticated) {
			fmt.Fprintln(os.Stderr, "not signed in, run `nyxctl login` first")
			os.Exit(1)
		}
		fatal(runErr)
	}
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return c.cmdLogin(ctx, args)
	case "register":
		return c.cmdRegister(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	switch cmd {
	case "logout":
		return c.cmdLogout(ctx)
	case "whoami":
		return c.cmdWhoami(ctx)
	case "history":
		return c.cmdHistory(ctx, args)
	case "send":
		return c.cmdSend(ctx, args)
	case "users":
		return c.cmdUsers(ctx, false)
	case "online":
		return c.cmdUsers(ctx, true)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: nyxctl [--account <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  login [email]              Sign in")
	fmt.Fprintln(os.Stderr, "  register                   Create an account")
	fmt.Fprintln(os.Stderr, "  logout                     Sign out")
	fmt.Fprintln(os.Stderr, "  whoami                     Show the signed-in user")
	fmt.Fprintln(os.Stderr, "  history [--peer N]         Show recent messages")
	fmt.Fprintln(os.Stderr, "  send [--peer N] <text>     Send a message")
	fmt.Fprintln(os.Stderr, "  users                      List every user")
	fmt.Fprintln(os.Stderr, "  online                     List online users")
}

func fatal(err error) {
	var held *lock.HeldError
	if errors.As(err, &held) {
		fmt.Fprintf(os.Stderr, "error: %v\n", held)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
