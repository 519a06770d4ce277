package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/iudanet/commentauth/internal/authctl"
	"github.com/iudanet/commentauth/internal/config"
	"github.com/iudanet/commentauth/internal/crypto"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	console := authctl.NewConsole()

	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if cfg.ShowVersion {
		printVersion()
		os.Exit(0)
	}

	// команда и ее аргументы идут после флагов
	rest := cfg.Args
	if len(rest) == 0 {
		authctl.PrintUsage(console)
		os.Exit(1)
	}

	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	hasher := crypto.NewHasher(cfg.Password.Iterations)

	switch rest[0] {
	case "hash":
		err = authctl.RunHash(console, hasher)
	case "verify-hash":
		if len(rest) < 2 {
			err = fmt.Errorf("usage: authctl verify-hash <hash>")
			break
		}
		err = authctl.RunVerifyHash(console, hasher, rest[1])
	case "totp":
		if len(rest) < 2 {
			err = fmt.Errorf("usage: authctl totp <secret>")
			break
		}
		err = authctl.RunTOTP(console, rest[1], time.Now())
	case "sweep":
		err = authctl.RunSweep(ctx, console, cfg, logger)
	case "revoke":
		if len(rest) < 2 {
			err = fmt.Errorf("usage: authctl revoke <email>")
			break
		}
		err = authctl.RunRevoke(ctx, console, cfg, logger, rest[1])
	case "help":
		authctl.PrintUsage(console)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", rest[0])
		authctl.PrintUsage(console)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("authctl\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
