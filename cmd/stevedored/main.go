package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eskildsen/stevedore/internal/config"
	"github.com/eskildsen/stevedore/internal/daemon"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	roleFlag := flag.String("role", "", "Role to run: app, worker, scheduler, or all (overrides STEVEDORE_ROLE)")
	flag.Parse()

	config.LoadEnvFiles()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := daemon.OptionsFromEnv()
	opts.Debug = *debugFlag
	if *roleFlag != "" {
		opts.Role = *roleFlag
	}

	if err := daemon.Run(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
