package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"watchdag/internal/app"
	"watchdag/internal/config"
)

func main() {
	var opts app.Options
	var dryRun bool
	flag.StringVar(&opts.ConfigPath, "config", config.DefaultPath, "path to config yaml")
	flag.BoolVar(&opts.Once, "once", false, "run the graph once and exit; no file watching")
	flag.StringVar(&opts.Task, "task", "", "seed only this task at startup instead of all roots")
	flag.StringVar(&opts.LogLevel, "log-level", "", "override logging.level (trace|debug|info|warn|error)")
	flag.StringVar(&opts.LogFile, "log-file", "", "also write structured logs to this file")
	flag.BoolVar(&dryRun, "dry-run", false, "print the resolved task graph and exit")
	flag.Parse()

	a, err := app.New(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if dryRun {
		a.PrintPlan(os.Stdout)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
