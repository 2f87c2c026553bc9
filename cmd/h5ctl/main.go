// Command h5ctl inspects and edits h5store containers from the shell.
//
//	h5ctl ls -r scan.h5
//	h5ctl cp -level 4 scan.h5 /raw archive.h5 /2024/raw
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "h5ctl: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	configPath := flag.String("config", "", "Config file (default h5ctl.yaml in the user config directory)")
	verbose := flag.Bool("v", false, "Log debug records")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: h5ctl [-config file] [-v] command [args]\n\ncommands:\n%s\nflags:\n", usage())
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	ll := &slog.LevelVar{}
	level, _ := cfg.logLevel()
	ll.Set(level)
	if *verbose {
		ll.Set(slog.LevelDebug)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	a := &app{cfg: cfg, log: logger, out: os.Stdout}
	if err := a.run(ctx, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
		}
		return err
	}
	return nil
}
