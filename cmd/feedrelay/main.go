package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/feedrelay/feedrelay/pkg/config"
	"github.com/feedrelay/feedrelay/pkg/feed"
	"github.com/feedrelay/feedrelay/pkg/notify"
	"github.com/feedrelay/feedrelay/pkg/scheduler"
	"github.com/feedrelay/feedrelay/pkg/state"
	"github.com/feedrelay/feedrelay/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"feedrelay.yml" description:"config file path"`
	Once   bool   `long:"once" description:"run once and exit regardless of configured interval"`
	DryRun bool   `long:"dry-run" description:"process feeds but do not send or mark anything"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor {
		color.NoColor = true
	}
	setupLog(opts.Debug)
	log.Printf("[INFO] starting feedrelay version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, opts); err != nil && ctx.Err() == nil {
		log.Printf("[ERROR] feedrelay failed: %v", err)
		cancel()
		os.Exit(1)
	}
	cancel()
	log.Print("[INFO] shutdown complete")
}

func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// channel ids are env-indirected; resolve them once, here
	channels := cfg.ResolveChannels(os.Getenv)
	dryRun := opts.DryRun
	if !channels.Enabled() && !dryRun {
		log.Print("[WARN] telegram not configured, falling back to dry-run mode")
		dryRun = true
	}

	st, err := state.New(state.Config{DSN: cfg.State.DSN})
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("[WARN] failed to close state store: %v", err)
		}
	}()

	feedParser := feed.NewParser(cfg.Schedule.GetFetchTimeout(), "feedrelay/"+revision)
	notifier := notify.NewTelegram(notify.Params{
		Token:       channels.Token,
		Timeout:     cfg.Telegram.GetTimeout(),
		MinInterval: cfg.Schedule.GetSendPause(),
	})

	interval := cfg.Schedule.GetUpdateInterval()
	if opts.Once {
		interval = 0
	}

	sched := scheduler.New(feedParser, st, notifier, scheduler.Config{
		Topics:       cfg.DomainTopics(),
		Channels:     channels.ByTopic,
		AdminChannel: channels.AdminChannel,
		DryRun:       dryRun,
		Interval:     interval,
		FetchTimeout: cfg.Schedule.GetFetchTimeout(),
		MaxAge:       cfg.Schedule.GetMaxAge(),
		MaxItems:     cfg.Schedule.MaxItems,
		Concurrency:  cfg.Schedule.Concurrency,
		Retention:    cfg.Schedule.GetRetention(),
	})

	// status server is optional, scheduling never depends on it
	if cfg.Server.Listen != "" {
		srv := server.New(sched, server.Config{
			Listen:  cfg.Server.Listen,
			Timeout: cfg.Server.GetTimeout(),
			Version: revision,
			Debug:   opts.Debug,
		})
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("[WARN] status server failed: %v", err)
			}
		}()
	}

	return sched.Run(ctx)
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(os.Stdout), lgr.Err(io.Discard)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
