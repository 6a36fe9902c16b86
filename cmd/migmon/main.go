package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/izerui/mysql-migration-monitor/internal/aggregate"
	"github.com/izerui/mysql-migration-monitor/internal/config"
	"github.com/izerui/mysql-migration-monitor/internal/monitor"
	"github.com/izerui/mysql-migration-monitor/internal/resolver"
	"github.com/izerui/mysql-migration-monitor/internal/snapshot"
	"github.com/izerui/mysql-migration-monitor/internal/source/mysql"
	"github.com/izerui/mysql-migration-monitor/internal/ui"
	"github.com/izerui/mysql-migration-monitor/pkg/types"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "migmon error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 2 {
		printUsage()
		return nil
	}

	switch args[1] {
	case "watch":
		return runWatch(args[2:])
	case "check":
		return runCheck(args[2:])
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", args[1])
	}
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config.yaml")
	databases := fs.String("databases", "", "Comma-separated schema override")
	logFile := fs.String("log-file", "", "Write logs to this file (the dashboard owns the terminal)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *databases)
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
		log.SetLevel(logrus.DebugLevel)
	}

	target, source := buildCollectors(cfg, log)
	defer target.Close()
	defer source.Close()

	store := snapshot.NewStore(time.Now())
	agg := aggregate.New(resolveFunc(cfg), log)
	sched := monitor.New(monitor.Config{
		Period:         cfg.Monitor.RefreshPeriod(),
		SourceInterval: cfg.Monitor.SourceInterval,
		Grace:          shutdownGrace,
		Bootstrap:      true,
	}, target, source, agg, store, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	schedDone := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(schedDone)
	}()

	dash := ui.NewDashboard(store, sched, cfg.Monitor.MaxTablesDisplay)
	go func() {
		<-ctx.Done()
		dash.Stop()
	}()

	runErr := dash.Run()
	cancel()
	<-schedDone
	return runErr
}

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config.yaml")
	databases := fs.String("databases", "", "Comma-separated schema override")
	exact := fs.Bool("exact", false, "Use exact counts instead of statistics estimates")
	verbose := fs.Bool("verbose", false, "Debug logging to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *databases)
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	target, source := buildCollectors(cfg, log)
	defer target.Close()
	defer source.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := target.Ping(ctx); err != nil {
		return err
	}

	targetSamples := target.Collect(ctx)
	sourceSamples := source.Collect(ctx)
	if *exact {
		// The first pass ran on statistics; a second pass counts for real.
		targetSamples = target.Collect(ctx)
		sourceSamples = source.Collect(ctx)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	agg := aggregate.New(resolveFunc(cfg), log)
	snap := agg.Fold(aggregate.NewSnapshot(time.Now()), targetSamples, sourceSamples)
	if err := ui.WriteReport(os.Stdout, snap); err != nil {
		return err
	}

	bad := 0
	for _, r := range snap.Records {
		if r.Status != aggregate.StatusConsistent {
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d tables not consistent", bad, len(snap.Records))
	}
	return nil
}

func resolveFunc(cfg *config.Config) resolver.Func {
	if cfg.Monitor.DisableNameMapping {
		return resolver.Identity
	}
	return resolver.Resolve
}

func loadConfig(path, databaseOverride string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("missing required flag: --config")
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if databaseOverride != "" {
		var dbs []string
		for _, db := range strings.Split(databaseOverride, ",") {
			if db = strings.TrimSpace(db); db != "" {
				dbs = append(dbs, db)
			}
		}
		if len(dbs) == 0 {
			return nil, fmt.Errorf("--databases override contains no schema names")
		}
		cfg.Monitor.Databases = dbs
	}
	return cfg, nil
}

func buildCollectors(cfg *config.Config, log *logrus.Logger) (target, source *mysql.Collector) {
	target = mysql.NewCollector(types.EndpointTarget, mysql.NewQueries(cfg.Target),
		cfg.Monitor.Databases, cfg.Monitor.IgnoredTablePrefixes, cfg.Monitor.QueryDeadline(), log)
	source = mysql.NewCollector(types.EndpointSource, mysql.NewQueries(cfg.Source),
		cfg.Monitor.Databases, cfg.Monitor.IgnoredTablePrefixes, cfg.Monitor.QueryDeadline(), log)
	return target, source
}

func printUsage() {
	fmt.Print(`migmon - MySQL migration consistency monitor

Usage:
  migmon watch --config <path> [--databases a,b] [--log-file <path>]
  migmon check --config <path> [--databases a,b] [--exact] [--verbose]

Commands:
  watch     Live dashboard comparing source and target row counts
  check     One-shot consistency report, exit 1 on drift or errors
  help      Show this help message
`)
}
