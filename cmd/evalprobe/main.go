package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	internal "github.com/ZanzyTHEbar/evalprobe/evalprobe"
	"github.com/ZanzyTHEbar/evalprobe/evalprobe/config"
	"github.com/ZanzyTHEbar/evalprobe/evalprobe/inspect"
	"github.com/ZanzyTHEbar/evalprobe/evalprobe/ports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		stop()
		os.Exit(1)
	}
}

// overrides holds command-line values layered over the loaded config.
// Empty strings and a negative limit leave the config value in place.
type overrides struct {
	model   string
	dataDir string
	task    string
	limit   int
}

func applyOverrides(cfg *config.Config, o overrides) error {
	if o.model != "" {
		cfg.Model.Path = o.model
	}
	if o.dataDir != "" {
		cfg.Data.Dir = o.dataDir
	}
	if o.task != "" {
		cfg.Data.Task = o.task
	}
	if o.limit >= 0 {
		cfg.Inspect.Limit = o.limit
	}
	return cfg.Validate()
}

func run(ctx context.Context) error {
	configPath := ""
	o := overrides{limit: -1}
	flag.StringVar(&configPath, "config", configPath, "path to the config file")
	flag.StringVar(&o.model, "model", o.model, "tokenizer location: local directory or hub repo id")
	flag.StringVar(&o.dataDir, "data-dir", o.dataDir, "data directory or gs://bucket/prefix")
	flag.StringVar(&o.task, "task", o.task, "evaluation task to inspect")
	flag.IntVar(&o.limit, "limit", o.limit, "number of batches to print")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := applyOverrides(cfg, o); err != nil {
		return err
	}

	log := internal.GetLoggerWithLevel(cfg.Log.Level)
	log.Debug().Str("config", configPath).Msg("Configuration loaded")

	in := inspect.New(cfg, ports.NewConsole(os.Stdout), log)
	return in.Run(ctx)
}
