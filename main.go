package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/fueltrace/tankmonitor/agbot"
	"github.com/fueltrace/tankmonitor/config"
	"github.com/fueltrace/tankmonitor/monitor"
	"github.com/fueltrace/tankmonitor/repository"
	"github.com/fueltrace/tankmonitor/supabase"
)

func main() {

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "tankmonitor.yaml", "path to the yaml configuration file")
	flag.Parse()

	slog.Info("Starting tank monitor...", "config", *configPath)

	cfg, err := config.Read(*configPath)
	if err != nil {
		slog.Error("Failed to read config", "error", err)
		return
	}

	// Secrets are never put in the config file
	supabaseKey := os.Getenv("SUPABASE_KEY")
	if supabaseKey == "" {
		slog.Error("SUPABASE_KEY environment variable is not set")
		return
	}
	supabaseUserKey := os.Getenv("SUPABASE_USER_KEY") // optional JWT for row-level security

	store, err := supabase.New(cfg.Supabase.Url, supabaseKey, supabaseUserKey, cfg.Supabase.Schema)
	if err != nil {
		slog.Error("Failed to create supabase client", "error", err)
		return
	}

	cache, err := repository.New(cfg.Cache.Path)
	if err != nil {
		slog.Error("Failed to create cache repository", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	var vendor *agbot.Client
	if cfg.Agbot.Url != "" {
		agbotPassword := os.Getenv("AGBOT_PASSWORD")
		if agbotPassword == "" {
			slog.Error("AGBOT_PASSWORD environment variable is not set")
			return
		}
		vendor = agbot.New(
			http.Client{Timeout: time.Second * 10},
			cfg.Agbot.Url,
			cfg.Agbot.Email,
			agbotPassword,
			time.Duration(cfg.Agbot.TokenMaxAgeMins)*time.Minute,
		)
		go vendor.Run(ctx, time.Duration(cfg.Agbot.PollIntervalSecs)*time.Second)
	}

	var fleetMonitor *monitor.Monitor
	if vendor != nil {
		fleetMonitor = monitor.New(store, cache, vendor, cfg)
	} else {
		// a nil *agbot.Client must not be wrapped in the interface, or the monitor's
		// nil check can't see it
		fleetMonitor = monitor.New(store, cache, nil, cfg)
	}
	go fleetMonitor.Run(ctx)

	// log each fleet health roll-up as it is published
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case health := <-fleetMonitor.Health:
				slog.Info(
					"Fleet health",
					"total", health.TotalDevices,
					"online", health.OnlineDevices,
					"with_data", health.DevicesWithData,
					"below_low", health.BelowLowLevel,
					"below_critical", health.BelowCriticalLevel,
				)
			}
		}
	}()

	// wait for a ctrl-c interrupt before exiting
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	<-signalChan

	// cancel any open go-routines and give them up to 100ms to gracefully shutdown
	cancel()
	time.Sleep(time.Millisecond * 100)

	slog.Info("Exiting")
	os.Exit(0)
}
