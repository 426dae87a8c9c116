package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pagegate/pagegate/pkg/audit"
	"github.com/pagegate/pagegate/pkg/config"
	"github.com/pagegate/pagegate/pkg/directory"
	"github.com/pagegate/pagegate/pkg/gateway"
	"github.com/pagegate/pagegate/pkg/logging"
	"github.com/pagegate/pagegate/pkg/mcp"
	"github.com/pagegate/pagegate/pkg/notion"
	"github.com/pagegate/pagegate/pkg/server"
	"github.com/pagegate/pagegate/pkg/session"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (YAML)")
	bind := fs.String("bind", "", "bind address, overrides config")
	usersPath := fs.String("users", "", "path to users file, overrides config")
	logLevel := fs.String("log-level", "", "minimum log level (debug|info|warn|error)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if *usersPath != "" {
		cfg.Users.Path = *usersPath
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Close()

	dir, err := directory.Open(cfg.Users.Path)
	if err != nil {
		return err
	}
	logger.Info(logging.CategoryDirectory, "loaded", "users file loaded", map[string]any{
		"path":  cfg.Users.Path,
		"users": dir.Len(),
	})

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			return err
		}
		defer auditStore.Close()
	}

	api := notion.NewClient(cfg.Notion.Token,
		notion.WithBaseURL(cfg.Notion.BaseURL),
		notion.WithVersion(cfg.Notion.Version),
		notion.WithTimeout(time.Duration(cfg.Notion.TimeoutSeconds)*time.Second),
		notion.WithDebugLogging(logger),
	)

	registry := session.NewRegistry()
	gw := gateway.New(api, gateway.WithLogger(logger), gateway.WithAudit(auditStore))
	handler := mcp.NewHandler(gw, logger, version)

	srv := server.New(server.Config{
		BindAddress:       cfg.Server.Bind,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		PublicMetrics:     cfg.Server.PublicMetrics,
		Version:           version,
		MessagesPerSecond: cfg.Limits.MessagesPerSecond,
		MessageBurst:      cfg.Limits.Burst,
	}, dir, registry, handler, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	if cfg.Users.Watch {
		g.Go(func() error {
			if err := dir.Watch(ctx, logger); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func buildLogger(cfg config.LogConfig) (*logging.Logger, error) {
	var logger *logging.Logger
	if cfg.Path != "" {
		l, err := logging.NewFileLogger(cfg.Path)
		if err != nil {
			return nil, err
		}
		logger = l
	} else {
		logger = logging.New(os.Stderr)
	}
	switch cfg.Level {
	case "debug":
		logger.SetMinLevel(logging.LevelDebug)
	case "warn":
		logger.SetMinLevel(logging.LevelWarn)
	case "error":
		logger.SetMinLevel(logging.LevelError)
	}
	return logger, nil
}
