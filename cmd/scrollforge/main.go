// Package main は ScrollForge の端末クライアントです。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/yourusername/scroll-forge/internal/api"
	"github.com/yourusername/scroll-forge/internal/config"
	"github.com/yourusername/scroll-forge/internal/session"
	"github.com/yourusername/scroll-forge/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Failed to load config: %v", err))
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stderr)
	// 端末出力を妨げないよう、指定が無ければ警告以上のみ
	if os.Getenv("LOG_LEVEL") == "" {
		logger.SetLevel(logrus.WarnLevel)
	}
	a := &app{cfg: cfg, logger: logger}

	cmd := &cli.Command{
		Name:  "scrollforge",
		Usage: "Read converted PDF documents page by page",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Value:   cfg.APIBaseURL,
				Usage:   "Base URL of the conversion backend",
				Sources: cli.EnvVars("SCROLLFORGE_API_URL"),
			},
			&cli.StringFlag{
				Name:    "state",
				Value:   cfg.StatePath,
				Usage:   "Path of the file holding the access token and preferences",
				Sources: cli.EnvVars("SCROLLFORGE_STATE_PATH"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: cfg.APITimeout,
				Usage: "Timeout for metadata and page requests",
			},
			&cli.DurationFlag{
				Name:  "upload-timeout",
				Value: cfg.UploadTimeout,
				Usage: "Timeout for uploads",
			},
		},
		Commands: []*cli.Command{
			a.uploadCommand(),
			a.openCommand(),
			a.infoCommand(),
			a.readCommand(),
			a.themeCommand(),
			a.clearCommand(),
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString(api.Message(err, err.Error())))
		os.Exit(1)
	}
}

// app はサブコマンド間で共有する依存です。
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// deps はコマンド実行ごとに組み立てる依存です。
type deps struct {
	client   *api.Client
	store    *storage.Store
	resolver *session.Resolver
}

func (a *app) deps(cmd *cli.Command) *deps {
	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = api.DefaultTimeout
	}
	client := api.NewClient(cmd.String("api-url"),
		api.WithTimeout(timeout),
		api.WithUploadTimeout(cmd.Duration("upload-timeout")),
		api.WithLogger(a.logger),
	)
	store := storage.New(storage.NewFileKV(cmd.String("state"), a.logger), a.logger)
	return &deps{
		client:   client,
		store:    store,
		resolver: session.NewResolver(store, client, a.logger),
	}
}
