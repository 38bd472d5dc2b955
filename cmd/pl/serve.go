package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zulandar/planyard/internal/auth"
	"github.com/zulandar/planyard/internal/config"
	"github.com/zulandar/planyard/internal/dashboard"
	"github.com/zulandar/planyard/internal/logging"
	"github.com/zulandar/planyard/internal/notify"
	"github.com/zulandar/planyard/internal/notify/discord"
	"github.com/zulandar/planyard/internal/notify/slack"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Planyard API server",
		Long: `Serves the JSON API. When Slack or Discord is configured, version
notifications are posted there and the daily digest runs on its cron
schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	dispatcher, err := buildDispatcher(cfg.Notify, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if dispatcher.Len() > 0 {
		go func() {
			if err := notify.RunDigest(ctx, gormDB, dispatcher, cfg.Notify.DigestCron, logger); err != nil {
				logger.Error("digest scheduler stopped", zap.Error(err))
			}
		}()
		logger.Info("notifications enabled",
			zap.Int("targets", dispatcher.Len()),
			zap.String("digest_cron", cfg.Notify.DigestCron))
	}

	return dashboard.Start(ctx, dashboard.StartOpts{
		DB:          gormDB,
		Port:        port,
		Out:         cmd.OutOrStdout(),
		Logger:      logger,
		Issuer:      issuer,
		Dispatcher:  dispatcher,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
}

// buildDispatcher creates one notification target per configured chat
// platform.
func buildDispatcher(cfg config.NotifyConfig, logger *zap.Logger) (*notify.Dispatcher, error) {
	var targets []notify.Target
	if cfg.Slack.BotToken != "" {
		a, err := slack.New(slack.AdapterOpts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.Channel})
		if err != nil {
			return nil, err
		}
		targets = append(targets, notify.Target{Platform: "slack", Adapter: a})
	}
	if cfg.Discord.BotToken != "" {
		a, err := discord.New(discord.AdapterOpts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		targets = append(targets, notify.Target{Platform: "discord", Adapter: a})
	}
	return notify.NewDispatcher(logger, targets...), nil
}

func newDigestCmd() *cobra.Command {
	var (
		configPath string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Send the daily digest now",
		Long:  "Builds the digest of due tasks, unread comments and recent versions and posts it to the configured chat platforms.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd, configPath, dryRun, time.Now().UTC())
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the digest instead of sending it")
	return cmd
}

func runDigest(cmd *cobra.Command, configPath string, dryRun bool, now time.Time) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if dryRun {
		d, err := notify.BuildDigest(gormDB, now)
		if err != nil {
			return err
		}
		if d == nil {
			fmt.Fprintln(out, "Nothing to report.")
			return nil
		}
		msg := notify.FormatDigest(d)
		fmt.Fprintln(out, msg.Text)
		for _, evt := range msg.Events {
			fmt.Fprintf(out, "\n%s\n%s\n", evt.Title, evt.Body)
		}
		return nil
	}

	if !cfg.Notify.Enabled() {
		return fmt.Errorf("digest: no notification platform configured")
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()
	dispatcher, err := buildDispatcher(cfg.Notify, logger)
	if err != nil {
		return err
	}
	sent, err := notify.SendDigest(cmd.Context(), gormDB, dispatcher, now)
	if err != nil {
		return err
	}
	if sent {
		fmt.Fprintln(out, "Digest sent.")
	} else {
		fmt.Fprintln(out, "Nothing to report.")
	}
	return nil
}
