// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/rendezvous/lib/config"
	"github.com/bureau-foundation/rendezvous/lib/process"
	"github.com/bureau-foundation/rendezvous/lib/version"
	"github.com/bureau-foundation/rendezvous/signaling"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

// options holds the command line. Values only override the
// configuration when their flag was given.
type options struct {
	configPath  string
	listen      string
	publicURL   string
	shardID     uint8
	logLevel    string
	showVersion bool

	flags *pflag.FlagSet
}

func parseOptions(args []string) (*options, error) {
	opts := &options{}
	flagSet := pflag.NewFlagSet("rendezvous-signaling", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to the YAML configuration file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&opts.listen, "listen", "", "TCP address to accept websocket connections on")
	flagSet.StringVar(&opts.publicURL, "public-url", "", "externally reachable ws:// or wss:// URL of this server")
	flagSet.Uint8Var(&opts.shardID, "shard-id", 0, "shard id stamped into issued host ids")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", extra[0])
	}
	opts.flags = flagSet
	return opts, nil
}

// loadConfig reads the configuration file and applies flag overrides.
func (o *options) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if o.flags.Changed("listen") {
		cfg.Listen = o.listen
	}
	if o.flags.Changed("public-url") {
		cfg.PublicURL = o.publicURL
	}
	if o.flags.Changed("shard-id") {
		cfg.ShardID = o.shardID
	}
	if o.flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger writes text to a terminal and JSON otherwise.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	handlerOptions := &slog.HandlerOptions{Level: level}
	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return slog.New(slog.NewTextHandler(w, handlerOptions))
	}
	return slog.New(slog.NewJSONHandler(w, handlerOptions))
}

func run(args []string) error {
	opts, err := parseOptions(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Printf("rendezvous-signaling %s\n", version.Info())
		return nil
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Level())
	slog.SetDefault(logger)

	tlsConfig, err := signaling.TLSConfigFromEnv()
	if err != nil {
		return err
	}

	server, err := signaling.NewServer(signaling.ServerConfig{
		PublicURL:        cfg.PublicURL,
		ShardID:          cfg.ShardID,
		MaxLobbyAttempts: cfg.MaxLobbyAttempts,
		MailboxSize:      cfg.MailboxSize,
		Socket: signaling.SocketOptions{
			PingInterval: cfg.PingInterval,
			WriteTimeout: cfg.WriteTimeout,
		},
		MetricsPath: cfg.MetricsPath,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Listen, err)
	}
	if tlsConfig != nil {
		listener = tls.NewListener(listener, tlsConfig)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("rendezvous signaling starting",
		"version", version.Info(),
		"environment", string(cfg.Environment),
		"tls", tlsConfig != nil,
	)
	if err := server.Serve(ctx, listener); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	logger.Info("shut down")
	return nil
}
