// Command server runs the apiaccounts admin service.
//
// Configuration is read from a YAML file (--config, APIACCOUNTS_CONFIG,
// ./config.yaml, /etc/apiaccounts/config.yaml) with APIACCOUNTS_* environment
// overrides. See pkg/config for the full list.
//
// Signals:
//
//	SIGHUP          - reload accounts
//	SIGINT, SIGTERM - graceful shutdown
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/rhuss/apiaccounts/pkg/account"
	"github.com/rhuss/apiaccounts/pkg/auth"
	"github.com/rhuss/apiaccounts/pkg/auth/basic"
	"github.com/rhuss/apiaccounts/pkg/auth/session"
	"github.com/rhuss/apiaccounts/pkg/config"
	"github.com/rhuss/apiaccounts/pkg/debug"
	"github.com/rhuss/apiaccounts/pkg/reload"
	transporthttp "github.com/rhuss/apiaccounts/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		var verrs account.ValidationErrors
		if errors.As(err, &verrs) {
			for _, msg := range verrs.Messages() {
				fmt.Fprintln(os.Stderr, "  -", msg)
			}
		}
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var check bool

	flagSet := pflag.NewFlagSet("apiaccounts", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	flagSet.BoolVar(&check, "check", false, "validate configuration and accounts, then exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	debug.Init(debug.Options{
		Categories: cfg.Log.Debug,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
	})
	if cfg.Path != "" {
		slog.Info("configuration loaded", "path", cfg.Path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader, sourceHealth, closeSource, err := newLoader(ctx, cfg, configPath)
	if err != nil {
		return err
	}
	defer closeSource()

	if check {
		db, err := loader(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("configuration OK, %d account(s)\n", db.Len())
		return nil
	}

	// The first generation must build; later failures keep the previous one.
	accounts := basic.New(nil)
	reloader := reload.New(loader, accounts)
	if err := reloader.Reload(ctx); err != nil {
		return fmt.Errorf("loading accounts: %w", err)
	}

	chain := &auth.AuthChain{
		Authenticators:  []auth.Authenticator{accounts},
		DefaultDecision: auth.No,
	}
	adminOpts := []transporthttp.AdminOption{transporthttp.WithReloader(reloader)}
	if sourceHealth != nil {
		adminOpts = append(adminOpts, transporthttp.WithSourceCheck(sourceHealth))
	}

	if cfg.Session.Enabled {
		sessions, err := session.New(session.Config{
			SigningKey: []byte(cfg.Session.SigningKey),
			Issuer:     cfg.Session.Issuer,
			TTL:        cfg.Session.TTL,
		}, accounts)
		if err != nil {
			return fmt.Errorf("creating session manager: %w", err)
		}
		chain.Authenticators = append(chain.Authenticators, sessions)
		adminOpts = append(adminOpts, transporthttp.WithSessions(sessions))
		slog.Info("session tokens enabled", "ttl", cfg.Session.TTL, "signing_key", debug.Redact(cfg.Session.SigningKey))
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg.RateLimit)
	if err != nil {
		return err
	}
	defer closeLimiter()

	bypass := []string{"/healthz", "/readyz"}
	if cfg.Observability.Metrics.Enabled {
		adminOpts = append(adminOpts, transporthttp.WithMetrics(cfg.Observability.Metrics.Path))
		bypass = append(bypass, cfg.Observability.Metrics.Path)
	}

	admin := transporthttp.NewAdmin(accounts, adminOpts...)
	handler := auth.Middleware(chain, limiter, bypass)(admin.Handler())

	go reloader.NotifySignals(ctx, syscall.SIGHUP)

	if cfg.Accounts.Watch {
		go func() {
			if err := reloader.WatchFunc(ctx, watchPaths(configPath)); err != nil {
				slog.Error("file watch stopped", "error", err)
			}
		}()
		slog.Info("watching account files", "files", len(cfg.WatchPaths()))
	}

	srv := transporthttp.NewServer(handler,
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)
	return srv.Run(ctx)
}
