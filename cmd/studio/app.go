package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/outfit-studio/internal/config"
	"github.com/and161185/outfit-studio/internal/genclient"
	"github.com/and161185/outfit-studio/internal/imaging"
	"github.com/and161185/outfit-studio/internal/limiter"
	"github.com/and161185/outfit-studio/internal/migrate"
	"github.com/and161185/outfit-studio/internal/model"
	"github.com/and161185/outfit-studio/internal/repository/localstore"
	"github.com/and161185/outfit-studio/internal/repository/postgres"
	"github.com/and161185/outfit-studio/internal/service"
	"github.com/and161185/outfit-studio/internal/session"
	"github.com/and161185/outfit-studio/internal/studio"
)

// deps holds the constructors the commands use; tests swap them out.
type deps struct {
	dotenv       []string
	newLogger    func(dev bool) (*zap.Logger, error)
	newGenerator func(ctx context.Context, cfg config.Config, log *zap.Logger) (studio.Generator, error)
}

func defaultDeps() deps {
	return deps{
		dotenv: []string{".env", ".env.local"},
		newLogger: func(dev bool) (*zap.Logger, error) {
			if dev {
				return zap.NewDevelopment()
			}
			return zap.NewProduction()
		},
		newGenerator: func(ctx context.Context, cfg config.Config, log *zap.Logger) (studio.Generator, error) {
			return genclient.New(ctx, genclient.Options{APIKey: cfg.APIKey, Model: cfg.Model, Logger: log})
		},
	}
}

// app is the per-invocation wiring: one backend, one logger, one session hub.
type app struct {
	cfg    config.Config
	log    *zap.Logger
	hub    *session.Hub
	gw     service.Gateway
	unsub  func()
	closer func()
}

// open selects the backend once and subscribes the process-wide session logger.
func open(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, hub: session.NewHub(), closer: func() {}}

	switch cfg.Backend {
	case config.BackendLocal:
		st, err := localstore.New(cfg.DataDir, cfg.MaxSlotBytes)
		if err != nil {
			return nil, err
		}
		gw, err := service.NewLocalGateway(st, a.hub, log.Named("local"))
		if err != nil {
			return nil, err
		}
		a.gw = gw

	case config.BackendRemote:
		if err := migrate.Up(ctx, cfg.DSN, log.Named("migrate")); err != nil {
			return nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		gw, err := service.NewRemoteGateway(ctx, service.RemoteOptions{
			Users:      postgres.NewUserRepo(db),
			Projects:   postgres.NewProjectRepo(db),
			Limiter:    limiter.NewPG(db.Pool, limiter.DefaultPolicy),
			Tokens:     session.NewTokenFile(cfg.TokenPath()),
			Hub:        a.hub,
			Logger:     log.Named("remote"),
			SignKey:    []byte(cfg.JWTKey),
			SessionTTL: cfg.SessionTTL,
			ClientID:   cfg.ClientID,
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		a.gw = gw
		a.closer = db.Close

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	a.unsub = a.gw.OnSessionChange(func(acc *model.Account) {
		if acc == nil {
			log.Info("session ended")
			return
		}
		log.Info("session started", zap.String("user", acc.Username))
	})
	log.Debug("backend ready", zap.String("backend", cfg.Backend), zap.String("data_dir", cfg.DataDir))
	return a, nil
}

func (a *app) close() {
	if a.unsub != nil {
		a.unsub()
	}
	a.closer()
	_ = a.log.Sync()
}

// readImage loads a garment or model photo from a path or a data: URL.
func readImage(arg string) (*model.RawImage, error) {
	if arg == "" {
		return nil, nil
	}
	if strings.HasPrefix(arg, "data:") {
		raw, err := imaging.FromDataURL("inline", arg)
		if err != nil {
			return nil, err
		}
		return &raw, nil
	}
	b, err := os.ReadFile(arg)
	if err != nil {
		return nil, err
	}
	return &model.RawImage{Name: arg, MIMEType: imaging.TypeByExtension(arg), Data: b}, nil
}
