package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"CrmAPI/entities"
	"CrmAPI/internal/auth"
	"CrmAPI/internal/authz"
	"CrmAPI/internal/blob"
	"CrmAPI/internal/db"
	"CrmAPI/internal/events"
	"CrmAPI/internal/handler"
	"CrmAPI/internal/logger"
	"CrmAPI/internal/model"
	"CrmAPI/internal/query"
	"CrmAPI/internal/resolver"
	"CrmAPI/internal/router"
	"CrmAPI/internal/service"
	"CrmAPI/internal/store"
	"CrmAPI/internal/validation"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	pg, err := db.InitPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pg.Close()

	if cfg.MigrateOnStart {
		if err := db.MigrateUp(pg.DB); err != nil {
			return err
		}
	}

	reg, err := model.InitRegistry(cfg.EntitiesDir, entities.FS)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	logger.Info("models_initialized", map[string]any{"entities": len(reg.Names())})

	rdb, err := db.InitRedis(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	var denylist auth.Denylist
	if rdb != nil {
		defer rdb.Close()
		denylist = auth.NewDenylist(rdb)
	}

	jwtValidator, err := auth.NewJWTValidator(cfg.Auth.JWT)
	if err != nil {
		return fmt.Errorf("jwt: %w", err)
	}
	authn := auth.NewAuthenticator(jwtValidator, denylist)

	// Only HS256 deployments mint their own tokens.
	var issuer service.TokenIssuer
	if cfg.Auth.JWT.ValidationType == "HS256" {
		iss, err := auth.NewIssuer(cfg.Auth.JWT, cfg.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("token issuer: %w", err)
		}
		issuer = iss
	} else {
		logger.Warn("login_disabled", map[string]any{"validation_type": cfg.Auth.JWT.ValidationType})
	}

	enforcer, err := authz.NewEnforcer(authz.Config{
		ModelPath:  cfg.Auth.CasbinModelPath,
		PolicyPath: cfg.Auth.CasbinPolicyPath,
	})
	if err != nil {
		return fmt.Errorf("casbin: %w", err)
	}

	blobs, err := blob.New(ctx, cfg.Blob)
	if err != nil {
		return err
	}

	publisher, err := events.New(cfg.NatsURL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer publisher.Close()

	st := store.New(pg.DB)
	svc := service.New(service.Deps{
		Registry:  reg,
		Repo:      st,
		Authz:     enforcer,
		Validator: validation.New(reg, st),
		Relations: resolver.New(st),
		Blobs:     blobs,
		Events:    publisher,
		Issuer:    issuer,
		Revoker:   authn,
	}, service.Options{
		Pagination: query.Options{
			DefaultPerPage: cfg.Pagination.DefaultPerPage,
			MaxPerPage:     cfg.Pagination.MaxPerPage,
		},
		ExportMaxRows: cfg.Export.MaxRows,
	})

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(router.Deps{
			Handler:       handler.New(svc),
			Registry:      reg,
			Authenticator: authn,
			DB:            pg.DB,
			CORS:          cfg.CORS,
			RateLimit:     cfg.RateLimit,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_start", map[string]any{"port": cfg.Port})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("server_shutdown", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
