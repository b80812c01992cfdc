package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"aquawatch.org/internal/audit"
	"aquawatch.org/internal/auth"
	"aquawatch.org/internal/config"
	"aquawatch.org/internal/httpapi"
	"aquawatch.org/internal/obs"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
		db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	}
	if db == nil {
		log.Fatal("AQUAWATCH_PG_DSN is required")
	}

	store := auth.NewPGStore(db)
	tokens, err := auth.NewTokenIssuer(cfg.TokenSecret,
		auth.WithTokenAccessTTL(cfg.AccessTTL),
		auth.WithTokenRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}
	recorder := audit.NewRecorder(store.Audit())
	svc, err := auth.NewService(store, tokens,
		auth.WithAudit(recorder),
		auth.WithTOTPIssuer(cfg.AppName),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 10*time.Second)
	if err := svc.EnsureBootstrapAdmin(bootCtx,
		cfg.BootstrapAdminUsername, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}
	cancelBoot()

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db}, version, httpapi.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSec:    cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadHeaderTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	log.Printf("starting aquawatch-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("stopped")
}
