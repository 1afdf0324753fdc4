package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Shiajyas/social-app-sub002/internal/config"
	"github.com/Shiajyas/social-app-sub002/internal/httpserver"
	"github.com/Shiajyas/social-app-sub002/internal/security"
	"github.com/Shiajyas/social-app-sub002/internal/service"
	"github.com/Shiajyas/social-app-sub002/internal/store/sqlite"
	"github.com/Shiajyas/social-app-sub002/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var log *zap.Logger
	if cfg.Debug {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	if err := sqlite.Migrate(db); err != nil {
		log.Fatal("run migrations", zap.Error(err))
	}

	tokenSvc := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	passwordHasher := security.NewPasswordHasher(0)

	userRepo := sqlite.NewUserRepo(db)
	chatRepo := sqlite.NewChatRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)
	followRepo := sqlite.NewFollowRepo(db)

	accounts := service.NewAccountService(userRepo, tokenSvc, passwordHasher)
	chats := service.NewChatService(chatRepo, msgRepo)
	messages := service.NewMessageService(chatRepo, msgRepo, userRepo)
	social := service.NewSocialService(followRepo, userRepo)

	registry := ws.NewRegistry(log)

	router := httpserver.NewRouter(cfg, httpserver.Deps{
		Accounts: accounts,
		Chats:    chats,
		Messages: messages,
		Social:   social,
		Registry: registry,
		Log:      log,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("addr", cfg.HTTPAddr()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
}
