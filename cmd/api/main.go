package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/NewsHub/internal/api"
	"github.com/LJTian/NewsHub/internal/app"
	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Output: cfg.LogOutput, Pretty: cfg.LogPretty}); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	lg := logger.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		lg.Fatal().Err(err).Msg("init pipeline failed")
	}
	defer a.Close()

	// 定时采集 / 热门重算 / 过期清理；首轮采集延迟 StartupDelay 执行
	a.Scheduler.Start()

	r := gin.Default()
	api.NewServer(a.Scheduler, a.Store).
		WithBasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass).
		RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		lg.Info().Str("addr", srv.Addr).Msg("starting api server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("server exit")
		}
	}()

	<-ctx.Done()
	lg.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("http shutdown")
	}
	if err := a.Scheduler.Stop(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("scheduler shutdown")
	}
}
