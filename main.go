package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zgsm-ai/chat-proxy/internal/bootstrap"
	"github.com/zgsm-ai/chat-proxy/internal/config"
	"github.com/zgsm-ai/chat-proxy/internal/handler"
	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

// main is the entry point of the chat-proxy service
func main() {
	var configFile string
	flag.StringVar(&configFile, "f", "etc/chat-proxy.yaml", "the config file")
	flag.Parse()

	if err := run(configFile); err != nil {
		logger.Error("chat-proxy exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(configFile string) error {
	loader, err := config.NewLoader(configFile)
	if err != nil {
		return err
	}
	c, err := loader.Load()
	if err != nil {
		return err
	}

	if err := logger.Setup(logger.Options{
		Level:      c.Log.Level,
		FilePath:   c.Log.FilePath,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	}); err != nil {
		return err
	}

	svcCtx, err := bootstrap.NewServiceContext(c)
	if err != nil {
		return fmt.Errorf("failed to create service context: %w", err)
	}
	defer svcCtx.Stop()

	loader.OnChange(svcCtx.Reload)
	loader.Watch()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterHandlers(router, svcCtx)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return svcCtx.ResetJob.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
