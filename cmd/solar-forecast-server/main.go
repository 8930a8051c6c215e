package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/solar-forecast/internal/logging"
	"github.com/iwvelando/solar-forecast/internal/server"
	"github.com/iwvelando/solar-forecast/pkg/constants"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configLocation := flag.String("config", constants.DefaultServerConfigFile, "path to server configuration file")
	address := flag.String("address", "", "listen address override (e.g. :8080)")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	maxUploadSize := flag.String("max-upload-size", "", "upload limit override (e.g. 512K, 2M)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := server.LoadConfig(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load server configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}
	if *address != "" {
		cfg.Address = *address
	}
	if *maxUploadSize != "" {
		size, err := server.ParseSize(*maxUploadSize)
		if err != nil {
			fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"invalid -max-upload-size\", \"error\": \"%v\"}\n", err)
			os.Exit(1)
		}
		cfg.SetUploadSizeBytes(size)
	}

	logger, err := logging.New(cfg.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	srv := server.New(cfg, logger, version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server stopped unexpectedly",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("graceful shutdown failed",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}
