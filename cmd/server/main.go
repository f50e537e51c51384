package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brownie44l1/digitcmp/cmd"
	"github.com/Brownie44l1/digitcmp/internal/handlers"
	"github.com/Brownie44l1/digitcmp/internal/inference"
	"github.com/Brownie44l1/digitcmp/internal/model"
	"github.com/Brownie44l1/digitcmp/internal/notify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cmd.SetupLogging()

	cfg, err := cmd.LoadConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader, release := cmd.NewModelLoader(ctx, cfg)
	defer release()

	toasts := notify.NewStore(cfg.SuccessToast)
	session := inference.NewSession(cfg.Preprocessor(), toasts)
	defer session.Close()

	// both models load in the background; the canvas is usable right away
	session.Await(
		loader.Start(ctx, model.Dense, cfg.Source(model.Dense)),
		loader.Start(ctx, model.CNN, cfg.Source(model.CNN)),
	)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	handlers.NewHandler(session, toasts).AddRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}
	}()

	slog.Info("server starting", "port", cfg.Port, "dense_model", cfg.DenseModel, "cnn_model", cfg.CNNModel,
		"pixel_channel", cfg.PixelChannel, "pixel_scale", cfg.PixelScale, "resampler", cfg.Resampler)
	log.Printf("Open http://localhost:%s to draw a digit", cfg.Port)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}
