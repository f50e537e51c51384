package cmd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/Brownie44l1/digitcmp/internal/config"
	"github.com/Brownie44l1/digitcmp/internal/model"
)

// LoadConfig parses the -env flag, loads that file and reads the config
// from the environment.
func LoadConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	var envPath string
	fs.StringVar(&envPath, "env", "", "path to load env from")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := config.LoadEnvFile(envPath); err != nil {
		return nil, err
	}
	return config.Load()
}

// SetupLogging installs a text slog handler; LOG_LEVEL=debug enables debug logs.
func SetupLogging() {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// NewModelLoader returns a loader able to read every configured model source.
// A runtime or S3 client that cannot start does not stop the caller: the
// error is carried by the loader and each affected load fails with it. The
// returned func releases the runtime.
func NewModelLoader(ctx context.Context, cfg *config.Config) (*model.Loader, func()) {
	release := func() {
		if err := model.DestroyRuntime(); err != nil {
			slog.Error("error destroying onnx env", "error", err)
		}
	}

	open := model.OpenOnnx
	if err := model.InitRuntime(cfg.OnnxRuntimeDylib); err != nil {
		slog.Error("onnx runtime unavailable, models will not load", "dylib", cfg.OnnxRuntimeDylib, "error", err)
		open = model.FailedOpener(err)
	}

	var downloader model.ObjectDownloader
	if cfg.UsesS3() {
		d, err := model.NewS3Downloader(ctx, cfg.S3())
		if err != nil {
			err = fmt.Errorf("failed to create S3 client: %w", err)
			slog.Error("s3 unavailable, s3 models will not load", "error", err)
			downloader = model.UnavailableDownloader(err)
		} else {
			downloader = d
		}
	}

	fetcher := model.NewFetcher(nil, downloader)
	return model.NewLoader(fetcher, open, cfg.LoadTimeout), release
}
