package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"

	"github.com/Brownie44l1/digitcmp/cmd"
	"github.com/Brownie44l1/digitcmp/internal/chart"
	"github.com/Brownie44l1/digitcmp/internal/inference"
	"github.com/Brownie44l1/digitcmp/internal/model"
	"github.com/Brownie44l1/digitcmp/internal/notify"
)

type output struct {
	Dense  []float32         `json:"dense"`
	CNN    []float32         `json:"cnn"`
	Chart  chart.Data        `json:"chart"`
	Errors map[string]string `json:"errors,omitempty"`
}

func main() {
	cmd.SetupLogging()

	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	dense := fs.String("dense", "", "dense model source, overrides DENSE_MODEL")
	cnn := fs.String("cnn", "", "cnn model source, overrides CNN_MODEL")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: predict [-env file] [-dense src] [-cnn src] image.png\n")
		fs.PrintDefaults()
	}

	cfg, err := cmd.LoadConfig(fs, os.Args[1:])
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}
	if *dense != "" {
		cfg.DenseModel = *dense
	}
	if *cnn != "" {
		cfg.CNNModel = *cnn
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		log.Fatalf("failed to open image: %v", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		log.Fatalf("failed to decode image: %v", err)
	}

	ctx := context.Background()
	loader, release := cmd.NewModelLoader(ctx, cfg)
	defer release()

	toasts := notify.NewStore(0)
	session := inference.NewSession(cfg.Preprocessor(), toasts)
	defer session.Close()

	results := []<-chan model.Result{
		loader.Start(ctx, model.Dense, cfg.Source(model.Dense)),
		loader.Start(ctx, model.CNN, cfg.Source(model.CNN)),
	}
	for _, ch := range results {
		session.Attach(<-ch)
	}

	snap, errs, err := session.PredictImage(ctx, img)
	if err != nil {
		log.Fatalf("failed to preprocess image: %v", err)
	}

	out := output{Dense: snap.Dense, CNN: snap.CNN, Chart: chart.Build(snap.Dense, snap.CNN)}
	if len(errs) > 0 {
		out.Errors = make(map[string]string, len(errs))
		for kind, err := range errs {
			out.Errors[kind.Key()] = err.Error()
		}
	}

	for _, t := range toasts.Active() {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", t.Status, t.Title)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("failed to write output: %v", err)
	}
}
