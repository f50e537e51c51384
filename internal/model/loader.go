package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Opener deserializes artifact bytes into a runnable model.
type Opener func(kind Kind, artifact []byte, metadata Metadata) (Model, error)

// FailedOpener returns an Opener that refuses every artifact with err. It is
// used when the runtime could not start, so each load still ends in a Result.
func FailedOpener(err error) Opener {
	return func(kind Kind, artifact []byte, metadata Metadata) (Model, error) {
		return nil, err
	}
}

type Loader struct {
	fetcher *Fetcher
	open    Opener
	timeout time.Duration
}

// NewLoader creates a loader. A zero timeout means loads are never cut short.
func NewLoader(fetcher *Fetcher, open Opener, timeout time.Duration) *Loader {
	return &Loader{fetcher: fetcher, open: open, timeout: timeout}
}

// Start loads the model on its own goroutine. The returned channel receives
// exactly one Result and is then closed.
func (l *Loader) Start(ctx context.Context, kind Kind, location string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		m, err := l.Load(ctx, kind, location)
		out <- Result{Kind: kind, Model: m, Err: err}
	}()
	return out
}

func (l *Loader) Load(ctx context.Context, kind Kind, location string) (Model, error) {
	if location == "" {
		return nil, fmt.Errorf("no source configured for %s model", kind)
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	slog.Info("loading model", "kind", kind, "location", location)

	artifact, err := l.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("fetch %s model: %w", kind, err)
	}

	metadata, err := l.metadata(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("fetch %s model metadata: %w", kind, err)
	}

	metadata = metadata.withDefaults(kind)
	if err := metadata.check(); err != nil {
		return nil, fmt.Errorf("invalid %s model metadata: %w", kind, err)
	}

	m, err := l.open(kind, artifact, metadata)
	if err != nil {
		return nil, fmt.Errorf("open %s model: %w", kind, err)
	}

	slog.Info("model loaded", "kind", kind, "bytes", len(artifact), "input_shape", m.InputShape(), "duration", time.Since(start))
	return m, nil
}

func (l *Loader) metadata(ctx context.Context, location string) (Metadata, error) {
	raw, err := l.fetcher.Fetch(ctx, MetadataLocation(location))
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
		slog.Debug("no model metadata, using defaults", "location", location, "reason", err)
		return Metadata{}, nil
	}
	if err != nil {
		return Metadata{}, err
	}

	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return metadata, nil
}
