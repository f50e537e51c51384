package inference

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"github.com/Brownie44l1/digitcmp/internal/canvas"
	"github.com/Brownie44l1/digitcmp/internal/model"
	"github.com/Brownie44l1/digitcmp/internal/tensor"
	"github.com/google/uuid"
)

// ErrModelNotLoaded marks a prediction skipped because its model never loaded.
var ErrModelNotLoaded = errors.New("model not loaded")

type Notifier interface {
	Success(title string)
	Failure(title string)
}

// Snapshot is a copy of both prediction vectors. An empty vector means no
// prediction has been made since startup or the last clear.
type Snapshot struct {
	Dense []float32 `json:"dense"`
	CNN   []float32 `json:"cnn"`
}

func (s Snapshot) For(kind model.Kind) []float32 {
	if kind == model.CNN {
		return s.CNN
	}
	return s.Dense
}

// Session owns the drawing surface, the loaded models and the prediction
// vector of each model kind. Each vector is written only by its kind's
// prediction, last completion wins.
type Session struct {
	surface  *canvas.Surface
	pre      tensor.Preprocessor
	notifier Notifier

	mu          sync.RWMutex
	models      map[model.Kind]model.Model
	predictions map[model.Kind][]float32
}

func NewSession(pre tensor.Preprocessor, notifier Notifier) *Session {
	return &Session{
		surface:     canvas.NewSurface(),
		pre:         pre,
		notifier:    notifier,
		models:      make(map[model.Kind]model.Model),
		predictions: make(map[model.Kind][]float32),
	}
}

func (s *Session) Surface() *canvas.Surface {
	return s.surface
}

// Attach consumes a load result. A failed load leaves the slot unset for
// the rest of the session; a slot that is already set is never replaced.
func (s *Session) Attach(r model.Result) {
	if !r.Loaded() {
		slog.Error("model failed to load", "kind", r.Kind, "error", r.Err)
		s.notifier.Failure(fmt.Sprintf("%s model failed to load", r.Kind))
		return
	}

	s.mu.Lock()
	_, exists := s.models[r.Kind]
	if !exists {
		s.models[r.Kind] = r.Model
	}
	s.mu.Unlock()

	if exists {
		slog.Warn("ignoring second load of model", "kind", r.Kind)
		if err := r.Model.Close(); err != nil {
			slog.Error("error closing duplicate model", "kind", r.Kind, "error", err)
		}
		return
	}
	s.notifier.Success(fmt.Sprintf("%s model loaded successfully!", r.Kind))
}

// Await attaches each result as soon as its load completes.
func (s *Session) Await(results ...<-chan model.Result) {
	for _, ch := range results {
		go func(ch <-chan model.Result) {
			for r := range ch {
				s.Attach(r)
			}
		}(ch)
	}
}

func (s *Session) Loaded(kind model.Kind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.models[kind]
	return ok
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Dense: copyVector(s.predictions[model.Dense]),
		CNN:   copyVector(s.predictions[model.CNN]),
	}
}

// Clear wipes the raster and resets both vectors before returning.
func (s *Session) Clear() {
	s.surface.Clear()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kind := range model.Kinds {
		s.predictions[kind] = nil
	}
}

// InputTensor preprocesses the current raster and shapes it for kind, using
// the loaded model's input shape when there is one.
func (s *Session) InputTensor(kind model.Kind) (tensor.Tensor, error) {
	base, err := s.pre.FromImage(s.surface.Snapshot())
	if err != nil {
		return tensor.Tensor{}, err
	}
	shape := kind.InputShape()
	s.mu.RLock()
	if m, ok := s.models[kind]; ok {
		shape = m.InputShape()
	}
	s.mu.RUnlock()
	return base.Reshape(shape)
}

// Run preprocesses the current raster once and runs every model against it.
// It returns after both predictions have completed or failed.
func (s *Session) Run(ctx context.Context) Snapshot {
	pass := uuid.New()

	base, err := s.pre.FromImage(s.surface.Snapshot())
	if err != nil {
		slog.Error("error preprocessing canvas", "pass", pass, "error", err)
		for _, kind := range model.Kinds {
			if s.Loaded(kind) {
				s.notifier.Failure(fmt.Sprintf("%s model failed to predict", kind))
			}
		}
		return s.Snapshot()
	}

	var wg sync.WaitGroup
	for _, kind := range model.Kinds {
		wg.Add(1)
		go func(kind model.Kind) {
			defer wg.Done()
			s.apply(pass, kind, s.predict(ctx, kind, base))
		}(kind)
	}
	wg.Wait()

	return s.Snapshot()
}

type outcome struct {
	vector []float32
	err    error
}

func (s *Session) apply(pass uuid.UUID, kind model.Kind, o outcome) {
	switch {
	case o.err == nil:
		s.mu.Lock()
		s.predictions[kind] = o.vector
		s.mu.Unlock()
		slog.Debug("prediction", "pass", pass, "kind", kind, "vector", o.vector)
	case errors.Is(o.err, ErrModelNotLoaded):
		slog.Debug("skipping prediction", "pass", pass, "kind", kind)
	default:
		slog.Error("prediction failed", "pass", pass, "kind", kind, "error", o.err)
		s.notifier.Failure(fmt.Sprintf("%s model failed to predict", kind))
	}
}

func (s *Session) predict(ctx context.Context, kind model.Kind, base tensor.Tensor) outcome {
	s.mu.RLock()
	m, ok := s.models[kind]
	s.mu.RUnlock()
	if !ok {
		return outcome{err: ErrModelNotLoaded}
	}

	input, err := base.Reshape(m.InputShape())
	if err != nil {
		return outcome{err: err}
	}

	out, err := m.Predict(ctx, input)
	if err != nil {
		return outcome{err: err}
	}
	if err := validate(out); err != nil {
		return outcome{err: err}
	}
	return outcome{vector: out}
}

// Predict runs every model on an already preprocessed tensor without touching
// the session's prediction vectors. Errors are reported per kind.
func (s *Session) Predict(ctx context.Context, base tensor.Tensor) (Snapshot, map[model.Kind]error) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		snap Snapshot
		errs = make(map[model.Kind]error)
	)
	for _, kind := range model.Kinds {
		wg.Add(1)
		go func(kind model.Kind) {
			defer wg.Done()
			o := s.predict(ctx, kind, base)

			mu.Lock()
			defer mu.Unlock()
			if o.err != nil {
				errs[kind] = o.err
				return
			}
			if kind == model.CNN {
				snap.CNN = o.vector
			} else {
				snap.Dense = o.vector
			}
		}(kind)
	}
	wg.Wait()

	snap.Dense = copyVector(snap.Dense)
	snap.CNN = copyVector(snap.CNN)
	return snap, errs
}

// PredictImage runs the whole pipeline over an uploaded image.
func (s *Session) PredictImage(ctx context.Context, img image.Image) (Snapshot, map[model.Kind]error, error) {
	base, err := s.pre.FromImage(img)
	if err != nil {
		return Snapshot{}, nil, err
	}
	snap, errs := s.Predict(ctx, base)
	return snap, errs, nil
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for kind, m := range s.models {
		if err := m.Close(); err != nil {
			slog.Error("error closing model", "kind", kind, "error", err)
		}
	}
	clear(s.models)
}

func validate(v []float32) error {
	if len(v) != model.Classes {
		return fmt.Errorf("expected %d scores, got %d", model.Classes, len(v))
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("score %d is not finite: %v", i, x)
		}
	}
	return nil
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
