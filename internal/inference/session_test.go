package inference

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Brownie44l1/digitcmp/internal/canvas"
	"github.com/Brownie44l1/digitcmp/internal/model"
	"github.com/Brownie44l1/digitcmp/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	shape tensor.Shape
	out   []float32
	err   error

	mu     sync.Mutex
	inputs []tensor.Tensor
	closed bool
}

func (m *fakeModel) Predict(ctx context.Context, input tensor.Tensor) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	if !input.Shape.Equal(m.shape) {
		return nil, model.ErrShapeMismatch
	}
	return append([]float32(nil), m.out...), nil
}

func (m *fakeModel) InputShape() tensor.Shape { return m.shape }

func (m *fakeModel) Close() error {
	m.closed = true
	return nil
}

func (m *fakeModel) calls() []tensor.Tensor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tensor.Tensor(nil), m.inputs...)
}

type recorder struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (r *recorder) Success(title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, title)
}

func (r *recorder) Failure(title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, title)
}

func onehot(i int) []float32 {
	v := make([]float32, model.Classes)
	v[i] = 1
	return v
}

func denseModel() *fakeModel { return &fakeModel{shape: tensor.DenseShape, out: onehot(1)} }
func cnnModel() *fakeModel   { return &fakeModel{shape: tensor.ConvShape, out: onehot(7)} }

func newSession(t *testing.T, dense, cnn model.Model) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := NewSession(tensor.DefaultPreprocessor(), rec)
	if dense != nil {
		s.Attach(model.Result{Kind: model.Dense, Model: dense})
	}
	if cnn != nil {
		s.Attach(model.Result{Kind: model.CNN, Model: cnn})
	}
	return s, rec
}

func drawVerticalLine(t *testing.T, s *Session) Snapshot {
	t.Helper()
	ctx := context.Background()
	_, err := s.Dispatch(ctx, StrokeStart{At: canvas.Point{X: 100, Y: 20}})
	require.NoError(t, err)
	for y := 30.0; y <= 180; y += 10 {
		_, err := s.Dispatch(ctx, StrokeMove{At: canvas.Point{X: 100, Y: y}})
		require.NoError(t, err)
	}
	snap, err := s.Dispatch(ctx, StrokeEnd{})
	require.NoError(t, err)
	return snap
}

func TestStrokeEndRunsBothModels(t *testing.T) {
	dense, cnn := denseModel(), cnnModel()
	s, rec := newSession(t, dense, cnn)

	snap := drawVerticalLine(t, s)

	assert.Equal(t, onehot(1), snap.Dense)
	assert.Equal(t, onehot(7), snap.CNN)
	assert.ElementsMatch(t, []string{"Dense model loaded successfully!", "CNN model loaded successfully!"}, rec.successes)
	assert.Empty(t, rec.failures)

	denseCalls, cnnCalls := dense.calls(), cnn.calls()
	require.Len(t, denseCalls, 1)
	require.Len(t, cnnCalls, 1)
	assert.Equal(t, tensor.DenseShape, denseCalls[0].Shape)
	assert.Equal(t, tensor.ConvShape, cnnCalls[0].Shape)
	assert.Equal(t, denseCalls[0].Data, cnnCalls[0].Data, "both models see the same preprocessed pixels")

	var sum float32
	for _, v := range denseCalls[0].Data {
		sum += v
	}
	assert.Greater(t, sum, float32(0), "the drawn line reaches the input tensor")
}

func TestOnlyLoadedModelPredicts(t *testing.T) {
	rec := &recorder{}
	s := NewSession(tensor.DefaultPreprocessor(), rec)
	s.Attach(model.Result{Kind: model.Dense, Err: errors.New("404")})
	s.Attach(model.Result{Kind: model.CNN, Model: cnnModel()})

	snap := drawVerticalLine(t, s)

	assert.Empty(t, snap.Dense)
	assert.Equal(t, onehot(7), snap.CNN)
	assert.Equal(t, []string{"Dense model failed to load"}, rec.failures)
	assert.Equal(t, []string{"CNN model loaded successfully!"}, rec.successes)
	assert.False(t, s.Loaded(model.Dense))
	assert.True(t, s.Loaded(model.CNN))
}

func TestNoModelsLoaded(t *testing.T) {
	s, rec := newSession(t, nil, nil)
	snap := drawVerticalLine(t, s)

	assert.Empty(t, snap.Dense)
	assert.Empty(t, snap.CNN)
	assert.Empty(t, rec.failures)
}

func TestFailedPredictionKeepsPreviousVector(t *testing.T) {
	dense, cnn := denseModel(), cnnModel()
	s, rec := newSession(t, dense, cnn)
	drawVerticalLine(t, s)

	dense.mu.Lock()
	dense.err = errors.New("runtime error")
	dense.mu.Unlock()
	cnn.mu.Lock()
	cnn.out = onehot(4)
	cnn.mu.Unlock()

	snap := drawVerticalLine(t, s)
	assert.Equal(t, onehot(1), snap.Dense)
	assert.Equal(t, onehot(4), snap.CNN)
	assert.Equal(t, []string{"Dense model failed to predict"}, rec.failures)
}

func TestModelInputShapeIsUsed(t *testing.T) {
	flat := &fakeModel{shape: tensor.Shape{1, 784}, out: onehot(3)}
	s, rec := newSession(t, flat, cnnModel())

	snap := drawVerticalLine(t, s)
	assert.Equal(t, onehot(3), snap.Dense)
	assert.Empty(t, rec.failures)

	calls := flat.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, tensor.Shape{1, 784}, calls[0].Shape)
}

func TestShapeMismatchIsAFailure(t *testing.T) {
	wrong := &fakeModel{shape: tensor.Shape{1, 100}, out: onehot(0)}
	s, rec := newSession(t, wrong, cnnModel())

	snap := drawVerticalLine(t, s)
	assert.Empty(t, snap.Dense)
	assert.Equal(t, onehot(7), snap.CNN)
	assert.Equal(t, []string{"Dense model failed to predict"}, rec.failures)
}

func TestInvalidOutputsAreRejected(t *testing.T) {
	nan := onehot(2)
	nan[3] = float32(math.NaN())

	cases := map[string][]float32{
		"short": {1, 2, 3},
		"nan":   nan,
	}
	for name, out := range cases {
		t.Run(name, func(t *testing.T) {
			s, rec := newSession(t, &fakeModel{shape: tensor.DenseShape, out: out}, nil)
			snap := drawVerticalLine(t, s)
			assert.Empty(t, snap.Dense)
			assert.Len(t, rec.failures, 1)
		})
	}
}

func TestClearResetsEverything(t *testing.T) {
	s, _ := newSession(t, denseModel(), cnnModel())
	drawVerticalLine(t, s)
	require.False(t, s.Surface().Blank())

	snap, err := s.Dispatch(context.Background(), Clear{})
	require.NoError(t, err)

	assert.Empty(t, snap.Dense)
	assert.Empty(t, snap.CNN)
	assert.True(t, s.Surface().Blank())
}

func TestClearWithoutDrawing(t *testing.T) {
	s, _ := newSession(t, denseModel(), cnnModel())

	snap, err := s.Dispatch(context.Background(), Clear{})
	require.NoError(t, err)
	assert.Empty(t, snap.Dense)
	assert.Empty(t, snap.CNN)
	assert.True(t, s.Surface().Blank())
}

func TestSecondAttachIsIgnored(t *testing.T) {
	first, second := denseModel(), denseModel()
	s, rec := newSession(t, first, nil)
	s.Attach(model.Result{Kind: model.Dense, Model: second})

	assert.True(t, second.closed)
	assert.False(t, first.closed)
	assert.Len(t, rec.successes, 1)

	s.Close()
	assert.True(t, first.closed)
}

func TestAwait(t *testing.T) {
	s, _ := newSession(t, nil, nil)
	ch := make(chan model.Result, 1)
	ch <- model.Result{Kind: model.CNN, Model: cnnModel()}
	close(ch)

	s.Await(ch)
	assert.Eventually(t, func() bool { return s.Loaded(model.CNN) }, time.Second, 5*time.Millisecond)
}

func TestPredictImageLeavesVectorsAlone(t *testing.T) {
	s, _ := newSession(t, denseModel(), cnnModel())

	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for x := 90; x < 110; x++ {
		for y := 20; y < 180; y++ {
			img.SetRGBA(x, y, color.RGBA{R: 0x31, G: 0x97, B: 0x95, A: 0xff})
		}
	}

	snap, errs, err := s.PredictImage(context.Background(), img)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, onehot(1), snap.Dense)
	assert.Equal(t, onehot(7), snap.CNN)

	current := s.Snapshot()
	assert.Empty(t, current.Dense)
	assert.Empty(t, current.CNN)
}

func TestPredictReportsMissingModels(t *testing.T) {
	s, _ := newSession(t, denseModel(), nil)
	base, err := tensor.FromValues(make([]float32, 784))
	require.NoError(t, err)

	snap, errs := s.Predict(context.Background(), base)
	assert.Equal(t, onehot(1), snap.Dense)
	assert.Empty(t, snap.CNN)
	assert.ErrorIs(t, errs[model.CNN], ErrModelNotLoaded)
}

func TestInputTensor(t *testing.T) {
	s, _ := newSession(t, nil, nil)
	drawVerticalLine(t, s)

	dense, err := s.InputTensor(model.Dense)
	require.NoError(t, err)
	again, err := s.InputTensor(model.Dense)
	require.NoError(t, err)
	assert.Equal(t, dense.Data, again.Data)

	conv, err := s.InputTensor(model.CNN)
	require.NoError(t, err)
	assert.Equal(t, tensor.ConvShape, conv.Shape)
	assert.Equal(t, dense.Data, conv.Data)
}

func TestConcurrentStrokeEnds(t *testing.T) {
	s, _ := newSession(t, denseModel(), cnnModel())
	drawVerticalLine(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := s.Dispatch(context.Background(), StrokeEnd{})
			assert.NoError(t, err)
			assert.Len(t, snap.Dense, model.Classes)
			assert.Len(t, snap.CNN, model.Classes)
		}()
	}
	wg.Wait()
}
