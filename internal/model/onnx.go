package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/Brownie44l1/digitcmp/internal/tensor"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	initOnce sync.Once
	initErr  error
)

// InitRuntime loads the onnxruntime shared library once per process.
func InitRuntime(dylib string) error {
	initOnce.Do(func() {
		if dylib != "" {
			ort.SetSharedLibraryPath(dylib)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			initErr = fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	})
	return initErr
}

func DestroyRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

type OnnxModel struct {
	session  *ort.DynamicAdvancedSession
	metadata Metadata
}

// OpenOnnx builds an in-memory session from the raw artifact bytes.
func OpenOnnx(kind Kind, artifact []byte, metadata Metadata) (Model, error) {
	if !ort.IsInitialized() {
		return nil, fmt.Errorf("ONNX environment is not initialized")
	}
	metadata = metadata.withDefaults(kind)

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(
		artifact,
		[]string{metadata.InputName},
		[]string{metadata.OutputName},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &OnnxModel{session: session, metadata: metadata}, nil
}

func (m *OnnxModel) InputShape() tensor.Shape {
	shape := make(tensor.Shape, len(m.metadata.InputShape))
	for i, d := range m.metadata.InputShape {
		shape[i] = int(d)
	}
	return shape
}

func (m *OnnxModel) Predict(ctx context.Context, input tensor.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !input.Shape.Equal(m.InputShape()) {
		return nil, fmt.Errorf("%w: model expects %v, got %v", ErrShapeMismatch, m.metadata.InputShape, input.Shape)
	}

	data := make([]float32, len(input.Data))
	copy(data, input.Data)

	inputTensor, err := ort.NewTensor(ort.NewShape(m.metadata.InputShape...), data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(m.metadata.OutputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := m.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := make([]float32, len(outputTensor.GetData()))
	copy(out, outputTensor.GetData())
	return out, nil
}

func (m *OnnxModel) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
