package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Brownie44l1/digitcmp/internal/tensor"
)

// Classes is the number of digit classes every model scores.
const Classes = 10

type Kind int

const (
	Dense Kind = iota
	CNN
)

// Kinds lists every model kind in display order.
var Kinds = []Kind{Dense, CNN}

func (k Kind) String() string {
	switch k {
	case Dense:
		return "Dense"
	case CNN:
		return "CNN"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Key is the lower case identifier used in URLs and JSON.
func (k Kind) Key() string {
	return strings.ToLower(k.String())
}

func (k Kind) InputShape() tensor.Shape {
	if k == CNN {
		return tensor.ConvShape
	}
	return tensor.DenseShape
}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(s, k.Key()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown model kind %q", s)
}

// Metadata describes the tensors of a model artifact. It is read from an
// optional JSON file next to the artifact; zero fields take kind defaults.
type Metadata struct {
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
}

func DefaultMetadata(kind Kind) Metadata {
	return Metadata{
		InputShape:  kind.InputShape().Int64(),
		OutputShape: []int64{1, Classes},
		InputName:   "input",
		OutputName:  "output",
	}
}

func (m Metadata) withDefaults(kind Kind) Metadata {
	d := DefaultMetadata(kind)
	if len(m.InputShape) == 0 {
		m.InputShape = d.InputShape
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = d.OutputShape
	}
	if m.InputName == "" {
		m.InputName = d.InputName
	}
	if m.OutputName == "" {
		m.OutputName = d.OutputName
	}
	return m
}

// check rejects shapes that cannot hold one 28x28 image or one score per digit.
func (m Metadata) check() error {
	if size := shapeSize(m.InputShape); size != int64(tensor.BaseShape.Size()) {
		return fmt.Errorf("%w: input shape %v holds %d values, want %d", ErrShapeMismatch, m.InputShape, size, tensor.BaseShape.Size())
	}
	if size := shapeSize(m.OutputShape); size != Classes {
		return fmt.Errorf("%w: output shape %v holds %d values, want %d", ErrShapeMismatch, m.OutputShape, size, Classes)
	}
	return nil
}

func shapeSize(shape []int64) int64 {
	size := int64(1)
	for _, d := range shape {
		if d <= 0 {
			return 0
		}
		size *= d
	}
	return size
}

// Model is a loaded, ready to run forward pass.
type Model interface {
	Predict(ctx context.Context, input tensor.Tensor) ([]float32, error)
	InputShape() tensor.Shape
	Close() error
}

var ErrShapeMismatch = errors.New("input shape mismatch")

// Result is the outcome of one asynchronous load: Model is set when Err is nil.
type Result struct {
	Kind  Kind
	Model Model
	Err   error
}

func (r Result) Loaded() bool {
	return r.Err == nil && r.Model != nil
}
