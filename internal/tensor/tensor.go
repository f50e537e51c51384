package tensor

import (
	"fmt"
)

// Side is the spatial size of the model input image.
const Side = 28

var (
	// BaseShape is the layout produced by the preprocessor: height, width, channel.
	BaseShape = Shape{Side, Side, 1}
	// DenseShape is the batched, flattened-per-row input of the fully connected model.
	DenseShape = Shape{1, Side, Side}
	// ConvShape is the batched input with an explicit channel dimension.
	ConvShape = Shape{1, Side, Side, 1}
)

type Shape []int

func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Shape) Int64() []int64 {
	out := make([]int64, len(s))
	for i, d := range s {
		out[i] = int64(d)
	}
	return out
}

type Tensor struct {
	Shape Shape     `json:"shape"`
	Data  []float32 `json:"data"`
}

func New(shape Shape, data []float32) (Tensor, error) {
	if shape.Size() != len(data) {
		return Tensor{}, fmt.Errorf("shape %v needs %d values, got %d", shape, shape.Size(), len(data))
	}
	return Tensor{Shape: append(Shape(nil), shape...), Data: data}, nil
}

// Reshape returns a view over the same data with a new shape.
func (t Tensor) Reshape(shape Shape) (Tensor, error) {
	if shape.Size() != len(t.Data) {
		return Tensor{}, fmt.Errorf("cannot reshape %v into %v", t.Shape, shape)
	}
	return Tensor{Shape: append(Shape(nil), shape...), Data: t.Data}, nil
}
