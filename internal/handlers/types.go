package handlers

import (
	"github.com/Brownie44l1/digitcmp/internal/chart"
	"github.com/Brownie44l1/digitcmp/internal/inference"
	"github.com/Brownie44l1/digitcmp/internal/model"
)

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type Class struct {
	Digit      int     `json:"digit"`
	Confidence float32 `json:"confidence"`
}

type PredictionResponse struct {
	Dense   []float32         `json:"dense"`
	CNN     []float32         `json:"cnn"`
	Classes map[string]Class  `json:"classes"`
	Chart   chart.Data        `json:"chart"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type TensorQuery struct {
	Model string `schema:"model"`
}

type HealthResponse struct {
	Status string          `json:"status"`
	Models map[string]bool `json:"models"`
}

func newPredictionResponse(snap inference.Snapshot, errs map[model.Kind]error) PredictionResponse {
	res := PredictionResponse{
		Dense:   snap.Dense,
		CNN:     snap.CNN,
		Classes: make(map[string]Class),
		Chart:   chart.Build(snap.Dense, snap.CNN),
	}

	for _, kind := range model.Kinds {
		if c, ok := topClass(snap.For(kind)); ok {
			res.Classes[kind.Key()] = c
		}
	}

	if len(errs) > 0 {
		res.Errors = make(map[string]string, len(errs))
		for kind, err := range errs {
			res.Errors[kind.Key()] = err.Error()
		}
	}
	return res
}

func topClass(scores []float32) (Class, bool) {
	if len(scores) == 0 {
		return Class{}, false
	}
	best := Class{Digit: 0, Confidence: scores[0]}
	for i, v := range scores {
		if v > best.Confidence {
			best = Class{Digit: i, Confidence: v}
		}
	}
	return best, true
}
