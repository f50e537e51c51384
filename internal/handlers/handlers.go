package handlers

import (
	"embed"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/Brownie44l1/digitcmp/internal/canvas"
	"github.com/Brownie44l1/digitcmp/internal/inference"
	"github.com/Brownie44l1/digitcmp/internal/model"
	"github.com/Brownie44l1/digitcmp/internal/notify"
	"github.com/Brownie44l1/digitcmp/internal/tensor"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

//go:embed static
var static embed.FS

const maxUploadBytes = 10 << 20

type Handler struct {
	session *inference.Session
	toasts  *notify.Store
}

func NewHandler(session *inference.Session, toasts *notify.Store) *Handler {
	return &Handler{
		session: session,
		toasts:  toasts,
	}
}

func (h *Handler) AddRoutes(r chi.Router) {
	page, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	r.Handle("/", http.FileServer(http.FS(page)))

	r.Get("/health", RestHandler(h.Health))

	r.Route("/canvas", func(r chi.Router) {
		r.Post("/stroke/start", RestHandler(h.StrokeStart))
		r.Post("/stroke/move", RestHandler(h.StrokeMove))
		r.Post("/stroke/end", RestHandler(h.StrokeEnd))
		r.Post("/clear", RestHandler(h.Clear))
		r.Get("/image.png", h.CanvasImage)
	})

	r.Get("/predictions", RestHandler(h.Predictions))
	r.Get("/tensor", RestHandler(h.Tensor))

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", RestHandler(h.Notifications))
		r.Post("/{id}/dismiss", RestHandler(h.Dismiss))
	})

	r.Post("/predict", RestHandler(h.Predict))
	r.Post("/predict/image", RestHandler(h.PredictFromImage))
}

func (h *Handler) Health(r *http.Request) (any, error) {
	models := make(map[string]bool, len(model.Kinds))
	for _, kind := range model.Kinds {
		models[kind.Key()] = h.session.Loaded(kind)
	}
	return HealthResponse{Status: "healthy", Models: models}, nil
}

func (h *Handler) dispatch(r *http.Request, cmd inference.Command) (inference.Snapshot, error) {
	snap, err := h.session.Dispatch(r.Context(), cmd)
	if err != nil {
		return snap, CodedError(http.StatusInternalServerError, err)
	}
	return snap, nil
}

func (h *Handler) StrokeStart(r *http.Request) (any, error) {
	p, err := ParseRequest[canvas.Point](r)
	if err != nil {
		return nil, err
	}
	_, err = h.dispatch(r, inference.StrokeStart{At: p})
	return nil, err
}

func (h *Handler) StrokeMove(r *http.Request) (any, error) {
	p, err := ParseRequest[canvas.Point](r)
	if err != nil {
		return nil, err
	}
	_, err = h.dispatch(r, inference.StrokeMove{At: p})
	return nil, err
}

func (h *Handler) StrokeEnd(r *http.Request) (any, error) {
	snap, err := h.dispatch(r, inference.StrokeEnd{})
	if err != nil {
		return nil, err
	}
	return newPredictionResponse(snap, nil), nil
}

func (h *Handler) Clear(r *http.Request) (any, error) {
	snap, err := h.dispatch(r, inference.Clear{})
	if err != nil {
		return nil, err
	}
	return newPredictionResponse(snap, nil), nil
}

func (h *Handler) CanvasImage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.session.Surface().WritePNG(w); err != nil {
		slog.Error("error encoding canvas", "error", err)
	}
}

func (h *Handler) Predictions(r *http.Request) (any, error) {
	return newPredictionResponse(h.session.Snapshot(), nil), nil
}

func (h *Handler) Tensor(r *http.Request) (any, error) {
	q, err := ParseRequestQueryParams[TensorQuery](r)
	if err != nil {
		return nil, err
	}
	if q.Model == "" {
		q.Model = model.Dense.Key()
	}
	kind, err := model.ParseKind(q.Model)
	if err != nil {
		return nil, CodedError(http.StatusBadRequest, err)
	}

	t, err := h.session.InputTensor(kind)
	if err != nil {
		return nil, CodedError(http.StatusInternalServerError, err)
	}
	return t, nil
}

func (h *Handler) Notifications(r *http.Request) (any, error) {
	return h.toasts.Active(), nil
}

func (h *Handler) Dismiss(r *http.Request) (any, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "invalid notification id: %w", err)
	}
	if !h.toasts.Dismiss(id) {
		return nil, CodedErrorf(http.StatusNotFound, "notification %s not found or not closable", id)
	}
	return nil, nil
}

// Predict scores a raw, already resized 28x28 intensity array with both models.
func (h *Handler) Predict(r *http.Request) (any, error) {
	req, err := ParseRequest[PredictionRequest](r)
	if err != nil {
		return nil, err
	}

	expectedSize := tensor.BaseShape.Size()
	if len(req.Image) != expectedSize {
		return nil, CodedErrorf(http.StatusBadRequest, "expected %d values, got %d", expectedSize, len(req.Image))
	}

	base, err := tensor.FromValues(req.Image)
	if err != nil {
		return nil, CodedError(http.StatusBadRequest, err)
	}

	snap, errs := h.session.Predict(r.Context(), base)
	return newPredictionResponse(snap, errs), nil
}

func (h *Handler) PredictFromImage(r *http.Request) (any, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "failed to parse form")
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "no image file provided, use 'image' as the form field name")
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "invalid image format, supported: JPEG, PNG")
	}

	slog.Info("received image", "filename", header.Filename, "format", format, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	snap, errs, err := h.session.PredictImage(r.Context(), img)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to preprocess image: %w", err)
	}
	return newPredictionResponse(snap, errs), nil
}
