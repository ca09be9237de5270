package handlers

import (
	"delivery-batch-service/internal/api/dto"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/services"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// BatchHandler serves the delivery batch endpoints. {ref} is a batch id or a
// weekday name naming that day's upcoming batch.
type BatchHandler struct {
	Batches   *services.BatchService
	Lifecycle *services.LifecycleManager
	Manifests *services.ManifestGenerator
	Now       func() time.Time
}

func (h *BatchHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	optimize := false
	if raw := r.URL.Query().Get("optimize"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "optimize must be a boolean")
			return
		}
		optimize = v
	}

	batches, warnings, err := h.Batches.ListCurrentWeek(r.Context(), optimize)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res := dto.ListBatchesResponse{
		WeekStart: domain.WeekStart(h.now()).Format(time.DateOnly),
		Batches:   make([]dto.BatchResponse, 0, len(batches)),
		Warnings:  warnings,
	}
	for _, b := range batches {
		res.Batches = append(res.Batches, dto.NewBatchResponse(b))
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (h *BatchHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	report, err := h.Batches.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.Batches.Get(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewBatchResponse(b))
}

// Optimize routes one batch on demand. A provider failure still returns the
// batch, in its stored order, with the failure as a warning.
func (h *BatchHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	b, err := h.Batches.Optimize(r.Context(), chi.URLParam(r, "ref"))
	if err != nil && !errors.Is(err, domain.ErrRouteOptimizationFailed) {
		writeServiceError(w, r, err)
		return
	}

	res := dto.ListBatchesResponse{
		WeekStart: domain.WeekStart(b.DeliveryDate).Format(time.DateOnly),
		Batches:   []dto.BatchResponse{dto.NewBatchResponse(b)},
		Warnings:  []services.OptimizationWarning{},
	}
	if err != nil {
		res.Warnings = append(res.Warnings, services.OptimizationWarning{BatchID: b.ID, Message: err.Error()})
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *BatchHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "pdf" {
		writeError(w, r, http.StatusBadRequest, "format must be json or pdf")
		return
	}

	b, err := h.Batches.Get(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	m, err := h.Manifests.Generate(b)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var (
		body        []byte
		contentType string
	)
	if format == "pdf" {
		body, err = services.RenderManifestPDF(m)
		contentType = "application/pdf"
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "manifest-"+m.BatchID+".pdf"))
	} else {
		body, err = services.RenderManifestJSON(m)
		contentType = "application/json"
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *BatchHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := h.Batches.ResolveID(chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	report, err := h.Lifecycle.Status(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

func (h *BatchHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.StatusUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	target, ok := domain.ParseBatchStatus(req.Status)
	if !ok {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown status %q", req.Status))
		return
	}

	id, err := h.Batches.ResolveID(chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	b, err := h.Lifecycle.Transition(r.Context(), id, target, req.DriverAssignment())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, services.NewStatusReport(b))
}

func (h *BatchHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := h.Batches.ResolveID(chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	b, err := h.Lifecycle.Archive(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, services.NewStatusReport(b))
}
