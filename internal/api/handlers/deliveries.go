package handlers

import (
	"delivery-batch-service/internal/adapters/storage"
	"delivery-batch-service/internal/api/dto"
	"delivery-batch-service/internal/ports"
	"delivery-batch-service/internal/services"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxPhotoBytes = 10 << 20

type DeliveryHandler struct {
	Lifecycle *services.LifecycleManager
	Batches   *services.BatchService
	// Photos is optional; without it multipart photo uploads are rejected.
	Photos ports.PhotoStore
}

// Deliver confirms the stop for {orderId}. The body is either JSON
// {photo_ref, notes} or multipart/form-data with a "photo" file and "notes".
func (h *DeliveryHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if orderID == "" {
		writeError(w, r, http.StatusBadRequest, "order id is required")
		return
	}

	var in services.ConfirmationInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch {
	case mediaType == "multipart/form-data":
		var ok bool
		if in, ok = h.readMultipart(w, r, orderID); !ok {
			return
		}
	case r.ContentLength != 0:
		var req dto.DeliverRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		in = services.ConfirmationInput{PhotoRef: req.PhotoRef, Notes: req.Notes}
	}

	conf, err := h.Lifecycle.ConfirmOrderDelivery(r.Context(), orderID, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, dto.DeliveryResponse{Confirmation: conf})
}

func (h *DeliveryHandler) readMultipart(w http.ResponseWriter, r *http.Request, orderID string) (services.ConfirmationInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes+1<<20)
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart body")
		return services.ConfirmationInput{}, false
	}
	in := services.ConfirmationInput{
		Notes:    r.FormValue("notes"),
		PhotoRef: r.FormValue("photo_ref"),
	}

	file, header, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return in, true
	}
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid photo upload")
		return services.ConfirmationInput{}, false
	}
	defer file.Close()

	if h.Photos == nil {
		writeError(w, r, http.StatusNotImplemented, "photo storage is not configured")
		return services.ConfirmationInput{}, false
	}

	// The owning batch names the object key; a missing batch fails the same way confirmation would.
	batch, err := h.Batches.FindByOrderID(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, r, err)
		return services.ConfirmationInput{}, false
	}

	contentType := header.Header.Get("Content-Type")
	ref, err := h.Photos.Put(r.Context(), storage.PhotoKey(batch.ID, orderID, header.Filename), file, contentType)
	if err != nil {
		zap.L().Error("photo upload failed", zap.String("order_id", orderID), zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "photo upload failed")
		return services.ConfirmationInput{}, false
	}
	in.PhotoRef = ref
	return in, true
}
