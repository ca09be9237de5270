package handlers

import (
	"delivery-batch-service/internal/api/dto"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/services"
	"net/http"
	"strings"
)

type FulfillmentHandler struct {
	Predictor *services.Predictor
}

// Predict estimates fulfillment time for a cart before checkout.
func (h *FulfillmentHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req dto.PredictRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	items := make([]domain.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.LineItem{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			PrepMinutes: it.PrepMinutes,
		})
	}
	method := domain.ShippingMethod(strings.ToLower(strings.TrimSpace(req.ShippingMethod)))

	pred, err := h.Predictor.Predict(items, method, req.DestinationZip)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, pred)
}
