package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"proforma/internal/app"
)

// Numeric fields accept either JSON numbers or decimal strings; json.Number keeps
// the literal so amounts never pass through float64.

type lineBody struct {
	ArticleID string      `json:"article_id"`
	Quantity  json.Number `json:"quantity"`
	Days      json.Number `json:"days"`
	Hours     json.Number `json:"hours"`
}

type feeBody struct {
	Label  string      `json:"label"`
	Amount json.Number `json:"amount"`
}

func toLineInputs(lines []lineBody) []app.OrderLineInput {
	out := make([]app.OrderLineInput, len(lines))
	for i, l := range lines {
		out[i] = app.OrderLineInput{
			ArticleID: l.ArticleID,
			Quantity:  l.Quantity.String(),
			Days:      l.Days.String(),
			Hours:     l.Hours.String(),
		}
	}
	return out
}

func toFeeInputs(fees []feeBody) []app.FeeInput {
	out := make([]app.FeeInput, len(fees))
	for i, f := range fees {
		out[i] = app.FeeInput{Label: f.Label, Amount: f.Amount.String()}
	}
	return out
}

// apiListOrders handles GET /api/companies/{code}/orders.
func (h *Handler) apiListOrders(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	var statusPtr *string
	if statusFilter != "" {
		statusPtr = &statusFilter
	}
	result, err := h.svc.ListOrders(r.Context(), caller(r), statusPtr)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Orders)
}

// apiCreateOrder handles POST /api/companies/{code}/orders.
// Body: { client_ref, order_date?, discount_percent?, fees?, comment?, lines: [{article_id, quantity|days|hours}] }
func (h *Handler) apiCreateOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ClientRef       string      `json:"client_ref"`
		OrderDate       string      `json:"order_date"`
		DiscountPercent json.Number `json:"discount_percent"`
		Fees            []feeBody   `json:"fees"`
		Comment         string      `json:"comment"`
		Lines           []lineBody  `json:"lines"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), caller(r), app.CreateOrderRequest{
		ClientRef:       body.ClientRef,
		OrderDate:       body.OrderDate,
		DiscountPercent: body.DiscountPercent.String(),
		Fees:            toFeeInputs(body.Fees),
		Comment:         body.Comment,
		Lines:           toLineInputs(body.Lines),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result.Order)
}

// apiGetOrder handles GET /api/companies/{code}/orders/{ref}.
func (h *Handler) apiGetOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetOrder(r.Context(), caller(r), chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Order)
}

// apiReplaceOrderLines handles PUT /api/companies/{code}/orders/{ref}/lines.
// Body: { discount_percent?, fees?, comment?, lines }
func (h *Handler) apiReplaceOrderLines(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DiscountPercent json.Number `json:"discount_percent"`
		Fees            []feeBody   `json:"fees"`
		Comment         string      `json:"comment"`
		Lines           []lineBody  `json:"lines"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.ReplaceOrderLines(r.Context(), caller(r), chi.URLParam(r, "ref"), app.ReplaceOrderRequest{
		DiscountPercent: body.DiscountPercent.String(),
		Fees:            toFeeInputs(body.Fees),
		Comment:         body.Comment,
		Lines:           toLineInputs(body.Lines),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Order)
}

// apiDeleteOrder handles DELETE /api/companies/{code}/orders/{ref}.
func (h *Handler) apiDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteOrder(r.Context(), caller(r), chi.URLParam(r, "ref")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiApplyDelivery handles POST /api/companies/{code}/orders/{ref}/deliveries.
// Body: { lines: [{article_id, quantity}], amount_received?, comment? }
func (h *Handler) apiApplyDelivery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Lines []struct {
			ArticleID string      `json:"article_id"`
			Quantity  json.Number `json:"quantity"`
		} `json:"lines"`
		AmountReceived json.Number `json:"amount_received"`
		Comment        string      `json:"comment"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	req := app.DeliveryRequest{
		AmountReceived: body.AmountReceived.String(),
		Comment:        body.Comment,
	}
	for _, l := range body.Lines {
		req.Lines = append(req.Lines, app.DeliveryLineInput{ArticleID: l.ArticleID, Quantity: l.Quantity.String()})
	}

	result, err := h.svc.ApplyDelivery(r.Context(), caller(r), chi.URLParam(r, "ref"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Order)
}

// apiListDeliveries handles GET /api/companies/{code}/orders/{ref}/deliveries.
func (h *Handler) apiListDeliveries(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListDeliveries(r.Context(), caller(r), chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Deliveries)
}

// apiOverrideStatus handles POST /api/companies/{code}/orders/{ref}/status.
// Body: { status }
func (h *Handler) apiOverrideStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.OverrideStatus(r.Context(), caller(r), chi.URLParam(r, "ref"), body.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Order)
}

// apiAllowedDocuments handles GET /api/companies/{code}/orders/{ref}/documents.
func (h *Handler) apiAllowedDocuments(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetAllowedDocuments(r.Context(), caller(r), chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Allowed)
}

// apiGenerateDocument handles GET /api/companies/{code}/orders/{ref}/documents/{kind}.
func (h *Handler) apiGenerateDocument(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GenerateDocument(r.Context(), caller(r), chi.URLParam(r, "ref"), chi.URLParam(r, "kind"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Document)
}

// apiGetInvoice handles GET /api/companies/{code}/orders/{ref}/invoice.
func (h *Handler) apiGetInvoice(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetInvoice(r.Context(), caller(r), chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Invoice)
}
