package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"proforma/internal/app"
	"proforma/internal/observability"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, logger *zap.Logger, allowedOrigins []string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(observability.TraceMiddleware)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/companies/{code}/orders", h.apiListOrders)
		r.Post("/api/companies/{code}/orders", h.apiCreateOrder)
		r.Get("/api/companies/{code}/orders/{ref}", h.apiGetOrder)
		r.Delete("/api/companies/{code}/orders/{ref}", h.apiDeleteOrder)
		r.Put("/api/companies/{code}/orders/{ref}/lines", h.apiReplaceOrderLines)
		r.Post("/api/companies/{code}/orders/{ref}/status", h.apiOverrideStatus)
		r.Get("/api/companies/{code}/orders/{ref}/deliveries", h.apiListDeliveries)
		r.Post("/api/companies/{code}/orders/{ref}/deliveries", h.apiApplyDelivery)
		r.Get("/api/companies/{code}/orders/{ref}/documents", h.apiAllowedDocuments)
		r.Get("/api/companies/{code}/orders/{ref}/documents/{kind}", h.apiGenerateDocument)
		r.Get("/api/companies/{code}/orders/{ref}/invoice", h.apiGetInvoice)
	})

	h.router = r
	return r
}

// health reports liveness only; it does not touch the store.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// caller builds the app.Caller for the request from the {code} URL parameter,
// the X-Actor header and the request id.
func caller(r *http.Request) app.Caller {
	return app.Caller{
		CompanyCode: chi.URLParam(r, "code"),
		Actor:       actorFromRequest(r),
		RequestID:   requestIDFromContext(r.Context()),
	}
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
