package web_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"proforma/internal/adapters/web"
	"proforma/internal/app"
	"proforma/internal/core"
	"proforma/internal/store/memory"
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	catalog := memory.NewCatalog()
	clients := memory.NewClients()
	memory.SeedDemo(catalog, clients, "1000")
	svc := app.NewAppService(core.NewOrderService(memory.NewStore(), catalog, clients))
	return web.NewHandler(svc, zap.NewNop(), []string{"http://localhost:3000"})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Actor", "clerk")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var e errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e
}

const createBody = `{
	"client_ref": "CL-01",
	"order_date": "2026-06-01",
	"discount_percent": 10,
	"fees": [{"label": "Delivery", "amount": "20.00"}],
	"lines": [
		{"article_id": "CHAIR", "quantity": 40},
		{"article_id": "STAGE", "days": "2"}
	]
}`

func TestHealth(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateAndFulfillOrderOverHTTP(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodPost, "/api/companies/1000/orders", createBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var o core.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	// 100 + 600 = 700; 10% = 70; + 20
	assert.Equal(t, "650", o.Total.String())
	assert.Equal(t, core.StatusPending, o.Status)

	rec = do(t, h, http.MethodGet, "/api/companies/1000/orders/1/documents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"order_id":1,"status":"pending","kinds":["quote"]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/companies/1000/orders/1/documents/invoice", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "DOCUMENT_NOT_ALLOWED", decodeError(t, rec).Code)

	rec = do(t, h, http.MethodPost, "/api/companies/1000/orders/1/deliveries",
		`{"lines":[{"article_id":"CHAIR","quantity":"40"}],"amount_received":"300","comment":"first drop"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, core.StatusPartial, o.Status)
	assert.Equal(t, "350", o.AmountRemaining.String())

	rec = do(t, h, http.MethodPost, "/api/companies/1000/orders/1/deliveries",
		`{"lines":[{"article_id":"CHAIR","quantity":1}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_QUANTITY", decodeError(t, rec).Code)

	rec = do(t, h, http.MethodGet, "/api/companies/1000/orders/1/invoice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var inv core.Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Regexp(t, `^INV-\d{4}-00001$`, inv.InvoiceNumber)

	rec = do(t, h, http.MethodGet, "/api/companies/1000/orders/1/deliveries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []core.DeliveryEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "clerk", events[0].Actor)

	rec = do(t, h, http.MethodDelete, "/api/companies/1000/orders/1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATE_TRANSITION", decodeError(t, rec).Code)
}

func TestErrorStatusMapping(t *testing.T) {
	h := newServer(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/companies/1000/orders", createBody).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown order", http.MethodGet, "/api/companies/1000/orders/99", "", http.StatusNotFound, "NOT_FOUND"},
		{"other company", http.MethodGet, "/api/companies/2000/orders/1", "", http.StatusNotFound, "NOT_FOUND"},
		{"bad ref", http.MethodGet, "/api/companies/1000/orders/abc", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown client", http.MethodPost, "/api/companies/1000/orders",
			`{"client_ref":"NOPE","lines":[{"article_id":"CHAIR","quantity":1}]}`, http.StatusNotFound, "NOT_FOUND"},
		{"no lines", http.MethodPost, "/api/companies/1000/orders",
			`{"client_ref":"CL-01","lines":[]}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed json", http.MethodPost, "/api/companies/1000/orders", `{"client_ref":`, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown field", http.MethodPost, "/api/companies/1000/orders",
			`{"client":"CL-01"}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"complete unsettled", http.MethodPost, "/api/companies/1000/orders/1/status",
			`{"status":"completed"}`, http.StatusConflict, "INVALID_STATE_TRANSITION"},
		{"unknown status", http.MethodPost, "/api/companies/1000/orders/1/status",
			`{"status":"archived"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown document", http.MethodGet, "/api/companies/1000/orders/1/documents/receipt", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"no invoice yet", http.MethodGet, "/api/companies/1000/orders/1/invoice", "", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			e := decodeError(t, rec)
			assert.Equal(t, tt.code, e.Code)
			assert.NotEmpty(t, e.RequestID)
		})
	}
}

func TestReplaceDeleteAndList(t *testing.T) {
	h := newServer(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/companies/1000/orders", createBody).Code)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/companies/1000/orders", createBody).Code)

	rec := do(t, h, http.MethodPut, "/api/companies/1000/orders/2/lines",
		`{"lines":[{"article_id":"TECH","hours":4}],"comment":"sound only"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var o core.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, "182", o.Total.String())
	assert.Equal(t, "sound only", o.Comment)

	rec = do(t, h, http.MethodPost, "/api/companies/1000/orders/1/status", `{"status":"in_progress"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/companies/1000/orders?status=in_progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []core.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, int64(1), orders[0].ID)

	rec = do(t, h, http.MethodDelete, "/api/companies/1000/orders/2", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/companies/1000/orders", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	assert.Len(t, orders, 1)
}

func TestRequestIDAndCORS(t *testing.T) {
	h := newServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/companies/1000/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("X-Request-ID", "not a valid id!")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEqual(t, "not a valid id!", rec.Header().Get("X-Request-ID"))
}

func TestRequestBodyLimit(t *testing.T) {
	h := newServer(t)
	big := `{"client_ref":"` + strings.Repeat("x", 2<<20) + `"}`
	rec := do(t, h, http.MethodPost, "/api/companies/1000/orders", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "REQUEST_TOO_LARGE", decodeError(t, rec).Code)
}
