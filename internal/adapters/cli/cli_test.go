package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proforma/internal/adapters/cli"
	"proforma/internal/app"
	"proforma/internal/core"
	"proforma/internal/store/memory"
)

type harness struct {
	svc    app.ApplicationService
	caller app.Caller
}

func newHarness() *harness {
	catalog := memory.NewCatalog()
	clients := memory.NewClients()
	memory.SeedDemo(catalog, clients, "1000")
	return &harness{
		svc:    app.NewAppService(core.NewOrderService(memory.NewStore(), catalog, clients)),
		caller: app.Caller{CompanyCode: "1000", Actor: "cli"},
	}
}

func (h *harness) run(args ...string) (string, error) {
	var out bytes.Buffer
	err := cli.Run(context.Background(), h.svc, h.caller, args, &out)
	return out.String(), err
}

func TestCreateDeliverAndInspect(t *testing.T) {
	h := newHarness()

	out, err := h.run("create", "--client", "CL-01", "--date", "2026-05-02",
		"--discount", "10", "--fee", "Delivery=20",
		"--line", "CHAIR=40", "--line", "STAGE=2d", "--line", "TECH=4h")
	require.NoError(t, err)
	assert.Contains(t, out, "ORDER 1")
	assert.Contains(t, out, "PENDING")
	// 100 + 600 + 182 = 882; 10% = 88.20; + 20
	assert.Contains(t, out, "813.80")

	out, err = h.run("deliver", "1", "--line", "CHAIR=40", "--paid", "400", "--comment", "chairs")
	require.NoError(t, err)
	assert.Contains(t, out, "PARTIAL")
	assert.Contains(t, out, "413.80")

	out, err = h.run("docs", "1")
	require.NoError(t, err)
	assert.Equal(t, "Order 1 (partial): quote, invoice, delivery_note\n", out)

	out, err = h.run("doc", "1", "delivery_note")
	require.NoError(t, err)
	var view core.DocumentView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "CHAIR", view.Lines[0].ArticleID)

	out, err = h.run("invoice", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "-00001 (open)")

	out, err = h.run("history", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "pending -> partial")
	assert.Contains(t, out, "CHAIR=40")
	assert.Contains(t, out, `"chairs"`)

	out, err = h.run("list", "--status", "partial")
	require.NoError(t, err)
	assert.Contains(t, out, "CL-01")
}

func TestReplaceStatusAndDelete(t *testing.T) {
	h := newHarness()
	_, err := h.run("create", "--client", "CL-02", "--line", "TABLE=5")
	require.NoError(t, err)

	out, err := h.run("replace", "1", "--line", "TENT=1d", "--comment", "tent instead")
	require.NoError(t, err)
	assert.Contains(t, out, "450.00")
	assert.Contains(t, out, "tent instead")

	out, err = h.run("status", "1", "in_progress")
	require.NoError(t, err)
	assert.Contains(t, out, "IN_PROGRESS")

	out, err = h.run("delete", "1")
	require.NoError(t, err)
	assert.Equal(t, "Order 1 deleted.\n", out)

	out, err = h.run("list")
	require.NoError(t, err)
	assert.Equal(t, "No orders for company 1000.\n", out)
}

func TestExitCodes(t *testing.T) {
	h := newHarness()
	_, err := h.run("create", "--client", "CL-01", "--line", "CHAIR=1")
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no command", nil, 2},
		{"unknown command", []string{"frobnicate"}, 2},
		{"missing ref", []string{"show"}, 2},
		{"bad flag", []string{"list", "--colour"}, 2},
		{"bad line flag", []string{"create", "--line", "CHAIR"}, 2},
		{"validation", []string{"deliver", "1", "--paid", "-5"}, 3},
		{"over delivery", []string{"deliver", "1", "--line", "CHAIR=2"}, 3},
		{"not found", []string{"show", "42"}, 4},
		{"document not allowed", []string{"doc", "1", "invoice"}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run(tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, cli.ExitCode(err))
		})
	}

	assert.Equal(t, 0, cli.ExitCode(nil))
	assert.Equal(t, 1, cli.ExitCode(errors.New("connection refused")))
}
