package cli

import (
	"fmt"
	"io"
	"strings"

	"proforma/internal/app"
	"proforma/internal/core"
)

func printOrder(w io.Writer, o *core.Order) {
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  ORDER %-6d %-20s %s\n", o.ID, strings.ToUpper(string(o.Status)), o.OrderDate)
	fmt.Fprintf(w, "  Client   : %s  %s\n", o.ClientRef, o.ClientName)
	if o.Comment != "" {
		fmt.Fprintf(w, "  Comment  : %s\n", o.Comment)
	}
	fmt.Fprintln(w, strings.Repeat("-", 78))
	fmt.Fprintf(w, "  %-10s %-24s %-5s %10s %10s %10s\n", "ARTICLE", "LABEL", "KIND", "PRICE", "ORDERED", "DELIVERED")
	for _, l := range o.Lines {
		fmt.Fprintf(w, "  %-10s %-24s %-5s %10s %10s %10s\n",
			l.ArticleID, truncate(l.ArticleLabel, 24), l.Kind,
			l.UnitPrice.StringFixed(2), l.OrderedQuantity.String(), l.DeliveredQuantity.String())
	}
	fmt.Fprintln(w, strings.Repeat("-", 78))
	fmt.Fprintf(w, "  %-20s %12s\n", "Subtotal", o.Subtotal.StringFixed(2))
	if !o.DiscountAmount.IsZero() {
		fmt.Fprintf(w, "  %-20s %12s\n", "Discount "+o.DiscountPercent.String()+"%", "-"+o.DiscountAmount.StringFixed(2))
	}
	for _, f := range o.Fees {
		fmt.Fprintf(w, "  %-20s %12s\n", truncate(f.Label, 20), f.Amount.StringFixed(2))
	}
	fmt.Fprintf(w, "  %-20s %12s\n", "Total", o.Total.StringFixed(2))
	fmt.Fprintf(w, "  %-20s %12s\n", "Paid", o.AmountPaid.StringFixed(2))
	fmt.Fprintf(w, "  %-20s %12s\n", "Remaining", o.AmountRemaining.StringFixed(2))
	fmt.Fprintln(w, strings.Repeat("=", 78))
}

func printOrderList(w io.Writer, result *app.OrderListResult) {
	if len(result.Orders) == 0 {
		fmt.Fprintf(w, "No orders for company %s.\n", result.CompanyCode)
		return
	}
	fmt.Fprintf(w, "  %-6s %-12s %-10s %-12s %12s %12s\n", "ID", "STATUS", "CLIENT", "DATE", "TOTAL", "REMAINING")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, o := range result.Orders {
		fmt.Fprintf(w, "  %-6d %-12s %-10s %-12s %12s %12s\n",
			o.ID, o.Status, o.ClientRef, o.OrderDate, o.Total.StringFixed(2), o.AmountRemaining.StringFixed(2))
	}
}

func printInvoice(w io.Writer, inv *core.Invoice) {
	fmt.Fprintf(w, "  INVOICE %s (%s) for order %d\n", inv.InvoiceNumber, inv.Status, inv.OrderID)
	fmt.Fprintln(w, strings.Repeat("-", 62))
	for _, l := range inv.Lines {
		fmt.Fprintf(w, "  %-10s %-24s %8s x %10s\n", l.ArticleID, truncate(l.ArticleLabel, 24), l.Quantity.String(), l.UnitPrice.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("-", 62))
	fmt.Fprintf(w, "  %-20s %12s\n", "Total", inv.Total.StringFixed(2))
}

func printDeliveries(w io.Writer, result *app.DeliveryListResult) {
	if len(result.Deliveries) == 0 {
		fmt.Fprintf(w, "No deliveries recorded for order %d.\n", result.OrderID)
		return
	}
	for _, e := range result.Deliveries {
		parts := make([]string, len(e.Deltas))
		for i, d := range e.Deltas {
			parts[i] = d.ArticleID + "=" + d.Quantity.String()
		}
		fmt.Fprintf(w, "  %s  %-10s %s -> %s  paid %s  [%s]",
			e.CreatedAt.Format("2006-01-02 15:04"), e.Actor, e.PreviousStatus, e.ResultStatus,
			e.AmountReceived.StringFixed(2), strings.Join(parts, ", "))
		if e.Comment != "" {
			fmt.Fprintf(w, "  %q", e.Comment)
		}
		fmt.Fprintln(w)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
