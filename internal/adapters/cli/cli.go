package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"proforma/internal/app"
	"proforma/internal/core"
)

// ErrUsage is returned for unknown commands and malformed arguments.
var ErrUsage = errors.New("usage error")

const usage = `Commands:
  create  --client REF [--date YYYY-MM-DD] [--discount PCT] [--fee LABEL=AMOUNT]... [--comment TEXT] --line ARTICLE=QTY...
  replace REF [--discount PCT] [--fee LABEL=AMOUNT]... [--comment TEXT] --line ARTICLE=QTY...
  show    REF
  list    [--status STATUS]
  deliver REF [--line ARTICLE=QTY]... [--paid AMOUNT] [--comment TEXT]
  history REF
  status  REF STATUS
  docs    REF
  doc     REF KIND
  invoice REF
  delete  REF
  migrate

Line quantities take a d suffix for day-priced and an h suffix for hour-priced articles (TENT=2d, TECH=6h).`

// Run executes a one-shot CLI command against svc and writes its output to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, caller app.Caller, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given\n%s", ErrUsage, usage)
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "create", "new":
		fs, lines, fees := newOrderFlags("create")
		client := fs.String("client", "", "client reference")
		date := fs.String("date", "", "order date (YYYY-MM-DD), defaults to today")
		discount := fs.String("discount", "", "discount percent")
		comment := fs.String("comment", "", "free-text comment")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		result, err := svc.CreateOrder(ctx, caller, app.CreateOrderRequest{
			ClientRef:       *client,
			OrderDate:       *date,
			DiscountPercent: *discount,
			Fees:            fees.inputs,
			Comment:         *comment,
			Lines:           lines.inputs,
		})
		if err != nil {
			return err
		}
		printOrder(out, result.Order)

	case "replace":
		ref, rest, err := takeRef(rest)
		if err != nil {
			return err
		}
		fs, lines, fees := newOrderFlags("replace")
		discount := fs.String("discount", "", "discount percent")
		comment := fs.String("comment", "", "free-text comment")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		result, err := svc.ReplaceOrderLines(ctx, caller, ref, app.ReplaceOrderRequest{
			DiscountPercent: *discount,
			Fees:            fees.inputs,
			Comment:         *comment,
			Lines:           lines.inputs,
		})
		if err != nil {
			return err
		}
		printOrder(out, result.Order)

	case "show", "get":
		ref, _, err := takeRef(rest)
		if err != nil {
			return err
		}
		result, err := svc.GetOrder(ctx, caller, ref)
		if err != nil {
			return err
		}
		printOrder(out, result.Order)

	case "list", "ls":
		fs := flag.NewFlagSet("list", flag.ContinueOnError)
		status := fs.String("status", "", "filter by status")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		result, err := svc.ListOrders(ctx, caller, status)
		if err != nil {
			return err
		}
		printOrderList(out, result)

	case "deliver":
		ref, rest, err := takeRef(rest)
		if err != nil {
			return err
		}
		fs := flag.NewFlagSet("deliver", flag.ContinueOnError)
		var deltas deltaFlag
		fs.Var(&deltas, "line", "ARTICLE=QTY delivered now (repeatable)")
		paid := fs.String("paid", "", "amount received with this delivery")
		comment := fs.String("comment", "", "free-text comment")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		result, err := svc.ApplyDelivery(ctx, caller, ref, app.DeliveryRequest{
			Lines:          deltas.inputs,
			AmountReceived: *paid,
			Comment:        *comment,
		})
		if err != nil {
			return err
		}
		printOrder(out, result.Order)

	case "history":
		ref, _, err := takeRef(rest)
		if err != nil {
			return err
		}
		result, err := svc.ListDeliveries(ctx, caller, ref)
		if err != nil {
			return err
		}
		printDeliveries(out, result)

	case "status":
		if len(rest) < 2 {
			return fmt.Errorf("%w: status REF STATUS", ErrUsage)
		}
		result, err := svc.OverrideStatus(ctx, caller, rest[0], rest[1])
		if err != nil {
			return err
		}
		printOrder(out, result.Order)

	case "docs":
		ref, _, err := takeRef(rest)
		if err != nil {
			return err
		}
		result, err := svc.GetAllowedDocuments(ctx, caller, ref)
		if err != nil {
			return err
		}
		kinds := make([]string, len(result.Allowed.Kinds))
		for i, k := range result.Allowed.Kinds {
			kinds[i] = string(k)
		}
		if len(kinds) == 0 {
			kinds = []string{"(none)"}
		}
		fmt.Fprintf(out, "Order %d (%s): %s\n", result.Allowed.OrderID, result.Allowed.Status, strings.Join(kinds, ", "))

	case "doc":
		if len(rest) < 2 {
			return fmt.Errorf("%w: doc REF KIND", ErrUsage)
		}
		result, err := svc.GenerateDocument(ctx, caller, rest[0], rest[1])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Document)

	case "invoice", "inv":
		ref, _, err := takeRef(rest)
		if err != nil {
			return err
		}
		result, err := svc.GetInvoice(ctx, caller, ref)
		if err != nil {
			return err
		}
		printInvoice(out, result.Invoice)

	case "delete", "rm":
		ref, _, err := takeRef(rest)
		if err != nil {
			return err
		}
		if err := svc.DeleteOrder(ctx, caller, ref); err != nil {
			return err
		}
		fmt.Fprintf(out, "Order %s deleted.\n", ref)

	case "help", "-h", "--help":
		fmt.Fprintln(out, usage)

	default:
		return fmt.Errorf("%w: unknown command %q\n%s", ErrUsage, cmd, usage)
	}
	return nil
}

// ExitCode maps an error returned by Run onto a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, ErrUsage) {
		return 2
	}
	switch core.KindOf(err) {
	case core.KindValidation, core.KindInvalidQuantity:
		return 3
	case core.KindNotFound:
		return 4
	case core.KindInvalidTransition, core.KindConcurrency, core.KindDocumentNotAllowed:
		return 5
	}
	return 1
}

func takeRef(args []string) (string, []string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", nil, fmt.Errorf("%w: order reference required", ErrUsage)
	}
	return args[0], args[1:], nil
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUsage, fs.Name(), err)
	}
	return nil
}

func newOrderFlags(name string) (*flag.FlagSet, *lineFlag, *feeFlag) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	lines := &lineFlag{}
	fees := &feeFlag{}
	fs.Var(lines, "line", "ARTICLE=QTY, ARTICLE=Nd or ARTICLE=Nh (repeatable)")
	fs.Var(fees, "fee", "LABEL=AMOUNT (repeatable)")
	return fs, lines, fees
}

func splitPair(v string) (string, string, error) {
	k, val, ok := strings.Cut(v, "=")
	k, val = strings.TrimSpace(k), strings.TrimSpace(val)
	if !ok || k == "" || val == "" {
		return "", "", fmt.Errorf("expected KEY=VALUE, got %q", v)
	}
	return k, val, nil
}

// lineFlag collects --line ARTICLE=QTY values.
type lineFlag struct{ inputs []app.OrderLineInput }

func (f *lineFlag) String() string { return "" }

func (f *lineFlag) Set(v string) error {
	article, qty, err := splitPair(v)
	if err != nil {
		return err
	}
	in := app.OrderLineInput{ArticleID: article}
	switch {
	case strings.HasSuffix(qty, "d"):
		in.Days = strings.TrimSuffix(qty, "d")
	case strings.HasSuffix(qty, "h"):
		in.Hours = strings.TrimSuffix(qty, "h")
	default:
		in.Quantity = qty
	}
	f.inputs = append(f.inputs, in)
	return nil
}

// feeFlag collects --fee LABEL=AMOUNT values.
type feeFlag struct{ inputs []app.FeeInput }

func (f *feeFlag) String() string { return "" }

func (f *feeFlag) Set(v string) error {
	label, amount, err := splitPair(v)
	if err != nil {
		return err
	}
	f.inputs = append(f.inputs, app.FeeInput{Label: label, Amount: amount})
	return nil
}

// deltaFlag collects --line ARTICLE=QTY delivery quantities; suffixes are accepted
// for symmetry with order lines and ignored.
type deltaFlag struct{ inputs []app.DeliveryLineInput }

func (f *deltaFlag) String() string { return "" }

func (f *deltaFlag) Set(v string) error {
	article, qty, err := splitPair(v)
	if err != nil {
		return err
	}
	qty = strings.TrimRight(qty, "dh")
	f.inputs = append(f.inputs, app.DeliveryLineInput{ArticleID: article, Quantity: qty})
	return nil
}
