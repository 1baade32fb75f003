package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"stockmaster/internal/app"
	"stockmaster/internal/core"
)

const usage = "Available: stock, low-stock, operations [status], validate <id> [reservation-id], cancel <id>, expire, reconcile"

// Run executes a one-shot CLI command on behalf of actor, writing output to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, actor app.Actor, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given\n%s", usage)
	}

	switch args[0] {
	case "stock", "s":
		result, err := svc.GetStockLevels(ctx, core.StockLevelFilter{})
		if err != nil {
			return fmt.Errorf("failed to get stock levels: %w", err)
		}
		printStockLevels(out, result.Levels)

	case "low-stock", "low":
		result, err := svc.GetLowStock(ctx)
		if err != nil {
			return fmt.Errorf("failed to get low stock: %w", err)
		}
		printLowStock(out, result.Items)

	case "operations", "ops":
		filter := core.OperationFilter{}
		if len(args) > 1 {
			filter.Status = core.MovementStatus(strings.ToUpper(args[1]))
			if !filter.Status.Valid() {
				return fmt.Errorf("unknown status %q: use DRAFT, VALIDATED or CANCELLED", args[1])
			}
		}
		result, err := svc.ListOperations(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to list operations: %w", err)
		}
		printOperations(out, result.Operations)

	case "validate", "val", "v":
		if len(args) < 2 {
			return fmt.Errorf("usage: app validate <operation-id> [reservation-id]")
		}
		reservationID := ""
		if len(args) > 2 {
			reservationID = args[2]
		}
		result, err := svc.ValidateOperation(ctx, actor, args[1], reservationID)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(out, "%s validated.\n", result.Entry.DocumentNumber)
		printStockLevels(out, result.StockLevels)
		if result.Reservation != nil {
			fmt.Fprintf(out, "Reservation %s fulfilled.\n", result.Reservation.ID)
		}

	case "cancel":
		if len(args) < 2 {
			return fmt.Errorf("usage: app cancel <operation-id>")
		}
		result, err := svc.CancelOperation(ctx, actor, args[1])
		if err != nil {
			return fmt.Errorf("cancel failed: %w", err)
		}
		fmt.Fprintf(out, "%s cancelled.\n", result.Operation.DocumentNumber)

	case "expire":
		result, err := svc.ExpireReservations(ctx)
		if result != nil {
			fmt.Fprintf(out, "%d reservation(s) expired.\n", len(result.Expired))
		}
		if err != nil {
			return fmt.Errorf("expiry sweep incomplete: %w", err)
		}

	case "reconcile", "rec":
		result, err := svc.Reconcile(ctx)
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}
		if len(result.Discrepancies) == 0 {
			fmt.Fprintln(out, "Stock levels agree with ledger history.")
			return nil
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result.Discrepancies)
		return fmt.Errorf("%d stock level(s) disagree with ledger history", len(result.Discrepancies))

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
	return nil
}

func printStockLevels(out io.Writer, levels []core.StockLevel) {
	fmt.Fprintf(out, "%-14s %-22s %12s %12s %12s\n", "SKU", "LOCATION", "ON HAND", "RESERVED", "AVAILABLE")
	fmt.Fprintln(out, strings.Repeat("-", 76))
	for _, l := range levels {
		fmt.Fprintf(out, "%-14s %-22s %12s %12s %12s\n",
			l.ProductSKU, l.LocationName, l.OnHand.String(), l.Reserved.String(), l.Available.String())
	}
}

func printLowStock(out io.Writer, items []core.LowStockItem) {
	if len(items) == 0 {
		fmt.Fprintln(out, "No products below their reorder level.")
		return
	}
	fmt.Fprintf(out, "%-14s %-26s %10s %10s %10s\n", "SKU", "NAME", "ON HAND", "REORDER", "SHORTFALL")
	fmt.Fprintln(out, strings.Repeat("-", 74))
	for _, i := range items {
		fmt.Fprintf(out, "%-14s %-26s %10s %10s %10s\n",
			i.SKUCode, i.Name, i.OnHand.String(), i.ReorderLevel.String(), i.Shortfall.String())
	}
}

func printOperations(out io.Writer, entries []core.LedgerEntry) {
	fmt.Fprintf(out, "%-16s %-9s %-10s %-14s %10s  %s\n", "DOCUMENT", "TYPE", "STATUS", "SKU", "QTY", "ID")
	fmt.Fprintln(out, strings.Repeat("-", 100))
	for _, e := range entries {
		fmt.Fprintf(out, "%-16s %-9s %-10s %-14s %10s  %s\n",
			e.DocumentNumber, e.DocumentType, e.Status, e.ProductSKU, e.Quantity.String(), e.ID)
	}
}
