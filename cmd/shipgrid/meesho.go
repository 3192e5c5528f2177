package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/kalrav/shipgrid/pkg/api"
)

func runShippingCostCommand(args []string) error {
	fs := flag.NewFlagSet("shipping-cost", flag.ContinueOnError)
	var g globalOptions
	g.register(fs)
	price := fs.Float64("price", 0, "listing price in INR")
	sscat := fs.Int("sscat", 0, "Meesho sub-sub-category ID (see 'shipgrid categories')")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *price <= 0 {
		return fmt.Errorf("--price is required and must be positive")
	}
	if *sscat <= 0 {
		return fmt.Errorf("--sscat is required (see 'shipgrid categories')")
	}

	a, err := newApp(&g)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	result, err := a.client.ShippingCost(ctx, api.ShippingCostRequest{Price: *price, SscatID: *sscat})
	if err != nil {
		return err
	}
	if g.jsonOutput {
		return printJSON(result)
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "shipping cost unavailable"
		}
		return fmt.Errorf("%s", msg)
	}

	a.out.Header(fmt.Sprintf("Fee estimate at ₹%.0f", *price))
	printFee(a, "Shipping", result.ShippingCharges)
	printFee(a, "Commission", result.CommissionFees)
	printFee(a, "GST", result.GST)
	printFee(a, "Transfer price", result.TransferPrice)
	printFee(a, "Total", result.TotalPrice)
	if result.DuplicatePID != "" {
		a.out.Dim("estimated against existing listing %s", result.DuplicatePID)
	}
	return nil
}

func printFee(a *app, label string, v *float64) {
	if v == nil {
		return
	}
	a.out.KeyValue(label, fmt.Sprintf("₹%.2f", *v))
}

func runCategoriesCommand(args []string) error {
	fs := flag.NewFlagSet("categories", flag.ContinueOnError)
	var g globalOptions
	g.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(&g)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	categories, err := a.client.Categories(ctx)
	if err != nil {
		return err
	}
	if g.jsonOutput {
		return printJSON(categories)
	}

	for _, c := range categories {
		a.out.Println("%7d  %s", c.ID, c.Breadcrumb)
	}
	if len(categories) == 0 {
		a.out.Dim("no categories returned")
	}
	return nil
}

func runHistoryCommand(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	var g globalOptions
	g.register(fs)
	limit := fs.Int("limit", 20, "maximum number of entries")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(&g)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	entries, err := a.client.History(ctx, *limit)
	if err != nil {
		return err
	}
	if g.jsonOutput {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		a.out.Dim("no processed images yet")
		return nil
	}

	for _, e := range entries {
		when := ""
		if e.CreatedAt != nil {
			when = e.CreatedAt.Format(time.DateTime)
		}
		a.out.Println("%-26s  %-10s  %-19s  %s", e.ID, e.Status, when, e.OriginalFilename)
	}
	return nil
}

func runResultsCommand(args []string) error {
	fs := flag.NewFlagSet("results", flag.ContinueOnError)
	var g globalOptions
	g.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: shipgrid results <image-id>")
	}

	a, err := newApp(&g)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	result, err := a.client.ImageResults(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if g.jsonOutput {
		return printJSON(result)
	}

	a.out.Header(result.OriginalFilename)
	a.out.KeyValue("ID", result.ID)
	a.out.KeyValue("Status", result.Status)
	if result.GridURL != "" {
		a.out.KeyValue("Grid", result.GridURL)
	}
	if result.ProcessingTimeMS > 0 {
		a.out.KeyValue("Processed in", fmt.Sprintf("%.1fs", float64(result.ProcessingTimeMS)/1000))
	}
	if result.ShippingCostINR != nil {
		a.out.KeyValue("Shipping", fmt.Sprintf("₹%.0f", *result.ShippingCostINR))
	}
	if result.ErrorMessage != "" {
		a.out.Error("%s", result.ErrorMessage)
	}
	return nil
}
