package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/kalrav/shipgrid/pkg/api"
	"github.com/kalrav/shipgrid/pkg/stream"
)

func runOptimizeCommand(args []string) error {
	fs := flag.NewFlagSet("optimize", flag.ContinueOnError)
	var g globalOptions
	g.register(fs)
	weight := fs.Float64("weight", 0, "actual weight in grams, for shipping estimates")
	dims := fs.String("dims", "", "package dimensions in cm as LxWxH, e.g. 30x25x3")
	promptVariant := fs.String("prompt-variant", "", "server-side prompt variant override")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: shipgrid optimize <image> [flags]")
	}
	imagePath := fs.Arg(0)

	a, err := newApp(&g)
	if err != nil {
		return err
	}
	defer a.close()

	file, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("cannot open image: %w", err)
	}
	defer file.Close()

	ctx, stop := signalContext()
	defer stop()

	req := api.OptimizeRequest{
		File:          file,
		Filename:      filepath.Base(imagePath),
		ContentType:   contentTypeFor(imagePath),
		DimensionsCM:  *dims,
		PromptVariant: *promptVariant,
	}
	if *weight > 0 {
		req.ActualWeightG = weight
	}

	sess := stream.NewSession(a.client, a.logger)
	if !g.jsonOutput {
		a.out.Info("Optimizing %s ...", filepath.Base(imagePath))
		sess.Observe(func(st stream.State) {
			if st.Total > 0 {
				a.out.Progress(st.Completed, st.Total, st.Message)
			} else {
				a.out.StatusLine("%s... %s", st.Stage, st.Message)
			}
		})
	}

	final, err := sess.Run(ctx, req)
	if !g.jsonOutput {
		a.out.ProgressDone()
	}

	switch {
	case err == nil:
		if g.jsonOutput {
			return printJSON(optimizeSummary(final))
		}
		printOptimizeResult(a, final)
		return nil
	case errors.Is(err, context.Canceled):
		a.out.Warn("optimization cancelled")
		return withExitCode(err, 130)
	default:
		a.out.WarningList("Variants with problems:", final.RecoverableErrors)
		return err
	}
}

func printOptimizeResult(a *app, st stream.State) {
	if st.Result != nil {
		r := st.Result
		a.out.Success("optimized %d/%d variants in %.1fs", r.Successful, r.Total, float64(r.ProcessingTimeMS)/1000)
		if r.GridURL != "" {
			a.out.KeyValue("Grid", r.GridURL)
		}
		if r.OriginalURL != "" {
			a.out.KeyValue("Original", r.OriginalURL)
		}
	}

	if len(st.Variants) > 0 {
		a.out.Newline()
		a.out.Bold("Variants:")
		for _, v := range st.Variants {
			label := v.VariantLabel
			if label == "" {
				label = fmt.Sprintf("%s %d", v.VariantType, v.Index)
			}
			line := fmt.Sprintf("%s  %s", label, v.URL)
			if v.ShippingCost != nil {
				line += fmt.Sprintf("  (shipping ₹%.0f)", *v.ShippingCost)
			}
			a.out.List([]string{line})
		}
	}

	a.out.WarningList("Some variants had problems:", st.RecoverableErrors)
}

// optimizeSummary shapes the final state for --json output.
func optimizeSummary(st stream.State) map[string]any {
	summary := map[string]any{
		"stage":              st.Stage.String(),
		"progress":           st.Progress,
		"variants":           st.Variants,
		"recoverable_errors": st.RecoverableErrors,
	}
	if st.Result != nil {
		summary["result"] = st.Result
	}
	return summary
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
