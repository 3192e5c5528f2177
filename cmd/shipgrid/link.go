package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/kalrav/shipgrid/pkg/api"
	sgerrors "github.com/kalrav/shipgrid/pkg/errors"
	"github.com/kalrav/shipgrid/pkg/link"
	"github.com/kalrav/shipgrid/pkg/status"
	"github.com/kalrav/shipgrid/pkg/terminal"
)

func runLinkCommand(args []string) error {
	fs := flag.NewFlagSet("link", flag.ContinueOnError)
	var g globalOptions
	g.register(fs)
	manual := fs.Bool("manual", false, "enter dashboard credentials by hand instead of the browser flow")
	email := fs.String("email", "", "Meesho login email, autofilled into the hosted browser")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(&g)
	if err != nil {
		return err
	}
	defer a.close()

	if *manual {
		return runManualLink(a)
	}
	return runBrowserLink(a, *email)
}

// runBrowserLink drives the hosted browser login: the server opens a real
// browser, the user logs in there, and the runner captures the session.
func runBrowserLink(a *app, email string) error {
	creds := api.LoginCredentials{Email: email}
	if email != "" {
		password, err := a.out.PromptSecret("Meesho password (left empty to type in the browser)")
		if err != nil {
			return err
		}
		creds.Password = password
	}

	ctx, stop := signalContext()
	defer stop()

	orch := link.NewOrchestrator(a.client, a.logger, link.Options{
		PollInterval: a.cfg.Link.PollInterval,
		Timeout:      a.cfg.Link.Timeout,
	})

	spinner := terminal.NewSpinner(link.StatusPending.Message())
	orch.Observe(func(st link.Status) {
		spinner.SetMessage(st.Message())
	})
	spinner.Start()

	// Ctrl-C cancels ctx; the orchestrator turns that into a remote cancel
	// and a Cancelled result rather than killing the process mid-poll.
	final, err := orch.Start(ctx, creds)
	switch {
	case err == nil:
		spinner.StopWithSuccess(fmt.Sprintf("Account linked (supplier %s)", final.SupplierID))
		a.status.MarkLinked(final.SupplierID)
		return nil
	case sgerrors.IsCancellation(err):
		spinner.StopWithWarning("Linking cancelled")
		return withExitCode(err, 130)
	default:
		msg := final.ErrorMessage
		if msg == "" {
			msg = err.Error()
		}
		spinner.StopWithError(msg)
		return err
	}
}

// runManualLink collects dashboard credentials directly, for users who
// cannot run the browser flow.
func runManualLink(a *app) error {
	a.out.Info("Enter the values from your Meesho supplier dashboard.")

	supplierID := a.out.Prompt("Supplier ID", "")
	if supplierID == "" {
		return fmt.Errorf("supplier ID is required")
	}
	identifier := a.out.Prompt("Identifier", "")
	if identifier == "" {
		return fmt.Errorf("identifier is required")
	}
	connectSID, err := a.out.PromptSecret("connect.sid cookie")
	if err != nil {
		return err
	}
	if connectSID == "" {
		return fmt.Errorf("connect.sid cookie is required")
	}
	browserID := a.out.Prompt("Browser ID (optional)", "")

	ctx, stop := signalContext()
	defer stop()

	result, err := a.client.Link(ctx, api.ManualCredentials{
		SupplierID: supplierID,
		Identifier: identifier,
		ConnectSID: connectSID,
		BrowserID:  browserID,
	})
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("linking rejected: %s", result.Message)
	}

	a.out.Success("Account linked (supplier %s)", supplierID)
	a.status.MarkLinked(supplierID)
	return nil
}

func runUnlinkCommand(args []string) error {
	fs := flag.NewFlagSet("unlink", flag.ContinueOnError)
	var g globalOptions
	g.register(fs)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(&g)
	if err != nil {
		return err
	}
	defer a.close()

	if !*yes && !a.out.Confirm("Remove the stored Meesho link?", false) {
		a.out.Dim("aborted")
		return nil
	}

	ctx, stop := signalContext()
	defer stop()

	result, err := a.client.Unlink(ctx)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("unlink failed: %s", result.Message)
	}

	a.status.MarkUnlinked()
	a.out.Success("Account unlinked")
	return nil
}

func runStatusCommand(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
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

	snap, err := a.status.FetchStatus(ctx)
	if err != nil {
		return err
	}

	if g.jsonOutput {
		return printJSON(statusSummary(snap))
	}

	a.out.Header("Account status")
	a.out.KeyValue("Linked", yesNoUnknown(snap.Linked))
	if snap.SupplierID != "" {
		a.out.KeyValue("Supplier", snap.SupplierID)
	}
	if snap.LinkedAt != nil {
		a.out.KeyValue("Linked at", snap.LinkedAt.Format(time.RFC1123))
	}
	if snap.Linked != nil && *snap.Linked {
		a.out.KeyValue("Session", yesNoUnknown(snap.SessionValid))
		if snap.SessionValid != nil && !*snap.SessionValid {
			msg := snap.ExpiredMessage
			if msg == "" {
				msg = "session expired; run 'shipgrid link' to re-link"
			}
			a.out.Warn("%s", msg)
		}
	}
	return nil
}

func statusSummary(snap status.Snapshot) map[string]any {
	summary := map[string]any{
		"linked":        snap.Linked,
		"session_valid": snap.SessionValid,
	}
	if snap.SupplierID != "" {
		summary["supplier_id"] = snap.SupplierID
	}
	if snap.LinkedAt != nil {
		summary["linked_at"] = snap.LinkedAt
	}
	if snap.ExpiredMessage != "" {
		summary["expired_message"] = snap.ExpiredMessage
	}
	return summary
}

func yesNoUnknown(v *bool) string {
	switch {
	case v == nil:
		return "unknown"
	case *v:
		return "yes"
	default:
		return "no"
	}
}

func runValidateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
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

	result, err := a.client.ValidateSession(ctx)
	if err != nil {
		return err
	}

	if g.jsonOutput {
		return printJSON(result)
	}
	if result.Valid {
		a.out.Success("Session is valid")
		return nil
	}
	msg := result.Message
	if msg == "" {
		msg = "session is no longer valid; run 'shipgrid link' to re-link"
	}
	return withExitCode(fmt.Errorf("%s", msg), 2)
}
