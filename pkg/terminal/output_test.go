package terminal

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriterPrint(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf)

	w.Print("uploading %s", "saree.jpg")
	if got := buf.String(); got != "uploading saree.jpg" {
		t.Errorf("Print = %q, want 'uploading saree.jpg'", got)
	}
}

func TestWriterPrintln(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf)

	w.Println("done in %dms", 420)
	if got := buf.String(); got != "done in 420ms\n" {
		t.Errorf("Println = %q", got)
	}
}

func TestWriterError(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf)

	w.Error("upload failed")
	got := buf.String()
	if !strings.Contains(got, "error:") {
		t.Errorf("Error output should contain 'error:', got %q", got)
	}
	if !strings.Contains(got, "upload failed") {
		t.Errorf("Error output should contain message, got %q", got)
	}
}

func TestWriterWarn(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf)

	w.Warn("2 variants failed")
	if got := buf.String(); !strings.Contains(got, "warning:") {
		t.Errorf("Warn output should contain 'warning:', got %q", got)
	}
}

func TestWriterSuccess(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf)

	w.Success("account linked")
	got := buf.String()
	if !strings.Contains(got, "✓") {
		t.Errorf("Success output should contain checkmark, got %q", got)
	}
	if !strings.Contains(got, "account linked") {
		t.Errorf("Success output should contain message, got %q", got)
	}
}

func TestWriterQuietSuppressesInfo(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf)
	w.SetQuiet(true)

	w.Info("connecting")
	w.Dim("detail")
	w.Progress(1, 3, "working")
	if buf.Len() != 0 {
		t.Errorf("quiet mode should suppress informational output, got %q", buf.String())
	}

	w.Error("boom")
	if buf.Len() == 0 {
		t.Error("quiet mode must not suppress errors")
	}
}

func TestWriterKeyValue(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf)

	w.KeyValue("Supplier", "SUP123")
	got := buf.String()
	if !strings.Contains(got, "Supplier:") || !strings.Contains(got, "SUP123") {
		t.Errorf("KeyValue = %q", got)
	}
}

func TestWriterList(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf)

	w.List([]string{"one", "two", "three"})
	got := buf.String()
	if !strings.Contains(got, "• one") {
		t.Errorf("List should contain bullet points, got %q", got)
	}
	if !strings.Contains(got, "• two") {
		t.Errorf("List should contain all items, got %q", got)
	}
}

func TestWriterWarningList(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf)

	w.WarningList("Some variants failed:", []string{"tile 2: render error", "tile 5: timeout"})
	got := buf.String()
	if !strings.Contains(got, "Some variants failed:") {
		t.Errorf("WarningList should print the title, got %q", got)
	}
	if !strings.Contains(got, "tile 2: render error") || !strings.Contains(got, "tile 5: timeout") {
		t.Errorf("WarningList should print every item, got %q", got)
	}

	buf.Reset()
	w.WarningList("Nothing:", nil)
	if buf.Len() != 0 {
		t.Errorf("empty WarningList should print nothing, got %q", buf.String())
	}
}

func TestWriterStatusLineOverwrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf)

	w.StatusLine("generating 1/3")
	w.StatusLine("generating 2/3")
	got := buf.String()
	if strings.Count(got, "\r") != 2 {
		t.Errorf("StatusLine should use carriage returns to overwrite, got %q", got)
	}
	if !strings.Contains(got, "generating 2/3") {
		t.Errorf("StatusLine output missing latest message: %q", got)
	}
}

func TestWriterProgress(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf)

	w.Progress(2, 4, "halfway")
	got := buf.String()
	if !strings.Contains(got, "50%") {
		t.Errorf("Progress should show percentage, got %q", got)
	}
	if !strings.Contains(got, "halfway") {
		t.Errorf("Progress should show message, got %q", got)
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		current, total, width int
		wantFilled            int
	}{
		{0, 4, 8, 0},
		{2, 4, 8, 4},
		{4, 4, 8, 8},
		{9, 4, 8, 8}, // clamped
		{1, 0, 8, 0}, // unknown total
	}
	for _, tt := range tests {
		bar := renderProgressBar(tt.current, tt.total, tt.width)
		filled := strings.Count(bar, "█")
		if filled != tt.wantFilled {
			t.Errorf("renderProgressBar(%d, %d, %d) filled = %d, want %d",
				tt.current, tt.total, tt.width, filled, tt.wantFilled)
		}
	}
}

func TestWriterConfirm(t *testing.T) {
	tests := []struct {
		input      string
		defaultYes bool
		want       bool
	}{
		{"y\n", false, true},
		{"yes\n", false, true},
		{"n\n", true, false},
		{"\n", true, true},
		{"\n", false, false},
		{"garbage\n", true, false},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		w := NewWithOutput(&buf)
		w.SetInput(strings.NewReader(tt.input))
		if got := w.Confirm("unlink account?", tt.defaultYes); got != tt.want {
			t.Errorf("Confirm(%q, default=%v) = %v, want %v", tt.input, tt.defaultYes, got, tt.want)
		}
	}
}

func TestWriterPrompt(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf)
	w.SetInput(strings.NewReader("SUP999\n"))

	if got := w.Prompt("Supplier ID", "SUP123"); got != "SUP999" {
		t.Errorf("Prompt = %q, want SUP999", got)
	}

	w.SetInput(strings.NewReader("\n"))
	if got := w.Prompt("Supplier ID", "SUP123"); got != "SUP123" {
		t.Errorf("Prompt with empty input should return the default, got %q", got)
	}
}

func TestWriterPromptSecretNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf)
	w.SetInput(strings.NewReader("s3cret\n"))

	got, err := w.PromptSecret("Password")
	if err != nil {
		t.Fatalf("PromptSecret: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("PromptSecret = %q, want s3cret", got)
	}
}
