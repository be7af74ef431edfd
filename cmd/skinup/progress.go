package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/osvaldoandrade/skinup/internal/tracker"
)

// consoleNotifier renders tracker events. The spinner and the progress bar
// are only used when w is a terminal.
type consoleNotifier struct {
	w           io.Writer
	ui          *ui
	interactive bool
	maxAttempts int

	spin *spinner.Spinner
	bar  *progressbar.ProgressBar
}

func newConsoleNotifier(w io.Writer, ui *ui, maxAttempts int) *consoleNotifier {
	return &consoleNotifier{
		w:           w,
		ui:          ui,
		interactive: isTerminal(w),
		maxAttempts: maxAttempts,
	}
}

func (n *consoleNotifier) Notify(ev tracker.Event) {
	n.stopSpinner()
	switch ev.Type {
	case tracker.EventSubmitting:
		fmt.Fprintln(n.w, n.ui.info("Uploading skin..."))
		n.startSpinner(" Uploading...")
	case tracker.EventQueued:
		fmt.Fprintln(n.w, n.ui.info("Job queued with ID:"), ev.Job)
		if n.interactive && n.maxAttempts > 0 {
			n.bar = progressbar.NewOptions(n.maxAttempts,
				progressbar.OptionSetWriter(n.w),
				progressbar.OptionSetDescription("Job still processing..."),
				progressbar.OptionSetWidth(18),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
	case tracker.EventProcessing:
		if n.bar != nil {
			_ = n.bar.Set(ev.Attempt)
			return
		}
		fmt.Fprintln(n.w, n.ui.info("Job still processing..."))
		n.startSpinner(" Waiting...")
	case tracker.EventCompleted:
		n.clearBar()
		if ev.Attempt == 0 {
			fmt.Fprintln(n.w, n.ui.ok("Upload successful!"))
		} else {
			fmt.Fprintln(n.w, n.ui.ok("Upload completed successfully!"))
		}
	case tracker.EventFailed:
		n.clearBar()
		if ev.Job != "" {
			fmt.Fprintln(n.w, n.ui.dim(fmt.Sprintf("Job %s stopped after %d polls", ev.Job, ev.Attempt)))
		}
	}
}

func (n *consoleNotifier) startSpinner(suffix string) {
	if !n.interactive {
		return
	}
	n.spin = spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(n.w))
	n.spin.Suffix = suffix
	n.spin.Start()
}

func (n *consoleNotifier) stopSpinner() {
	if n.spin != nil {
		n.spin.Stop()
		n.spin = nil
	}
}

func (n *consoleNotifier) clearBar() {
	if n.bar != nil {
		_ = n.bar.Clear()
		n.bar = nil
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
