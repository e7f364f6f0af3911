package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/markdave123-py/CodeInsight/internal/services"
)

var (
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	green  = color.New(color.FgGreen)
	cyan   = color.New(color.FgCyan)
	dim    = color.New(color.Faint)
)

// newProgressBar returns a 0..100 bar, or nil when progress is hidden.
func newProgressBar(w io.Writer, enabled bool) *progressbar.ProgressBar {
	if !enabled {
		return nil
	}
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Indexing"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionEnableColorCodes(!color.NoColor),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func progressEnabled() bool {
	return !globals.Quiet && isatty.IsTerminal(os.Stderr.Fd())
}

// progressReporter mirrors ingestion progress onto a bar, or onto plain
// lines when there is no bar.
type progressReporter struct {
	bar *progressbar.ProgressBar
	out io.Writer
}

func (p *progressReporter) report(u services.UploadProgress) {
	if p.bar == nil {
		if !globals.Quiet {
			fmt.Fprintf(p.out, "%3.0f%% %s\n", u.Percent, u.Message)
		}
		return
	}
	p.bar.Describe(u.Message)
	_ = p.bar.Set(int(u.Percent))
	if u.Percent >= 100 {
		_ = p.bar.Finish()
		fmt.Fprintln(p.out)
	}
}

// printReport writes one line per file and a summary.
func printReport(w io.Writer, r services.IngestReport) {
	for _, f := range r.Files {
		switch f.State {
		case services.StateReady.String():
			green.Fprintf(w, "  ✓ %s", f.FileName)
			dim.Fprintf(w, "  %s\n", f.DocumentID)
		case services.StateSkipped.String():
			yellow.Fprintf(w, "  - %s (no text extracted)\n", f.FileName)
		default:
			red.Fprintf(w, "  ✗ %s: %s\n", f.FileName, f.Error)
		}
	}
	fmt.Fprintf(w, "\n%d indexed, %d skipped, %d failed\n",
		r.Count(services.StateReady), r.Count(services.StateSkipped), r.Count(services.StateFailed))
}
