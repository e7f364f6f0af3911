package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/CodeInsight/internal/services"
	"github.com/markdave123-py/CodeInsight/internal/watch"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Upload and index files into the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var (
	watchExts   []string
	watchSettle time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Index every file dropped into DIR until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchExts, "ext", nil, "only index these extensions, e.g. --ext go,py,md")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 500*time.Millisecond, "quiet period before a changed file is indexed")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.ingestPaths(ctx, args)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), report)
	if n := report.Count(services.StateFailed); n > 0 {
		return fmt.Errorf("%d file(s) failed", n)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	w, err := watch.New(watchExts, watchSettle, nil)
	if err != nil {
		return err
	}
	defer w.Close()

	cyan.Fprintf(cmd.OutOrStdout(), "Watching %s, press Ctrl+C to stop\n", args[0])
	return w.Run(ctx, args[0], func(ctx context.Context, path string) error {
		report, err := s.ingestPaths(ctx, []string{path})
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	})
}

// ingestPaths runs the ingestion pipeline over local files. Files that
// cannot be opened are reported as failed and the rest still run.
func (s *session) ingestPaths(ctx context.Context, paths []string) (services.IngestReport, error) {
	collection, err := s.collection(ctx)
	if err != nil {
		return services.IngestReport{}, err
	}

	files, failed, closeAll := openFiles(paths)
	defer closeAll()

	report := services.IngestReport{DocumentIDs: []string{}}
	if len(files) > 0 {
		progress := &progressReporter{bar: newProgressBar(os.Stderr, progressEnabled()), out: os.Stderr}
		report = s.app.Ingest.IngestFiles(ctx, files, s.userID, collection, progress.report)
	}
	report.Files = append(report.Files, failed...)
	return report, nil
}

func openFiles(paths []string) ([]services.UploadFile, []services.FileOutcome, func()) {
	var (
		files  = make([]services.UploadFile, 0, len(paths))
		failed []services.FileOutcome
		open   []*os.File
	)
	for _, p := range paths {
		f, err := os.Open(p)
		if err == nil {
			var st os.FileInfo
			if st, err = f.Stat(); err == nil && st.IsDir() {
				err = errors.New("is a directory")
			}
			if err != nil {
				f.Close()
			}
		}
		if err != nil {
			ierr := &services.IngestionError{FileName: filepath.Base(p), Stage: "open", Cause: err}
			failed = append(failed, services.FileOutcome{
				FileName: filepath.Base(p),
				State:    services.StateFailed.String(),
				Error:    ierr.Error(),
			})
			continue
		}
		open = append(open, f)
		files = append(files, services.UploadFile{Name: filepath.Base(p), ContentType: contentType(p), Body: f})
	}
	return files, failed, func() {
		for _, f := range open {
			f.Close()
		}
	}
}

func contentType(path string) string {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
