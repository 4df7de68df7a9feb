package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docqa/internal/adapter/fs"
	"docqa/internal/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|dir|glob>...",
	Short: "Ingest documents into the index",
	Long: `Extract, chunk and embed PDF, DOCX and TXT files.
Directories are walked using the include and exclude patterns from the config.

Examples:
  docqa ingest report.pdf
  docqa ingest ./papers
  docqa ingest "notes/**/*.txt"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	files, err := walker.Expand(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported files found")
	}

	a, err := newApp(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	start := time.Now()
	var results []domain.IngestResult
	var failures []string
	for i, f := range files {
		name := filepath.Base(f.Path)
		res, err := ingestFile(cmd, a, f.Path)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", f.Path, err))
		} else {
			results = append(results, res)
		}

		_ = bar.Add(1)
		if done := i + 1; done < len(files) {
			rate := float64(done) / time.Since(start).Seconds()
			if rate > 0 {
				eta := time.Duration(float64(len(files)-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] %s ETA: %s", name, formatDuration(eta)))
			}
		}
	}

	chunks := 0
	for _, r := range results {
		chunks += r.ChunkCount
	}
	fmt.Printf("\nIngest complete:\n")
	fmt.Printf("  Documents: %d\n", len(results))
	fmt.Printf("  Chunks:    %d\n", chunks)
	fmt.Printf("  Elapsed:   %s\n", formatDuration(time.Since(start)))
	for _, r := range results {
		fmt.Printf("  - %s (%d pages, %d chunks)\n", r.DocID, r.PageCount, r.ChunkCount)
	}

	if len(failures) > 0 {
		fmt.Printf("\nFailed:\n")
		for _, f := range failures {
			fmt.Printf("  - %s\n", f)
		}
		return fmt.Errorf("%d of %d files failed", len(failures), len(files))
	}
	return nil
}

func ingestFile(cmd *cobra.Command, a *app, path string) (domain.IngestResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.IngestResult{}, err
	}
	if err := a.ingest.Validate(filepath.Base(path), info.Size()); err != nil {
		return domain.IngestResult{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.IngestResult{}, err
	}
	return a.ingest.Ingest(cmd.Context(), filepath.Base(path), data)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
