package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
	"github.com/JakeFAU/nepjol-importer/internal/status"
)

type importFlags struct {
	journals       int
	maxArticles    int
	test           bool
	skipDuplicates bool
	downloadPDFs   bool
}

func (f importFlags) options() (nepjol.RunOptions, error) {
	if f.journals < 0 || f.maxArticles < 0 {
		return nepjol.RunOptions{}, errors.New("--journals and --max-articles must be >= 0")
	}
	return nepjol.RunOptions{
		MaxJournals:    f.journals,
		MaxArticles:    f.maxArticles,
		SkipDuplicates: f.skipDuplicates,
		DownloadPDFs:   f.downloadPDFs,
		TestMode:       f.test,
	}, nil
}

func newImportCmd() *cobra.Command {
	var flags importFlags
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Run one import in the foreground",
		Long: `Runs a full import on the calling process and prints a tally when it
ends. Interrupting the process stops the run after the article in progress.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			logger := a.Logger()
			logger.Info("starting import",
				zap.Int("max_journals", opts.MaxJournals),
				zap.Int("max_articles", opts.MaxArticles),
				zap.Bool("test_mode", opts.TestMode),
				zap.Bool("skip_duplicates", opts.SkipDuplicates),
				zap.Bool("download_pdfs", opts.DownloadPDFs))

			final, runErr := a.Service.RunSync(cmd.Context(), opts)
			if errors.Is(runErr, status.ErrRunInProgress) {
				return fmt.Errorf("another import is already running: %w", runErr)
			}
			printTally(cmd.OutOrStdout(), final)
			if runErr != nil {
				return fmt.Errorf("import failed: %w", runErr)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&flags.journals, "journals", 0, "maximum journals to process (0 = all)")
	cmd.Flags().IntVar(&flags.maxArticles, "max-articles", 0, "maximum articles per issue (0 = all)")
	cmd.Flags().BoolVar(&flags.test, "test", false, "process one journal and one issue only")
	cmd.Flags().BoolVar(&flags.skipDuplicates, "skip-duplicates", true, "skip articles whose DOI is already cataloged")
	cmd.Flags().BoolVar(&flags.downloadPDFs, "download-pdfs", true, "download and store article PDFs")
	return cmd
}

func printTally(w io.Writer, st status.Status) {
	s := st.Stats
	state := "completed"
	switch {
	case st.Cancelled:
		state = "stopped"
	case st.Error != "":
		state = "failed: " + st.Error
	}
	fmt.Fprintf(w, "Import %s\n", state)
	fmt.Fprintf(w, "  Journals processed:    %d (created %d)\n", s.JournalsProcessed, s.JournalsCreated)
	fmt.Fprintf(w, "  Issues processed:      %d (created %d)\n", s.IssuesProcessed, s.IssuesCreated)
	fmt.Fprintf(w, "  Authors created:       %d (matched %d)\n", s.AuthorsCreated, s.AuthorsMatched)
	fmt.Fprintf(w, "  Publications created:  %d\n", s.PublicationsCreated)
	fmt.Fprintf(w, "  Publications skipped:  %d\n", s.PublicationsSkipped)
	fmt.Fprintf(w, "  PDFs downloaded:       %d\n", s.PDFsDownloaded)
	fmt.Fprintf(w, "  Errors:                %d\n", s.Errors)
}
