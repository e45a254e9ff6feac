package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spherical/docstruct/cmd/docstruct/ui"
	"github.com/spherical/docstruct/internal/config"
	"github.com/spherical/docstruct/internal/domain"
	"github.com/spherical/docstruct/internal/pdf"
	"github.com/spherical/docstruct/pkg/extractor"
)

var (
	extractPDFPath    string
	extractOutputPath string
	extractReportPath string
	extractModel      string
	extractNoTables   bool
	extractNoImages   bool
	extractNoOCR      bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured markdown from a PDF",
	Long:  "Extract structured content from a PDF document and save it as a markdown file.",
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractPDFPath, "pdf", "p", "", "Path to PDF file (required)")
	extractCmd.Flags().StringVarP(&extractOutputPath, "output", "o", "", "Output path for markdown file (optional)")
	extractCmd.Flags().StringVar(&extractReportPath, "report", "", "Write the run report as JSON to this path (optional)")
	extractCmd.Flags().StringVarP(&extractModel, "model", "m", "", "Override the AI model identifier")
	extractCmd.Flags().BoolVar(&extractNoTables, "no-tables", false, "Skip table segments")
	extractCmd.Flags().BoolVar(&extractNoImages, "no-images", false, "Skip image segments")
	extractCmd.Flags().BoolVar(&extractNoOCR, "no-ocr", false, "Disable the OCR fallback for pages without a text layer")
	extractCmd.MarkFlagRequired("pdf")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	// Ctrl-C cancels the run; in-flight segments finish as failed and
	// the partial document is still written.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if extractModel != "" {
		cfg.AI.Model = extractModel
	}
	if extractNoTables {
		cfg.Extraction.SkipTables = true
	}
	if extractNoImages {
		cfg.Extraction.SkipImages = true
	}
	if extractNoOCR {
		cfg.Extraction.OCRFallback = false
	}
	if verbose {
		cfg.Observability.LogLevel = "debug"
	}

	ui.InitUI(noColor, verbose)
	ui.Section("PDF Extraction")

	if err := pdf.ValidatePDFPath(extractPDFPath); err != nil {
		return err
	}

	if extractOutputPath == "" {
		base := filepath.Base(extractPDFPath)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		extractOutputPath = filepath.Join(filepath.Dir(extractPDFPath), stem+".md")
	}

	ui.Info("PDF file: %s", extractPDFPath)
	ui.Info("Output file: %s", extractOutputPath)
	ui.Newline()

	client, err := extractor.NewClientWithConfig(cfg)
	if err != nil {
		return err
	}

	bar := ui.NewProgressBar(-1, "Extracting segments...")
	events := make(chan extractor.Event, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			switch ev.Type {
			case domain.EventSegmentComplete, domain.EventSegmentFailed:
				bar.Add(1)
			}
		}
	}()

	result, runErr := client.Process(ctx, extractPDFPath, events)
	close(events)
	<-done
	bar.Finish()

	if runErr != nil {
		return fmt.Errorf("extraction failed: %w", runErr)
	}

	if err := os.WriteFile(extractOutputPath, []byte(result.Markdown+"\n"), 0o644); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}

	if extractReportPath != "" {
		data, err := json.MarshalIndent(result.Report, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		if err := os.WriteFile(extractReportPath, data, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	printSummary(result)

	if result.Report.Status == domain.DocFailed {
		return fmt.Errorf("extraction failed: every segment failed")
	}
	return nil
}

func printSummary(result *extractor.Result) {
	report := result.Report

	ui.Newline()
	ui.Section("Extraction Summary")
	ui.Table([]string{"Metric", "Value"}, [][]string{
		{"Status", string(report.Status)},
		{"Segments", fmt.Sprintf("%d", report.SegmentCount)},
		{"Text", fmt.Sprintf("%d", report.TextSegments)},
		{"Tables", fmt.Sprintf("%d", report.TableSegments)},
		{"Images", fmt.Sprintf("%d", report.ImageSegments)},
		{"Failed ordinals", ui.FormatOrdinals(report.FailedSegmentOrdinals)},
		{"Duration", ui.FormatDuration(report.Duration)},
	})
	ui.Newline()

	switch report.Status {
	case domain.DocComplete:
		ui.Success("Extraction completed successfully")
	case domain.DocPartial:
		ui.Warning("Extraction completed with %d failed segment(s), placeholders were substituted", len(report.FailedSegmentOrdinals))
	default:
		ui.Error("Extraction failed")
	}
}
