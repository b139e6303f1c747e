package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/roi-copilot/internal/report"
	"github.com/joelkehle/roi-copilot/internal/roi"
)

var (
	reportFlags    *studyFlags
	reportOut      string
	reportFormat   string
	reportFromJSON string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write an ROI report as Markdown, HTML or PDF",
	Example: `  roi-copilot report --name "Line Training" --hardware 50000 --efficiency 90000 --format pdf
  roi-copilot report --name "Line Training" --hardware 50000 --efficiency 90000 --out training.md
  roi-copilot report --from-json field-service.json --format html`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		format, err := reportFormatFor(reportFormat, reportOut)
		if err != nil {
			return err
		}

		var (
			study roi.Study
			res   roi.Result
		)
		if reportFromJSON != "" {
			study, res, err = loadSavedStudy(cmd, reportFromJSON)
		} else {
			study, res, err = computeStudy(cmd)
		}
		if err != nil {
			return err
		}
		md := report.Markdown(study, res, time.Now())

		var data []byte
		switch format {
		case "md":
			data = []byte(md)
		case "html":
			doc, err := report.HTML(md)
			if err != nil {
				return err
			}
			data = []byte(doc)
		case "pdf":
			data, err = report.NewChromiumPDFRenderer(cfg.Report.ChromePath).Render(ctx, md)
			if err != nil {
				return err
			}
		}

		out := reportOut
		if out == "" {
			out = report.Filename(study.Project.Name, format)
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Info("report_written", zap.String("path", out), zap.String("format", format), zap.Int("bytes", len(data)))
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	reportFlags = registerStudyFlags(reportCmd)
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Output path (default derived from the project name)")
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "", "md, html or pdf (default from --out extension, else md)")
	reportCmd.Flags().StringVar(&reportFromJSON, "from-json", "", `Render a study saved with "calc --json" ("-" reads stdin)`)
}

func computeStudy(cmd *cobra.Command) (roi.Study, roi.Result, error) {
	opts, closeFn, err := studyOptions(cmd.Context(), reportFlags.Mode(), logger)
	if err != nil {
		return roi.Study{}, roi.Result{}, err
	}
	defer closeFn()
	return runStudy(cmd.Context(), opts, reportFlags.Fields())
}

func loadSavedStudy(cmd *cobra.Command, path string) (roi.Study, roi.Result, error) {
	if len(reportFlags.Fields()) > 0 {
		return roi.Study{}, roi.Result{}, errors.New("--from-json cannot be combined with study flags")
	}
	if path == "-" {
		return readCalcJSON(cmd.InOrStdin())
	}
	f, err := os.Open(path)
	if err != nil {
		return roi.Study{}, roi.Result{}, err
	}
	defer f.Close()
	return readCalcJSON(f)
}

// reportFormatFor prefers the explicit format, then the output extension.
func reportFormatFor(format, out string) (string, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
	}
	switch format {
	case "", "md", "markdown":
		return "md", nil
	case "html", "htm":
		return "html", nil
	case "pdf":
		return "pdf", nil
	default:
		return "", fmt.Errorf("unsupported report format %q", format)
	}
}
