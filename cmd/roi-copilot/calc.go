package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joelkehle/roi-copilot/internal/roi"
)

var (
	calcFlags *studyFlags
	calcJSON  bool
)

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Calculate first-year ROI and payback for one study",
	Example: `  roi-copilot calc --name "Line Training" --hardware 50000 --software 20000 --efficiency 90000
  roi-copilot calc --name "Field Service" --mode ai --hardware 120000 --revenue 80000 --json > field-service.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		opts, closeFn, err := studyOptions(ctx, calcFlags.Mode(), logger)
		if err != nil {
			return err
		}
		defer closeFn()

		study, res, err := runStudy(ctx, opts, calcFlags.Fields())
		if err != nil {
			return err
		}
		if calcJSON {
			return writeCalcJSON(cmd.OutOrStdout(), study, res)
		}
		writeCalcText(cmd.OutOrStdout(), study, res)
		return nil
	},
}

func init() {
	calcFlags = registerStudyFlags(calcCmd)
	calcCmd.Flags().BoolVar(&calcJSON, "json", false, "Print the study and result as JSON")
}

// savedStudy is the document written by calc --json and read by report --from-json.
type savedStudy struct {
	Study  roi.Study  `json:"study"`
	Result roi.Result `json:"result"`
}

func writeCalcJSON(w io.Writer, study roi.Study, res roi.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(savedStudy{Study: study, Result: res})
}

// readCalcJSON loads a saved study. The amounts are rechecked so a hand-edited
// file cannot produce a report the wizard would have refused.
func readCalcJSON(r io.Reader) (roi.Study, roi.Result, error) {
	var saved savedStudy
	if err := json.NewDecoder(r).Decode(&saved); err != nil {
		return roi.Study{}, roi.Result{}, fmt.Errorf("decode saved study: %w", err)
	}
	if len([]rune(strings.TrimSpace(saved.Study.Project.Name))) < roi.MinProjectNameChars {
		return roi.Study{}, roi.Result{}, errors.New("saved study has no project name")
	}
	if _, err := roi.Calculate(saved.Study.Costs, saved.Study.Benefits); err != nil {
		return roi.Study{}, roi.Result{}, fmt.Errorf("saved study: %w", err)
	}
	return saved.Study, saved.Result, nil
}

func writeCalcText(w io.Writer, study roi.Study, res roi.Result) {
	fmt.Fprintf(w, "%s (%s, %s)\n\n", study.Project.Name, study.Project.UseCase, res.Mode.Label())
	fmt.Fprintf(w, "  Total investment:  %s\n", roi.FormatUSD(res.TotalInvestment))
	fmt.Fprintf(w, "  Annual benefit:    %s\n", roi.FormatUSD(res.TotalAnnualBenefit))
	fmt.Fprintf(w, "  First-year ROI:    %s\n", roi.FormatPercent(res.ROI))
	fmt.Fprintf(w, "  Payback period:    %s\n", roi.FormatYears(res.PaybackYears))
	if res.Insights != nil {
		fmt.Fprintf(w, "\n  Market trend: %s\n", res.Insights.MarketTrend)
		if res.Insights.TopVendor != "" {
			fmt.Fprintf(w, "  Top vendor:   %s\n", res.Insights.TopVendor)
		}
		fmt.Fprintf(w, "  Key insight:  %s\n", res.Insights.KeyInsight)
	}
	if res.Degraded {
		fmt.Fprintln(w, "\n  AI insights were unavailable; figures use the standard calculation.")
	}
}
