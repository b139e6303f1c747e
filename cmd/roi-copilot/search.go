package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joelkehle/roi-copilot/internal/search"
)

var searchJSON bool

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search AR/MR ROI documentation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := buildServices(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer svc.Close()

		if t := cfg.AI.SearchTimeout.Duration; t > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t)
			defer cancel()
		}
		resp, err := svc.searchService(ctx, logger.Named("search")).Search(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if searchJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		writeSearchText(cmd.OutOrStdout(), resp)
		return nil
	},
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print the raw response as JSON")
}

func writeSearchText(w io.Writer, resp search.Response) {
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, search.MsgNoResults)
		return
	}
	for i, r := range resp.Results {
		fmt.Fprintf(w, "%d. %s\n   %s\n", i+1, r.Title, r.Link)
		if r.Summary != "" {
			fmt.Fprintf(w, "   %s\n", r.Summary)
		}
	}
	if resp.Reasoning != "" {
		fmt.Fprintf(w, "\n%s\n", resp.Reasoning)
	}
}
