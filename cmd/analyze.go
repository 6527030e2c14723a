package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/market-intel/internal/pipeline"
	"github.com/sells-group/market-intel/internal/profile"
)

var (
	analyzeDescription string
	analyzeDomain      string
	analyzeIndustry    string
	analyzeKeywords    []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run discovery through shortlist selection for a target business",
	Long:  "Builds the business context, fans out competitor discovery, enriches and classifies candidates, and stores a shortlist session awaiting curation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		app, err := pipeline.Build(cfg, st)
		if err != nil {
			return eris.Wrap(err, "build pipeline")
		}

		sess, err := app.Pipeline.Run(cmd.Context(), profile.SeedInput{
			Description:  analyzeDescription,
			Domain:       analyzeDomain,
			Industry:     analyzeIndustry,
			SeedKeywords: trimAll(analyzeKeywords),
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	},
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDescription, "description", "", "free-text description of the target business")
	analyzeCmd.Flags().StringVar(&analyzeDomain, "domain", "", "target business domain")
	analyzeCmd.Flags().StringVar(&analyzeIndustry, "industry", "", "industry label for coefficient selection")
	analyzeCmd.Flags().StringSliceVar(&analyzeKeywords, "seed-keywords", nil, "seed keywords for SERP overlap and expansion")

	rootCmd.AddCommand(analyzeCmd)
}
