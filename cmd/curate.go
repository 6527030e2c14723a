package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/pipeline"
)

var curateFile string

var curateCmd = &cobra.Command{
	Use:   "curate <session-id>",
	Short: "Submit a curation decision for a shortlist session",
	Long:  "Applies keep/remove/add decisions from a JSON file to a session awaiting curation. A rejected submission reports the validation code and leaves the session unchanged.",
	Args:  cobra.ExactArgs(1),
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

		data, err := os.ReadFile(curateFile)
		if err != nil {
			return eris.Wrapf(err, "read curation file %s", curateFile)
		}
		var cur model.Curation
		if err := json.Unmarshal(data, &cur); err != nil {
			return eris.Wrap(err, "parse curation file")
		}

		sess, err := app.Gate.Submit(cmd.Context(), args[0], cur)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <session-id>",
	Short: "Run keyword mining, winnability scoring, and market sizing for a curated session",
	Long:  "Synchronously builds the keyword universe and market opportunity for a curated session. Completed sub-stages are cached, so a retry resumes rather than recomputes.",
	Args:  cobra.ExactArgs(1),
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

		sess, err := app.Gate.Complete(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	},
}

var updateFile string

var updateCmd = &cobra.Command{
	Use:   "update <session-id>",
	Short: "Edit the final competitor set of a completed session",
	Long:  "Applies explicit removals and additions to the locked final set. This is the only path that changes a completed set.",
	Args:  cobra.ExactArgs(1),
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

		data, err := os.ReadFile(updateFile)
		if err != nil {
			return eris.Wrapf(err, "read update file %s", updateFile)
		}
		var cur model.Curation
		if err := json.Unmarshal(data, &cur); err != nil {
			return eris.Wrap(err, "parse update file")
		}

		sess, err := app.Gate.UpdateFinalSet(cmd.Context(), args[0], cur.Removals, cur.Additions)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	},
}

func init() {
	curateCmd.Flags().StringVar(&curateFile, "file", "", "JSON file with keep/removals/additions")
	_ = curateCmd.MarkFlagRequired("file")

	updateCmd.Flags().StringVar(&updateFile, "file", "", "JSON file with removals/additions")
	_ = updateCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(curateCmd, completeCmd, updateCmd)
}
