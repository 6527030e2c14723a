package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/market-intel/internal/model"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List analysis sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		sessions, err := st.ListSessions(cmd.Context(), sessionsLimit)
		if err != nil {
			return err
		}

		type row struct {
			ID           string             `json:"id"`
			TargetDomain string             `json:"target_domain"`
			State        model.SessionState `json:"state"`
			Shortlist    int                `json:"shortlist_count"`
			Final        int                `json:"final_count"`
			CreatedAt    string             `json:"created_at"`
		}
		rows := make([]row, 0, len(sessions))
		for _, s := range sessions {
			rows = append(rows, row{
				ID:           s.ID,
				TargetDomain: s.TargetDomain,
				State:        s.State,
				Shortlist:    len(s.Shortlist),
				Final:        len(s.Final),
				CreatedAt:    s.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session with its shortlist and final set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		sess, err := st.GetSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	},
}

var opportunityStage string

var opportunityCmd = &cobra.Command{
	Use:   "opportunity <session-id>",
	Short: "Show the stored opportunity artifacts for a completed session",
	Long:  "Reads the cached keyword universe, winnability records, or market artifact from the store. Reads never trigger recomputation.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		stage := model.StageName(opportunityStage)
		switch stage {
		case model.StageKeywordUniverse, model.StageWinnability, model.StageMarket:
		default:
			return errUnknownStage(opportunityStage)
		}

		payload, err := st.GetArtifact(cmd.Context(), args[0], stage)
		if err != nil {
			return err
		}
		if payload == nil {
			return errNoArtifact(args[0], opportunityStage)
		}

		// Re-indent for the terminal without caring about the payload shape.
		var v any
		if err := json.Unmarshal(payload, &v); err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	},
}

func errUnknownStage(stage string) error {
	return eris.Errorf("unknown stage %q, want keyword_universe, winnability, or market", stage)
}

func errNoArtifact(sessionID, stage string) error {
	return eris.Errorf("no %s artifact for session %s; run complete first", stage, sessionID)
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 50, "maximum sessions to list")
	opportunityCmd.Flags().StringVar(&opportunityStage, "stage", "market", "artifact stage: keyword_universe, winnability, or market")

	rootCmd.AddCommand(sessionsCmd, showCmd, opportunityCmd)
}
