package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rostralabs/rostra/internal/config"
	"github.com/rostralabs/rostra/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored debate sessions",
	Long: `List the debate sessions in the configured store with their
phase, status, and roster size, newest first.`,
	RunE: runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := cmd.Context()
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	defer st.Close()

	sessions, err := st.List(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no stored sessions")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOPIC\tPHASE\tSTATUS\tPARTICIPANTS\tCREATED")
	for _, s := range sessions {
		topic := s.Topic
		if len(topic) > 40 {
			topic = topic[:37] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID, topic, s.Phase, s.Status, s.Participants,
			s.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
