package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fentz26/ccgateway/internal/store"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recorded claude-code invocations",
	Long:  `Reads the SQLite run journal written by the gateway when AUDIT_DB_PATH is set.`,
	RunE:  runJournalRuns,
}

var journalDecisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "List recorded execute and analyze decisions",
	RunE:  runJournalDecisions,
}

var (
	journalPath   string
	journalTaskID string
	journalLimit  int
)

func init() {
	journalCmd.AddCommand(journalDecisionsCmd)
	journalCmd.PersistentFlags().StringVar(&journalPath, "db", "", "Journal path (default $AUDIT_DB_PATH)")
	journalCmd.PersistentFlags().IntVar(&journalLimit, "limit", 20, "Maximum rows to show")
	journalCmd.Flags().StringVar(&journalTaskID, "task", "", "Only show runs of this task")
}

func openJournal() (*store.Store, error) {
	path := journalPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.AuditDBPath
	}
	if path == "" {
		return nil, errors.New("no journal configured: set AUDIT_DB_PATH or pass --db")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return store.New(path)
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	s, err := openJournal()
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.ListRuns(context.Background(), journalTaskID, journalLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTASK\tCOMMAND\tOUTCOME\tEXIT\tDURATION\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			truncateID(r.ID),
			truncateID(r.TaskID),
			truncate(strings.TrimSpace(r.Command+" "+strings.Join(r.Args, " ")), 40),
			r.Outcome,
			r.ExitCode,
			r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond),
			humanize.Time(r.StartedAt),
		)
	}
	return w.Flush()
}

func runJournalDecisions(cmd *cobra.Command, args []string) error {
	s, err := openJournal()
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.ListPDR(journalLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No decisions found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tACTION\tOUTCOME\tTASK\tINPUTS\tWHEN")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(e.ID),
			e.Action,
			e.Outcome,
			truncateID(e.TaskID),
			truncateID(e.InputsHash),
			humanize.Time(e.Timestamp),
		)
	}
	return w.Flush()
}
