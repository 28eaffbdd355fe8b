package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"go-wallhaven-browser/internal/search"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show and manage recent searches",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent searches, newest first",
	RunE:  runHistoryList,
}

var historyRemoveCmd = &cobra.Command{
	Use:   "remove [ENTRY_ID]",
	Short: "Remove one history entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryRemove,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget all recent searches",
	RunE:  runHistoryClear,
}

var historyRunCmd = &cobra.Command{
	Use:   "run [ENTRY_ID | N]",
	Short: "Repeat a remembered search (by id or 1-based position)",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryRun,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyRemoveCmd, historyClearCmd, historyRunCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	a, err := openApp(globalConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.db.History()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No recent searches.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tWhen\tSearch\tID")
	for i, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, e.Timestamp.Local().Format("2006-01-02 15:04"), e.Summary, e.ID)
	}
	return tw.Flush()
}

func runHistoryRemove(cmd *cobra.Command, args []string) error {
	a, err := openApp(globalConfig)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.db.RemoveHistory(args[0])
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	a, err := openApp(globalConfig)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.db.ClearHistory(); err != nil {
		return err
	}
	fmt.Println("Search history cleared.")
	return nil
}

func runHistoryRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(globalConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.db.History()
	if err != nil {
		return err
	}
	var found bool
	var entryIdx int
	for i, e := range entries {
		if e.ID == args[0] {
			found, entryIdx = true, i
			break
		}
	}
	if !found {
		sel := parseSelection(args[0], len(entries))
		if len(sel) != 1 {
			return fmt.Errorf("no history entry %q", args[0])
		}
		entryIdx = sel[0]
	}
	entry := entries[entryIdx]

	svc := a.searchService(false)
	defer svc.Close()

	result, err := svc.FetchPage(ctx, entry.Filters, 1)
	if err != nil {
		if msg := search.UserMessage(err); msg != "" {
			return errors.New(msg)
		}
		return err
	}
	if _, err := a.db.AddHistory(entry.Filters); err != nil {
		return err
	}
	fmt.Printf("%s\n", entry.Summary)
	printPage(os.Stdout, result, svc.State().TotalPages, a.db)
	return nil
}
