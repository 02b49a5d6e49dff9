package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/evotimetable/internal/fitness"
	"github.com/cwbudde/evotimetable/internal/store"
	"github.com/spf13/cobra"
)

var (
	keepLast      int
	olderThanDays int
	cleanRunID    string
	forceClean    bool
	listRunID     string
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Manage run checkpoints",
	Long: `Manage run checkpoints including listing, inspecting and cleaning old checkpoints.
Checkpoints allow resuming long-running searches from saved state.`,
}

var listCheckpointsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available checkpoints",
	Long:  `Display all checkpoints with metadata including run ID, label, generation, best fitness and timestamp.`,
	RunE:  runListCheckpoints,
}

var showCheckpointCmd = &cobra.Command{
	Use:   "show <checkpoint-id>",
	Short: "Show a checkpoint's best timetable",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowCheckpoint,
}

var cleanCheckpointsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old checkpoints",
	Long: `Delete old checkpoints based on retention policy.
You can specify how many checkpoints to keep per run or delete checkpoints older than N days.`,
	RunE: runCleanCheckpoints,
}

func init() {
	rootCmd.AddCommand(checkpointsCmd)

	checkpointsCmd.AddCommand(listCheckpointsCmd)
	checkpointsCmd.AddCommand(showCheckpointCmd)
	checkpointsCmd.AddCommand(cleanCheckpointsCmd)

	listCheckpointsCmd.Flags().StringVar(&listRunID, "run", "", "Only list checkpoints of this run")

	cleanCheckpointsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the last N checkpoints per run (0 = keep all)")
	cleanCheckpointsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete checkpoints older than N days (0 = no age limit)")
	cleanCheckpointsCmd.Flags().StringVar(&cleanRunID, "run", "", "Only clean checkpoints of this run")
	cleanCheckpointsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func runListCheckpoints(cmd *cobra.Command, args []string) error {
	checkpointStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer checkpointStore.Close()

	infos, err := checkpointStore.ListCheckpoints()
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}
	infos = filterByRun(infos, listRunID)

	if len(infos) == 0 {
		fmt.Println("No checkpoints found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tRUN\tLABEL\tGENERATION\tBEST FITNESS\tTIMESTAMP\tSIZE")
	fmt.Fprintln(w, "--\t---\t-----\t----------\t------------\t---------\t----")

	for _, info := range infos {
		sizeStr := "-"
		if cfg.Store.Kind == store.KindFS {
			if size, err := getDirSize(filepath.Join(cfg.Store.DataDir, "runs", info.ID)); err == nil {
				sizeStr = formatBytes(size)
			}
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%s\t%s\n",
			info.ID,
			shortID(info.RunID),
			info.Label,
			info.Generation,
			info.BestFitness,
			info.Timestamp.Format("2006-01-02 15:04:05"),
			sizeStr,
		)
	}

	w.Flush()

	fmt.Printf("\nTotal checkpoints: %d\n", len(infos))
	return nil
}

func runShowCheckpoint(cmd *cobra.Command, args []string) error {
	checkpointStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer checkpointStore.Close()

	cp, err := checkpointStore.LoadCheckpoint(args[0])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("checkpoint %s not found in %s store", args[0], cfg.Store.Kind)
		}
		return err
	}

	info := cp.ToInfo()
	fmt.Printf("Checkpoint: %s\n", info.ID)
	fmt.Printf("Run:        %s\n", info.RunID)
	fmt.Printf("Label:      %s\n", info.Label)
	fmt.Printf("Generation: %d\n", info.Generation)
	fmt.Printf("Saved:      %s\n", info.Timestamp.Format(time.RFC3339))
	fmt.Printf("Problem:    %d subjects, %d days, %d time slots, population %d\n\n",
		info.Subjects, info.Days, info.TimeSlots, info.PopulationSize)

	best := cp.State.Best()
	if err := printTimetable(os.Stdout, best); err != nil {
		return err
	}
	fmt.Println()

	model, err := fitness.NewModelFromSpecs(cp.State.Subjects, cp.State.TimeSlots, cp.State.Preferences, nil)
	if err != nil {
		return err
	}
	return printBreakdown(os.Stdout, model.Breakdown(best))
}

func runCleanCheckpoints(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	checkpointStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer checkpointStore.Close()

	infos, err := checkpointStore.ListCheckpoints()
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}
	infos = filterByRun(infos, cleanRunID)

	if len(infos) == 0 {
		fmt.Println("No checkpoints to clean.")
		return nil
	}

	toDelete := selectCheckpointsForDeletion(infos, keepLast, olderThanDays, time.Now())

	if len(toDelete) == 0 {
		fmt.Println("No checkpoints match deletion criteria.")
		return nil
	}

	fmt.Printf("Found %d checkpoint(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Printf("  - %s (generation %d, %s)\n",
			info.ID,
			info.Generation,
			info.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		err := checkpointStore.DeleteCheckpoint(info.ID)
		if err != nil {
			slog.Error("Failed to delete checkpoint", "id", info.ID, "error", err)
			failed++
		} else {
			slog.Info("Deleted checkpoint", "id", info.ID)
			deleted++
		}
	}

	fmt.Printf("\nDeleted %d checkpoint(s), %d failed.\n", deleted, failed)
	return nil
}

// selectCheckpointsForDeletion applies the retention policy: everything older
// than olderThanDays, plus everything but the newest keepLast of each run.
// The result is ordered oldest first without duplicates.
func selectCheckpointsForDeletion(infos []store.CheckpointInfo, keepLast int, olderThanDays int, now time.Time) []store.CheckpointInfo {
	selected := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				selected[info.ID] = true
			}
		}
	}

	if keepLast > 0 {
		byRun := make(map[string][]store.CheckpointInfo)
		for _, info := range infos {
			byRun[info.RunID] = append(byRun[info.RunID], info)
		}
		for _, runInfos := range byRun {
			if len(runInfos) <= keepLast {
				continue
			}
			sortOldestFirst(runInfos)
			for _, info := range runInfos[:len(runInfos)-keepLast] {
				selected[info.ID] = true
			}
		}
	}

	var toDelete []store.CheckpointInfo
	for _, info := range infos {
		if selected[info.ID] {
			toDelete = append(toDelete, info)
		}
	}
	sortOldestFirst(toDelete)
	return toDelete
}

func sortOldestFirst(infos []store.CheckpointInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].Timestamp.Equal(infos[j].Timestamp) {
			return infos[i].Generation < infos[j].Generation
		}
		return infos[i].Timestamp.Before(infos[j].Timestamp)
	})
}

func filterByRun(infos []store.CheckpointInfo, runID string) []store.CheckpointInfo {
	if runID == "" {
		return infos
	}
	var out []store.CheckpointInfo
	for _, info := range infos {
		if info.RunID == runID {
			out = append(out, info)
		}
	}
	return out
}

// shortID truncates long run IDs for display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
